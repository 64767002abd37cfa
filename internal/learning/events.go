/*
Package learning implements the viewer interaction store.

The store records one merged InteractionRecord per watched item, derives the
viewer's preference profile from those records, and persists both to a
storage.BlobStore under two keys. Persistence is best-effort: failures are
logged and counted, never returned to the playback surface, and writes happen
on a background saver so TrackView never blocks on I/O.
*/
package learning

import (
	"math"
	"strings"
	"time"
)

// ViewEvent is one end-of-view report from the playback surface.
type ViewEvent struct {
	// ItemID is the watched item.
	ItemID string

	// WatchTimeSeconds is how long the item was on screen.
	WatchTimeSeconds float64

	// DurationSeconds is the item length. Zero or negative yields completion 0.
	DurationSeconds float64

	// Liked, Commented and Shared report actions taken during the view.
	Liked     bool
	Commented bool
	Shared    bool

	// CreatorID and Hashtags describe the item for the preference profile.
	CreatorID string
	Hashtags  []string
}

// CompletionRate returns watch/duration as a percentage clamped to [0, 100].
func CompletionRate(watchSeconds, durationSeconds float64) float64 {
	if durationSeconds <= 0 || watchSeconds <= 0 || math.IsNaN(watchSeconds) || math.IsNaN(durationSeconds) {
		return 0
	}
	return math.Min(watchSeconds/durationSeconds*100, 100)
}

// seconds maps NaN, infinite and negative durations to 0.
func seconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// normalizeTags lowercases and trims tags, dropping empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// journalEntry is the JSONL form of a tracked view.
type journalEntry struct {
	ID               string    `json:"id"`
	At               time.Time `json:"at"`
	ItemID           string    `json:"itemId"`
	WatchTimeSeconds float64   `json:"watchTimeSeconds"`
	DurationSeconds  float64   `json:"durationSeconds"`
	CompletionRate   float64   `json:"completionRate"`
	Liked            bool      `json:"liked"`
	Commented        bool      `json:"commented"`
	Shared           bool      `json:"shared"`
	CreatorID        string    `json:"creatorId,omitempty"`
	Hashtags         []string  `json:"hashtags,omitempty"`
	Merged           bool      `json:"merged"`
}
