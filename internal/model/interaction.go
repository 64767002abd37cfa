package model

import (
	"sort"
	"time"
)

// InteractionRecord is the merged viewing outcome of one item for one viewer.
type InteractionRecord struct {
	ItemID           string    `json:"itemId"`
	Watched          bool      `json:"watched"`
	WatchTimeSeconds float64   `json:"watchTimeSeconds"`
	CompletionRate   float64   `json:"completionRate"`
	Liked            bool      `json:"liked"`
	Commented        bool      `json:"commented"`
	Shared           bool      `json:"shared"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Merge folds a newer observation of the same item into r.
// Numeric fields keep the maximum, flags are OR-combined and the timestamp
// never moves backwards.
func (r InteractionRecord) Merge(next InteractionRecord) InteractionRecord {
	merged := r
	merged.Watched = r.Watched || next.Watched
	merged.WatchTimeSeconds = max(r.WatchTimeSeconds, next.WatchTimeSeconds)
	merged.CompletionRate = max(r.CompletionRate, next.CompletionRate)
	merged.Liked = r.Liked || next.Liked
	merged.Commented = r.Commented || next.Commented
	merged.Shared = r.Shared || next.Shared
	if next.LastUpdated.After(r.LastUpdated) {
		merged.LastUpdated = next.LastUpdated
	}
	return merged
}

// Preferences is the viewer profile derived from interaction records.
type Preferences struct {
	FavoriteCreators    map[string]struct{}
	FavoriteHashtags    map[string]struct{}
	CategoryScores      map[string]float64
	AvgWatchTimeSeconds float64
	TotalItemsWatched   int
}

// NewPreferences returns an empty profile with initialized containers.
func NewPreferences() Preferences {
	return Preferences{
		FavoriteCreators: make(map[string]struct{}),
		FavoriteHashtags: make(map[string]struct{}),
		CategoryScores:   make(map[string]float64),
	}
}

// HasCreator reports whether id is a favorite creator.
func (p Preferences) HasCreator(id string) bool {
	_, ok := p.FavoriteCreators[id]
	return ok
}

// HasHashtag reports whether tag is a favorite hashtag.
func (p Preferences) HasHashtag(tag string) bool {
	_, ok := p.FavoriteHashtags[tag]
	return ok
}

// Clone returns a deep copy so callers cannot mutate the original.
func (p Preferences) Clone() Preferences {
	c := Preferences{
		FavoriteCreators:    make(map[string]struct{}, len(p.FavoriteCreators)),
		FavoriteHashtags:    make(map[string]struct{}, len(p.FavoriteHashtags)),
		CategoryScores:      make(map[string]float64, len(p.CategoryScores)),
		AvgWatchTimeSeconds: p.AvgWatchTimeSeconds,
		TotalItemsWatched:   p.TotalItemsWatched,
	}
	for k := range p.FavoriteCreators {
		c.FavoriteCreators[k] = struct{}{}
	}
	for k := range p.FavoriteHashtags {
		c.FavoriteHashtags[k] = struct{}{}
	}
	for k, v := range p.CategoryScores {
		c.CategoryScores[k] = v
	}
	return c
}

// SortedKeys returns the members of a string set in ascending order.
func SortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
