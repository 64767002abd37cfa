package learning

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// JournalConfig configures the rotating view journal.
type JournalConfig struct {
	// Path is the JSONL file. Empty disables the journal.
	Path string

	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// Journal appends every tracked view to a JSON-lines file for offline analysis.
// Entries carry ULIDs so they sort by time.
type Journal struct {
	mu      sync.Mutex
	out     io.WriteCloser
	entropy io.Reader
}

// NewJournal opens a journal backed by a lumberjack rotating file.
func NewJournal(cfg JournalConfig) *Journal {
	return newJournal(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
}

func newJournal(w io.WriteCloser) *Journal {
	return &Journal{
		out:     w,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Append writes one entry.
func (j *Journal) Append(at time.Time, ev ViewEvent, completion float64, merged bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := journalEntry{
		ID:               ulid.MustNew(ulid.Timestamp(at), j.entropy).String(),
		At:               at,
		ItemID:           ev.ItemID,
		WatchTimeSeconds: ev.WatchTimeSeconds,
		DurationSeconds:  ev.DurationSeconds,
		CompletionRate:   completion,
		Liked:            ev.Liked,
		Commented:        ev.Commented,
		Shared:           ev.Shared,
		CreatorID:        ev.CreatorID,
		Hashtags:         ev.Hashtags,
		Merged:           merged,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if _, err := j.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}
