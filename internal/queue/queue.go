/*
Package queue implements the per-viewer feed queue.

The queue is an append-only list of items addressed by a cursor. Advancing the
cursor close to the end of the list triggers a background prefetch that asks
the ranker for another batch; at most one prefetch runs at a time. Only
RefreshFeed resets the list.

Known race: a prefetch still running when RefreshFeed resets the queue can
append its batch into the new generation. Appends deduplicate by id, so the
queue never holds an item twice, but such items were ranked against the old
recent window. Advance does not start a prefetch while RefreshFeed is
rebuilding the queue.
*/
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/metrics"
	"github.com/khanglvm/reelfeed/internal/model"
)

const (
	// DefaultBatchSize is the number of items requested per prefetch.
	DefaultBatchSize = 10

	// DefaultPrefetchThreshold is the remaining lookahead that triggers a prefetch.
	DefaultPrefetchThreshold = 3

	// DefaultWindow is the number of items exposed past the cursor.
	DefaultWindow = 5

	// recentWindow is how many consumed items are passed to the ranker.
	recentWindow = 5
)

// Ranker produces ordered candidate lists.
type Ranker interface {
	Recommend(catalog []model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recentlyShown []model.Item, count int) []model.Item
	InitialFeed(catalog []model.Item, count int) []model.Item
}

// Profile exposes snapshots of the viewer's history.
type Profile interface {
	Preferences() model.Preferences
	Interactions() []model.InteractionRecord
}

// Config tunes a Queue. Zero fields take the defaults.
type Config struct {
	BatchSize         int
	PrefetchThreshold int
	Window            int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PrefetchThreshold <= 0 {
		c.PrefetchThreshold = DefaultPrefetchThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Queue is the live feed of one viewer. It is safe for concurrent use.
type Queue struct {
	ranker  Ranker
	profile Profile
	cfg     Config

	mu         sync.Mutex
	items      []model.Item
	cursor     int
	catalog    []model.Item
	ready      bool
	rebuilding bool

	// refreshing is the single-flight token for prefetch. It is taken and
	// released with mu held; done is closed when the holder finishes.
	refreshing atomic.Bool
	done       chan struct{}

	log zerolog.Logger
}

// New creates an uninitialized queue over catalog.
func New(ranker Ranker, profile Profile, catalog []model.Item, cfg Config) *Queue {
	return &Queue{
		ranker:  ranker,
		profile: profile,
		cfg:     cfg.withDefaults(),
		catalog: append([]model.Item(nil), catalog...),
		log:     logging.Component("queue"),
	}
}

// Initialize fills the queue with 2*BatchSize items and moves the cursor to
// the start. Viewers with no watched items get the cold-start feed. It
// returns the visible window.
func (q *Queue) Initialize(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	catalog := append([]model.Item(nil), q.catalog...)
	q.mu.Unlock()

	prefs := q.profile.Preferences()
	count := q.cfg.BatchSize * 2

	var items []model.Item
	if prefs.TotalItemsWatched == 0 {
		q.log.Debug().Msg("new viewer, generating initial feed")
		items = q.ranker.InitialFeed(catalog, count)
	} else {
		q.log.Debug().Int("watched", prefs.TotalItemsWatched).Msg("returning viewer, generating personalized feed")
		items = q.ranker.Recommend(catalog, prefs, q.profile.Interactions(), nil, count)
	}

	q.mu.Lock()
	q.items = model.Dedupe(items)
	q.cursor = 0
	q.ready = true
	length := len(q.items)
	q.mu.Unlock()

	metrics.QueueLength.Set(float64(length))
	q.log.Info().Int("items", length).Msg("queue initialized")

	return q.VisibleWindow(), nil
}

// VisibleWindow returns items[0 : min(cursor+Window, len)].
func (q *Queue) VisibleWindow() []model.Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	end := min(q.cursor+q.cfg.Window, len(q.items))
	return append([]model.Item(nil), q.items[:end]...)
}

// Advance moves the cursor forward by one. When the remaining lookahead drops
// to PrefetchThreshold or below, a prefetch starts in the background unless
// one is already running. Advance never blocks on ranking.
func (q *Queue) Advance(ctx context.Context) {
	q.mu.Lock()
	q.cursor++
	cursor := q.cursor
	remaining := len(q.items) - q.cursor
	rebuilding := q.rebuilding
	q.mu.Unlock()

	q.log.Debug().Int("cursor", cursor).Int("remaining", remaining).Msg("advanced")

	if remaining > q.cfg.PrefetchThreshold {
		return
	}
	if rebuilding {
		q.log.Debug().Msg("feed is rebuilding, not prefetching")
		return
	}

	if !q.acquire() {
		metrics.PrefetchSkipped.Inc()
		return
	}

	go q.prefetch(context.WithoutCancel(ctx))
}

// PrefetchMore appends the next batch synchronously and returns the number of
// items appended. It returns 0 without doing anything if a prefetch is
// already running.
func (q *Queue) PrefetchMore(ctx context.Context) int {
	if !q.acquire() {
		metrics.PrefetchSkipped.Inc()
		q.log.Debug().Msg("prefetch already running, skipping")
		return 0
	}

	return q.prefetch(ctx)
}

// acquire takes the prefetch token. Wait observes every token taken before it
// is called.
func (q *Queue) acquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.refreshing.CompareAndSwap(false, true) {
		return false
	}
	q.done = make(chan struct{})
	return true
}

// release returns the prefetch token and wakes Wait callers.
func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.refreshing.Store(false)
	close(q.done)
	q.done = nil
}

// prefetch runs with the token held and always releases it, including when
// the ranker panics.
func (q *Queue) prefetch(ctx context.Context) (appended int) {
	start := time.Now()
	result := "error"

	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("prefetch panicked")
			appended = 0
			result = "error"
		}
		q.release()
		metrics.RecordPrefetch(result, appended, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		q.log.Warn().Err(err).Msg("prefetch cancelled")
		return 0
	}

	q.mu.Lock()
	catalog := append([]model.Item(nil), q.catalog...)
	end := min(q.cursor, len(q.items))
	recent := append([]model.Item(nil), q.items[max(0, end-recentWindow):end]...)
	q.mu.Unlock()

	recs := q.ranker.Recommend(catalog, q.profile.Preferences(), q.profile.Interactions(), recent, q.cfg.BatchSize)

	q.mu.Lock()
	defer q.mu.Unlock()

	queued := make(map[string]struct{}, len(q.items))
	for _, item := range q.items {
		queued[item.ID] = struct{}{}
	}

	fresh := unqueued(recs, queued, len(recs))
	result = "appended"
	if len(fresh) == 0 {
		fresh = unqueued(catalog, queued, q.cfg.BatchSize)
		result = "fallback"
		if len(fresh) == 0 {
			result = "empty"
		}
		q.log.Debug().Int("fallback", len(fresh)).Msg("no new recommendations, using catalog fallback")
	}

	q.items = append(q.items, fresh...)
	metrics.QueueLength.Set(float64(len(q.items)))
	q.log.Debug().Int("appended", len(fresh)).Int("length", len(q.items)).Str("result", result).Msg("prefetch complete")

	return len(fresh)
}

// unqueued returns up to limit items whose ids are not in queued, marking
// each returned id as queued.
func unqueued(items []model.Item, queued map[string]struct{}, limit int) []model.Item {
	var out []model.Item
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		if _, ok := queued[item.ID]; ok {
			continue
		}
		queued[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// RefreshFeed clears the queue and runs Initialize again.
func (q *Queue) RefreshFeed(ctx context.Context) ([]model.Item, error) {
	q.mu.Lock()
	q.cursor = 0
	q.items = nil
	q.rebuilding = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.rebuilding = false
		q.mu.Unlock()
	}()

	q.log.Info().Msg("refreshing feed")
	return q.Initialize(ctx)
}

// UpdateCatalog replaces the pool used by future ranking calls. Queued items
// are left untouched.
func (q *Queue) UpdateCatalog(items []model.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.catalog = append([]model.Item(nil), items...)
	q.log.Debug().Int("catalog", len(items)).Msg("catalog updated")
}

// InsertNew puts item at the head of both the queue and the catalog and
// shifts the cursor by one so it keeps pointing at the same entry. An item
// already in the queue is not inserted again and false is returned.
func (q *Queue) InsertNew(item model.Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, queued := range q.items {
		if queued.ID == item.ID {
			return false
		}
	}

	q.items = append([]model.Item{item}, q.items...)
	q.catalog = append([]model.Item{item}, q.catalog...)
	q.cursor++

	metrics.QueueLength.Set(float64(len(q.items)))
	q.log.Debug().Str("item_id", item.ID).Int("cursor", q.cursor).Msg("inserted new item")
	return true
}

// Current returns the item under the cursor.
func (q *Queue) Current() (model.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cursor < 0 || q.cursor >= len(q.items) {
		return model.Item{}, false
	}
	return q.items[q.cursor], true
}

// SetCursor moves the cursor to index if it addresses a queued item.
func (q *Queue) SetCursor(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return false
	}
	q.cursor = index
	return true
}

// Cursor returns the cursor position.
func (q *Queue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the whole queue.
func (q *Queue) Items() []model.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Item(nil), q.items...)
}

// Catalog returns a copy of the ranking pool.
func (q *Queue) Catalog() []model.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Item(nil), q.catalog...)
}

// Lookup finds an item by id in the queue or the catalog.
func (q *Queue) Lookup(id string) (model.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.ID == id {
			return item, true
		}
	}
	for _, item := range q.catalog {
		if item.ID == id {
			return item, true
		}
	}
	return model.Item{}, false
}

// Wait blocks until the prefetch running at the time of the call, if any,
// has finished.
func (q *Queue) Wait() {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	if done != nil {
		<-done
	}
}
