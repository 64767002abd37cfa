/*
Package session owns the per-viewer services for the lifetime of a login.

A Session wires a ranking engine, the viewer's learning store and a feed queue
over one catalog. It is created at login and torn down with Close; Logout
wipes the viewer's history and rebuilds the feed.
*/
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khanglvm/reelfeed/internal/catalog"
	"github.com/khanglvm/reelfeed/internal/learning"
	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/model"
	"github.com/khanglvm/reelfeed/internal/queue"
	"github.com/khanglvm/reelfeed/internal/ranking"
	"github.com/khanglvm/reelfeed/internal/storage"
)

// Config configures a Session.
type Config struct {
	// Queue tunes the feed queue.
	Queue queue.Config

	// MaxInteractions caps the learning store. Zero keeps the default.
	MaxInteractions int

	// Journal enables the view journal when Path is set.
	Journal learning.JournalConfig

	// Clock overrides the learning store timestamp source.
	Clock func() time.Time
}

// Session is one viewer's engine, store and queue.
type Session struct {
	id     string
	source catalog.Source
	engine *ranking.Engine
	store  *learning.Store
	queue  *queue.Queue
	log    zerolog.Logger
}

// New fetches the catalog from source, restores the viewer's history from
// blobs and builds the feed queue. The queue is not initialized; call Start.
func New(ctx context.Context, source catalog.Source, blobs storage.BlobStore, cfg Config) (*Session, error) {
	items, err := source.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	opts := []learning.Option{learning.WithMaxInteractions(cfg.MaxInteractions)}
	if cfg.Clock != nil {
		opts = append(opts, learning.WithClock(cfg.Clock))
	}
	if cfg.Journal.Path != "" {
		opts = append(opts, learning.WithJournal(learning.NewJournal(cfg.Journal)))
	}

	store := learning.NewStore(blobs, opts...)
	store.Load(ctx)

	engine := ranking.NewEngine()
	id := uuid.NewString()

	s := &Session{
		id:     id,
		source: source,
		engine: engine,
		store:  store,
		queue:  queue.New(engine, store, items, cfg.Queue),
		log:    logging.Component("session").With().Str("session_id", id).Logger(),
	}

	s.log.Info().Int("catalog", len(items)).Msg("session started")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Engine returns the ranking engine.
func (s *Session) Engine() *ranking.Engine {
	return s.engine
}

// Store returns the viewer's learning store.
func (s *Session) Store() *learning.Store {
	return s.store
}

// Queue returns the feed queue.
func (s *Session) Queue() *queue.Queue {
	return s.queue
}

// Start initializes the feed and returns the visible window.
func (s *Session) Start(ctx context.Context) ([]model.Item, error) {
	return s.queue.Initialize(ctx)
}

// TrackView records a view of itemID. Creator and hashtags are taken from
// the item; an id that is neither queued nor in the catalog is ignored.
func (s *Session) TrackView(ctx context.Context, itemID string, watchSeconds, durationSeconds float64, liked, commented, shared bool) (model.InteractionRecord, bool) {
	item, ok := s.queue.Lookup(itemID)
	if !ok {
		s.log.Debug().Str("item_id", itemID).Msg("ignoring view of unknown item")
		return model.InteractionRecord{}, false
	}

	rec := s.store.TrackView(ctx, learning.ViewEvent{
		ItemID:           item.ID,
		WatchTimeSeconds: watchSeconds,
		DurationSeconds:  durationSeconds,
		Liked:            liked,
		Commented:        commented,
		Shared:           shared,
		CreatorID:        item.Creator.ID,
		Hashtags:         item.Hashtags(),
	})
	return rec, true
}

// Explain ranks the catalog items matching filter for the viewer and returns
// the top count with their reasons. A nil filter ranks the whole catalog. The
// recent window is the last items consumed from the queue.
func (s *Session) Explain(count int, filter *catalog.Filter) []ranking.Ranked {
	window := s.queue.Items()
	end := min(s.queue.Cursor(), len(window))
	recent := window[max(0, end-5):end]

	pool := filter.Apply(s.queue.Catalog())
	return s.engine.Explain(pool, s.store.Preferences(), s.store.Interactions(), recent, count)
}

// ReloadCatalog fetches the catalog again and hands it to the queue for
// future ranking calls.
func (s *Session) ReloadCatalog(ctx context.Context) (int, error) {
	items, err := s.source.Items(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload catalog: %w", err)
	}
	s.queue.UpdateCatalog(items)
	return len(items), nil
}

// Logout clears the viewer's history and rebuilds the feed from scratch.
func (s *Session) Logout(ctx context.Context) ([]model.Item, error) {
	s.queue.Wait()
	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted history")
	}
	s.log.Info().Msg("viewer history cleared")
	return s.queue.RefreshFeed(ctx)
}

// Close waits for any running prefetch, writes pending state and stops the
// learning store. The BlobStore stays open.
func (s *Session) Close() error {
	s.queue.Wait()
	err := s.store.Close()
	s.log.Info().Msg("session closed")
	return err
}
