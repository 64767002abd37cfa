package learning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/metrics"
	"github.com/khanglvm/reelfeed/internal/model"
	"github.com/khanglvm/reelfeed/internal/storage"
)

const (
	// DefaultMaxInteractions caps the interaction list; the oldest records are dropped.
	DefaultMaxInteractions = 200

	// favoriteCompletion is the completion rate above which a view adds favorites.
	favoriteCompletion = 75.0
)

// Option configures a Store.
type Option func(*Store)

// WithMaxInteractions overrides DefaultMaxInteractions.
func WithMaxInteractions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxInteractions = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJournal appends every tracked view to j. The store closes j on Close.
func WithJournal(j *Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// Store holds one viewer's interaction records and preference profile.
// It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	interactions []model.InteractionRecord // newest first
	prefs        model.Preferences

	blobs           storage.BlobStore
	maxInteractions int
	now             func() time.Time
	journal         *Journal
	saver           *saver
	closeOnce       sync.Once
	log             zerolog.Logger
}

// NewStore creates an empty store persisting to blobs and starts its
// background saver. Call Load to restore persisted state and Close when done.
func NewStore(blobs storage.BlobStore, opts ...Option) *Store {
	s := &Store{
		prefs:           model.NewPreferences(),
		blobs:           blobs,
		maxInteractions: DefaultMaxInteractions,
		now:             time.Now,
		log:             logging.Component("learning"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.saver = newSaver(s.Save, s.log)
	return s
}

// Load replaces in-memory state with the persisted state. Absent keys load as
// empty; any read or decode failure is logged and leaves the store empty.
func (s *Store) Load(ctx context.Context) {
	interactions, prefs, err := s.read(ctx)
	if err != nil {
		metrics.PersistenceErrors.WithLabelValues("load").Inc()
		s.log.Warn().Err(err).Msg("failed to load interactions, starting empty")
		interactions, prefs = nil, model.NewPreferences()
	}

	s.mu.Lock()
	s.interactions = interactions
	s.prefs = prefs
	s.mu.Unlock()

	s.log.Debug().
		Int("interactions", len(interactions)).
		Int("total_watched", prefs.TotalItemsWatched).
		Msg("loaded learning state")
}

func (s *Store) read(ctx context.Context) ([]model.InteractionRecord, model.Preferences, error) {
	var interactions []model.InteractionRecord
	prefs := model.NewPreferences()

	data, err := s.blobs.Get(ctx, InteractionsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, prefs, err
	default:
		if interactions, err = DecodeInteractions(data); err != nil {
			return nil, prefs, err
		}
	}

	data, err = s.blobs.Get(ctx, PreferencesKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, prefs, err
	default:
		if prefs, err = DecodePreferences(data); err != nil {
			return nil, prefs, err
		}
	}

	if len(interactions) > s.maxInteractions {
		interactions = interactions[:s.maxInteractions]
	}

	return interactions, prefs, nil
}

// Save writes both keys. Concurrent writers follow last-save-wins.
// Failures are logged and counted; the in-memory state is kept either way.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	interactions, ierr := EncodeInteractions(s.interactions)
	prefs, perr := EncodePreferences(s.prefs)
	s.mu.RUnlock()

	err := errors.Join(ierr, perr)
	if err == nil {
		err = errors.Join(
			s.blobs.Set(ctx, InteractionsKey, interactions),
			s.blobs.Set(ctx, PreferencesKey, prefs),
		)
	}
	if err != nil {
		metrics.PersistenceErrors.WithLabelValues("save").Inc()
		s.log.Warn().Err(err).Msg("failed to save interactions")
	}
	return err
}

// TrackView records a finished view, updates the preference profile and
// schedules persistence. Repeating an identical event leaves the state unchanged.
func (s *Store) TrackView(ctx context.Context, ev ViewEvent) model.InteractionRecord {
	ev.WatchTimeSeconds = seconds(ev.WatchTimeSeconds)
	ev.DurationSeconds = seconds(ev.DurationSeconds)
	completion := CompletionRate(ev.WatchTimeSeconds, ev.DurationSeconds)
	now := s.now()

	next := model.InteractionRecord{
		ItemID:           ev.ItemID,
		Watched:          true,
		WatchTimeSeconds: ev.WatchTimeSeconds,
		CompletionRate:   completion,
		Liked:            ev.Liked,
		Commented:        ev.Commented,
		Shared:           ev.Shared,
		LastUpdated:      now,
	}

	s.mu.Lock()
	rec, merged := s.upsert(next)
	if ev.Liked || completion > favoriteCompletion {
		if ev.CreatorID != "" {
			s.prefs.FavoriteCreators[ev.CreatorID] = struct{}{}
		}
		for _, tag := range normalizeTags(ev.Hashtags) {
			s.prefs.FavoriteHashtags[tag] = struct{}{}
		}
	}
	s.recomputeTotals()
	s.mu.Unlock()

	outcome := "created"
	if merged {
		outcome = "merged"
	}
	metrics.ViewsTracked.WithLabelValues(outcome).Inc()

	s.log.Debug().
		Str("item_id", ev.ItemID).
		Float64("completion", completion).
		Bool("liked", ev.Liked).
		Str("outcome", outcome).
		Msg("tracked view")

	if s.journal != nil {
		if err := s.journal.Append(now, ev, completion, merged); err != nil {
			s.log.Warn().Err(err).Msg("failed to append journal entry")
		}
	}

	s.saver.request()
	return rec
}

// upsert merges next into an existing record or prepends it. Must be called with mu held.
func (s *Store) upsert(next model.InteractionRecord) (model.InteractionRecord, bool) {
	for i, rec := range s.interactions {
		if rec.ItemID == next.ItemID {
			s.interactions[i] = rec.Merge(next)
			return s.interactions[i], true
		}
	}

	s.interactions = append([]model.InteractionRecord{next}, s.interactions...)
	if len(s.interactions) > s.maxInteractions {
		s.interactions = s.interactions[:s.maxInteractions]
	}
	return next, false
}

// recomputeTotals must be called with mu held.
func (s *Store) recomputeTotals() {
	total := 0.0
	watched := 0
	for _, rec := range s.interactions {
		if rec.Watched {
			total += rec.WatchTimeSeconds
			watched++
		}
	}

	s.prefs.TotalItemsWatched = watched
	s.prefs.AvgWatchTimeSeconds = 0
	if watched > 0 {
		s.prefs.AvgWatchTimeSeconds = total / float64(watched)
	}
}

// Clear resets both structures and removes the persisted keys.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.interactions = nil
	s.prefs = model.NewPreferences()
	s.mu.Unlock()

	// Pending saves must land before the keys are removed.
	if err := s.saver.flush(ctx); err != nil {
		return err
	}

	err := errors.Join(
		s.blobs.Remove(ctx, InteractionsKey),
		s.blobs.Remove(ctx, PreferencesKey),
	)
	if err != nil {
		metrics.PersistenceErrors.WithLabelValues("clear").Inc()
		s.log.Warn().Err(err).Msg("failed to remove persisted interactions")
	}

	s.log.Info().Msg("cleared learning state")
	return err
}

// Preferences returns a deep copy of the profile.
func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.Clone()
}

// Interactions returns a copy of the records, newest first.
func (s *Store) Interactions() []model.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.InteractionRecord(nil), s.interactions...)
}

// HasSeen reports whether a record exists for itemID.
func (s *Store) HasSeen(itemID string) bool {
	_, ok := s.Interaction(itemID)
	return ok
}

// Interaction returns the record for itemID.
func (s *Store) Interaction(itemID string) (model.InteractionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.interactions {
		if rec.ItemID == itemID {
			return rec, true
		}
	}
	return model.InteractionRecord{}, false
}

// Flush waits for scheduled saves to complete.
func (s *Store) Flush(ctx context.Context) error {
	return s.saver.flush(ctx)
}

// Close writes pending state, stops the saver and closes the journal.
// The BlobStore is owned by the caller and left open.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.saver.stop()
		if s.journal != nil {
			err = s.journal.Close()
		}
	})
	return err
}
