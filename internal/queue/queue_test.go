package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/reelfeed/internal/model"
	"github.com/khanglvm/reelfeed/internal/ranking"
)

type fakeProfile struct {
	prefs        model.Preferences
	interactions []model.InteractionRecord
}

func newProfile(watched int) *fakeProfile {
	p := model.NewPreferences()
	p.TotalItemsWatched = watched
	return &fakeProfile{prefs: p}
}

func (f *fakeProfile) Preferences() model.Preferences { return f.prefs.Clone() }
func (f *fakeProfile) Interactions() []model.InteractionRecord {
	return append([]model.InteractionRecord(nil), f.interactions...)
}

// spyRanker delegates to the real engine and records calls.
type spyRanker struct {
	engine *ranking.Engine

	mu          sync.Mutex
	initial     int
	recommend   int
	lastRecent  []model.Item
	lastCount   int
	lastCatalog []model.Item
}

func newSpy() *spyRanker { return &spyRanker{engine: ranking.NewEngine()} }

func (s *spyRanker) Recommend(catalog []model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recent []model.Item, count int) []model.Item {
	s.mu.Lock()
	s.recommend++
	s.lastRecent = recent
	s.lastCount = count
	s.lastCatalog = catalog
	s.mu.Unlock()
	return s.engine.Recommend(catalog, prefs, interactions, recent, count)
}

func (s *spyRanker) InitialFeed(catalog []model.Item, count int) []model.Item {
	s.mu.Lock()
	s.initial++
	s.lastCount = count
	s.mu.Unlock()
	return s.engine.InitialFeed(catalog, count)
}

// gateRanker blocks every Recommend call until release is closed.
type gateRanker struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	result  func(catalog []model.Item, count int) []model.Item
}

func newGate() *gateRanker {
	return &gateRanker{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		result: func(catalog []model.Item, count int) []model.Item {
			if len(catalog) > count {
				return catalog[:count]
			}
			return catalog
		},
	}
}

func (g *gateRanker) Recommend(catalog []model.Item, _ model.Preferences, _ []model.InteractionRecord, _ []model.Item, count int) []model.Item {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return g.result(catalog, count)
}

func (g *gateRanker) InitialFeed(catalog []model.Item, count int) []model.Item {
	if len(catalog) > count {
		return catalog[:count]
	}
	return catalog
}

// panicRanker panics in Recommend while armed.
type panicRanker struct {
	armed atomic.Bool
	spy   *spyRanker
}

func (p *panicRanker) Recommend(catalog []model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recent []model.Item, count int) []model.Item {
	if p.armed.Load() {
		panic("ranker exploded")
	}
	return p.spy.Recommend(catalog, prefs, interactions, recent, count)
}

func (p *panicRanker) InitialFeed(catalog []model.Item, count int) []model.Item {
	return p.spy.InitialFeed(catalog, count)
}

func makeCatalog(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		items[i] = model.Item{
			ID:          fmt.Sprintf("v%d", i+1),
			Creator:     model.Creator{ID: fmt.Sprintf("c%d", i%7)},
			Description: fmt.Sprintf("clip %d #tag%d", i, i%5),
			Likes:       int64(1000 * (n - i)),
			Comments:    int64(10 * i),
			Shares:      int64(i),
		}
	}
	return items
}

func assertUnique(t *testing.T, items []model.Item) {
	t.Helper()
	seen := map[string]bool{}
	for _, item := range items {
		require.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}
}

func TestInitialize_ColdStart(t *testing.T) {
	spy := newSpy()
	q := New(spy, newProfile(0), makeCatalog(30), Config{})
	assert.Equal(t, StateUninitialized, q.State())

	window, err := q.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, spy.initial)
	assert.Equal(t, 0, spy.recommend)
	assert.Equal(t, 2*DefaultBatchSize, spy.lastCount)
	assert.Equal(t, 20, q.Len())
	assert.Equal(t, 0, q.Cursor())
	assert.Len(t, window, DefaultWindow)
	assert.Equal(t, StateReady, q.State())
	assertUnique(t, q.Items())
}

func TestInitialize_ReturningViewer(t *testing.T) {
	spy := newSpy()
	q := New(spy, newProfile(4), makeCatalog(30), Config{})

	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, spy.initial)
	assert.Equal(t, 1, spy.recommend)
	assert.Empty(t, spy.lastRecent)
	assert.Equal(t, 20, q.Len())
}

func TestInitialize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := New(newSpy(), newProfile(0), makeCatalog(5), Config{})
	_, err := q.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateUninitialized, q.State())
}

func TestVisibleWindowLength(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(12), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		q.Wait()
		assert.Len(t, q.VisibleWindow(), min(q.Cursor()+DefaultWindow, q.Len()), "cursor %d", q.Cursor())
		q.Advance(context.Background())
	}
	q.Wait()
	assert.Len(t, q.VisibleWindow(), min(q.Cursor()+DefaultWindow, q.Len()))
}

func TestAdvance_PrefetchAtThreshold(t *testing.T) {
	spy := newSpy()
	q := New(spy, newProfile(0), makeCatalog(40), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 16; i++ {
		q.Advance(ctx)
	}
	q.Wait()
	assert.Equal(t, 20, q.Len(), "remaining 4 does not trigger a prefetch")
	assert.Equal(t, 0, spy.recommend)

	q.Advance(ctx)
	q.Wait()
	assert.Equal(t, 1, spy.recommend)
	assert.Equal(t, DefaultBatchSize, spy.lastCount)
	assert.Greater(t, q.Len(), 20)
	assert.LessOrEqual(t, q.Len(), 30)
	assert.Equal(t, 17, q.Cursor())
	assertUnique(t, q.Items())
	assert.Equal(t, StateReady, q.State())
}

func TestAdvance_SingleFlight(t *testing.T) {
	gate := newGate()
	q := New(gate, newProfile(0), makeCatalog(8), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, q.Len())

	ctx := context.Background()
	q.Advance(ctx) // remaining 3: starts a prefetch
	<-gate.started
	assert.Equal(t, StateRefreshing, q.State())

	q.Advance(ctx) // remaining 2: a prefetch is already running
	assert.Equal(t, 0, q.PrefetchMore(ctx))

	close(gate.release)
	q.Wait()

	assert.Equal(t, int32(1), gate.calls.Load())
	assert.Equal(t, StateReady, q.State())
	assertUnique(t, q.Items())
}

func TestPrefetchMore_ReleasesTokenOnPanic(t *testing.T) {
	ranker := &panicRanker{spy: newSpy()}
	q := New(ranker, newProfile(0), makeCatalog(30), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	ranker.armed.Store(true)
	assert.Equal(t, 0, q.PrefetchMore(context.Background()))
	assert.Equal(t, StateReady, q.State())
	assert.Equal(t, 20, q.Len())

	ranker.armed.Store(false)
	appended := q.PrefetchMore(context.Background())
	assert.Positive(t, appended)
	assert.Equal(t, 20+appended, q.Len())
}

func TestPrefetchMore_CancelledContextReleasesToken(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(30), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, q.PrefetchMore(ctx))
	assert.Equal(t, StateReady, q.State())
	assert.Positive(t, q.PrefetchMore(context.Background()))
}

func TestPrefetchMore_RecentWindow(t *testing.T) {
	spy := newSpy()
	q := New(spy, newProfile(0), makeCatalog(30), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	require.True(t, q.SetCursor(7))
	q.PrefetchMore(context.Background())

	items := q.Items()
	assert.Equal(t, model.IDs(items[2:7]), model.IDs(spy.lastRecent))

	require.True(t, q.SetCursor(2))
	q.PrefetchMore(context.Background())
	assert.Equal(t, model.IDs(items[0:2]), model.IDs(spy.lastRecent))
}

func TestPrefetchMore_FallbackAndEmpty(t *testing.T) {
	gate := newGate()
	close(gate.release)
	// The ranker only ever returns items that are already queued.
	gate.result = func(catalog []model.Item, count int) []model.Item { return catalog[:2] }
	gate.started = make(chan struct{}, 64)

	q := New(gate, newProfile(0), makeCatalog(7), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2", "v3", "v4"}, model.IDs(q.Items()))

	assert.Equal(t, 2, q.PrefetchMore(context.Background()), "fallback appends unqueued catalog items")
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5", "v6"}, model.IDs(q.Items()))

	assert.Equal(t, 1, q.PrefetchMore(context.Background()))
	assert.Equal(t, 0, q.PrefetchMore(context.Background()), "catalog exhausted")
	assert.Equal(t, 7, q.Len())
	assertUnique(t, q.Items())
}

func TestPrefetchMore_DropsQueuedRecommendations(t *testing.T) {
	gate := newGate()
	close(gate.release)
	gate.started = make(chan struct{}, 64)
	gate.result = func(catalog []model.Item, _ int) []model.Item {
		return []model.Item{catalog[0], catalog[5], catalog[1], catalog[6]}
	}

	q := New(gate, newProfile(0), makeCatalog(10), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, q.PrefetchMore(context.Background()))
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v6", "v7"}, model.IDs(q.Items()))
}

func TestRefreshFeed(t *testing.T) {
	spy := newSpy()
	profile := newProfile(0)
	q := New(spy, profile, makeCatalog(30), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	require.True(t, q.SetCursor(10))
	q.PrefetchMore(context.Background())
	require.Greater(t, q.Len(), 20)

	profile.prefs.TotalItemsWatched = 3
	window, err := q.RefreshFeed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, q.Cursor())
	assert.Equal(t, 20, q.Len())
	assert.Len(t, window, DefaultWindow)
	assert.Equal(t, 2, spy.recommend, "warm path after refresh")
	assert.Equal(t, StateReady, q.State())
}

// A prefetch that outlives a refresh still appends into the new queue
// generation. Uniqueness holds; the batch is simply stale.
func TestRefreshFeed_RaceWithInflightPrefetch(t *testing.T) {
	gate := newGate()
	q := New(gate, newProfile(0), makeCatalog(12), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	q.Advance(context.Background())
	<-gate.started

	_, err = q.RefreshFeed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, q.Len())

	gate.result = func(catalog []model.Item, _ int) []model.Item { return catalog[8:10] }
	close(gate.release)
	q.Wait()

	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v9", "v10"}, model.IDs(q.Items()))
	assert.Equal(t, 0, q.Cursor())
	assertUnique(t, q.Items())
}

func TestAdvance_NoPrefetchWhileRebuilding(t *testing.T) {
	gate := newGate()
	profile := newProfile(0)
	q := New(gate, profile, makeCatalog(12), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	// A returning viewer makes RefreshFeed block in Recommend.
	profile.prefs.TotalItemsWatched = 1
	refreshed := make(chan error, 1)
	go func() {
		_, err := q.RefreshFeed(context.Background())
		refreshed <- err
	}()
	<-gate.started
	require.Equal(t, StateRefreshing, q.State())

	q.Advance(context.Background()) // empty queue, but the feed is rebuilding
	assert.False(t, q.refreshing.Load(), "no prefetch token taken during a rebuild")

	close(gate.release)
	require.NoError(t, <-refreshed)
	q.Wait()

	assert.Equal(t, int32(1), gate.calls.Load())
	assert.Equal(t, 4, q.Len())
	assert.Equal(t, 0, q.Cursor())
	assert.Equal(t, StateReady, q.State())
}

func TestWait_BlocksUntilPrefetchFinishes(t *testing.T) {
	gate := newGate()
	q := New(gate, newProfile(0), makeCatalog(12), Config{BatchSize: 2})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	prefetched := make(chan int, 1)
	go func() { prefetched <- q.PrefetchMore(context.Background()) }()
	<-gate.started

	waited := make(chan struct{})
	go func() {
		q.Wait()
		close(waited)
	}()

	assert.Never(t, func() bool {
		select {
		case <-waited:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(gate.release)
	<-waited
	assert.Equal(t, 2, <-prefetched)
	assert.Equal(t, 6, q.Len())

	q.Wait() // nothing running
}

func TestUpdateCatalog(t *testing.T) {
	spy := newSpy()
	q := New(spy, newProfile(0), makeCatalog(20), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)
	before := q.Items()

	fresh := []model.Item{{ID: "new-1", Creator: model.Creator{ID: "x"}}, {ID: "new-2", Creator: model.Creator{ID: "y"}}}
	q.UpdateCatalog(fresh)
	assert.Equal(t, before, q.Items(), "queued items are untouched")

	assert.Equal(t, 2, q.PrefetchMore(context.Background()))
	assert.Equal(t, model.IDs(fresh), model.IDs(spy.lastCatalog))
	assert.Equal(t, []string{"new-1", "new-2"}, model.IDs(q.Items()[20:]))
}

// InsertNew shifts the cursor by one on every insert, with no check against
// what the viewer is looking at or an in-flight prefetch. This pins that
// behavior so any change to it is deliberate.
func TestInsertNew_ShiftsCursor(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(20), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	require.True(t, q.SetCursor(3))
	current, ok := q.Current()
	require.True(t, ok)

	upload := model.Item{ID: "upload-1", Creator: model.Creator{ID: "me"}}
	require.True(t, q.InsertNew(upload))

	assert.Equal(t, 4, q.Cursor())
	assert.Equal(t, 21, q.Len())
	assert.Equal(t, "upload-1", q.Items()[0].ID)

	still, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, current.ID, still.ID)

	got, ok := q.Lookup("upload-1")
	require.True(t, ok)
	assert.Equal(t, upload, got)

	// From the very first position the viewer is moved off the item they
	// were watching onto the one after it.
	q2 := New(newSpy(), newProfile(0), makeCatalog(20), Config{})
	_, err = q2.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, q2.InsertNew(upload))
	assert.Equal(t, 1, q2.Cursor())
}

func TestInsertNew_AlreadyQueued(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(20), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	existing := q.Items()[2]
	assert.False(t, q.InsertNew(existing))
	assert.Equal(t, 0, q.Cursor())
	assert.Equal(t, 20, q.Len())
}

func TestSetCursorAndCurrent(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(6), Config{})

	_, ok := q.Current()
	assert.False(t, ok, "empty queue")
	assert.False(t, q.SetCursor(0))

	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	assert.False(t, q.SetCursor(-1))
	assert.False(t, q.SetCursor(6))
	assert.True(t, q.SetCursor(5))

	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, q.Items()[5].ID, current.ID)
}

func TestLookupMissing(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(3), Config{})
	_, ok := q.Lookup("nope")
	assert.False(t, ok)

	item, ok := q.Lookup("v2")
	require.True(t, ok, "catalog items resolve before initialization")
	assert.Equal(t, "v2", item.ID)
}

func TestConcurrentReaders(t *testing.T) {
	q := New(newSpy(), newProfile(0), makeCatalog(60), Config{})
	_, err := q.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			q.Advance(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = q.VisibleWindow()
			_ = q.State()
			_, _ = q.Current()
		}
	}()
	wg.Wait()
	q.Wait()

	assert.Equal(t, 40, q.Cursor())
	assertUnique(t, q.Items())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "unknown", State(42).String())
}
