package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/metrics"
	"github.com/khanglvm/reelfeed/internal/model"
)

// BreakerConfig configures a BreakerSource.
type BreakerConfig struct {
	// Name identifies the circuit breaker instance.
	Name string

	// MaxRequests is the number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic reset period for counts.
	Interval time.Duration

	// Timeout is the duration in open state before transitioning to half-open.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "catalog",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
	}
}

// BreakerSource wraps a Source with a circuit breaker. When the upstream
// fails, or the breaker is open, the last successfully fetched catalog is
// served instead. An error is returned only if no catalog was ever fetched.
type BreakerSource struct {
	upstream Source
	cb       *gobreaker.CircuitBreaker[[]model.Item]

	mu       sync.RWMutex
	lastGood []model.Item
	log      zerolog.Logger
}

// NewBreakerSource wraps upstream.
func NewBreakerSource(upstream Source, cfg BreakerConfig) *BreakerSource {
	b := &BreakerSource{
		upstream: upstream,
		log:      logging.Component("catalog"),
	}

	b.cb = gobreaker.NewCircuitBreaker[[]model.Item](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("catalog breaker state changed")
		},
	})

	return b
}

// Items fetches through the breaker.
func (b *BreakerSource) Items(ctx context.Context) ([]model.Item, error) {
	items, err := b.cb.Execute(func() ([]model.Item, error) {
		return b.upstream.Items(ctx)
	})
	if err == nil {
		metrics.CatalogFetches.WithLabelValues("ok").Inc()
		b.mu.Lock()
		b.lastGood = items
		b.mu.Unlock()
		return append([]model.Item(nil), items...), nil
	}

	b.mu.RLock()
	stale := b.lastGood
	b.mu.RUnlock()

	if stale == nil {
		metrics.CatalogFetches.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CatalogFetches.WithLabelValues("stale").Inc()
	b.log.Warn().
		Err(err).
		Bool("breaker_open", errors.Is(err, gobreaker.ErrOpenState)).
		Int("items", len(stale)).
		Msg("serving last good catalog")
	return append([]model.Item(nil), stale...), nil
}

// State reports the breaker state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}
