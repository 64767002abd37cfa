/*
Package metrics exposes Prometheus collectors for the feed core.

Collectors are registered on the default registry via promauto. The CLI can
dump them with `reelfeed feed --metrics`.
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ViewsTracked counts TrackView calls by whether they created or merged a record.
	ViewsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelfeed_views_tracked_total",
			Help: "Total number of tracked views",
		},
		[]string{"outcome"}, // "created", "merged"
	)

	// PersistenceErrors counts failed blob store operations.
	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelfeed_persistence_errors_total",
			Help: "Total number of failed persistence operations",
		},
		[]string{"operation"}, // "load", "save", "clear"
	)

	// PrefetchRuns counts prefetch executions by result.
	PrefetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelfeed_prefetch_runs_total",
			Help: "Total number of prefetch executions",
		},
		[]string{"result"}, // "appended", "fallback", "empty", "error"
	)

	// PrefetchSkipped counts advances that crossed the threshold while a prefetch was in flight.
	PrefetchSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelfeed_prefetch_skipped_total",
			Help: "Prefetch triggers skipped because one was already in flight",
		},
	)

	// PrefetchDuration observes prefetch latency.
	PrefetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelfeed_prefetch_duration_seconds",
			Help:    "Duration of prefetch executions in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// ItemsAppended counts items appended to queues by prefetch.
	ItemsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelfeed_items_appended_total",
			Help: "Total number of items appended to feed queues",
		},
	)

	// QueueLength reports the length of the most recently updated queue.
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelfeed_queue_length",
			Help: "Current number of items in the feed queue",
		},
	)

	// CatalogFetches counts catalog source fetches by result.
	CatalogFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelfeed_catalog_fetches_total",
			Help: "Total number of catalog fetches",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)
)

// RecordPrefetch records one prefetch execution.
func RecordPrefetch(result string, appended int, duration time.Duration) {
	PrefetchRuns.WithLabelValues(result).Inc()
	PrefetchDuration.Observe(duration.Seconds())
	if appended > 0 {
		ItemsAppended.Add(float64(appended))
	}
}
