package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPrefetch(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		appended int
	}{
		{"appended batch", "appended", 10},
		{"fallback batch", "fallback", 3},
		{"nothing new", "empty", 0},
		{"failure", "error", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := testutil.ToFloat64(PrefetchRuns.WithLabelValues(tt.result))
			items := testutil.ToFloat64(ItemsAppended)

			RecordPrefetch(tt.result, tt.appended, 2*time.Millisecond)

			assert.Equal(t, runs+1, testutil.ToFloat64(PrefetchRuns.WithLabelValues(tt.result)))
			assert.Equal(t, items+float64(tt.appended), testutil.ToFloat64(ItemsAppended))
		})
	}
}
