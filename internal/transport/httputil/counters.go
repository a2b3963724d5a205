package httputil

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	platformmetrics "diyetlenio/internal/platform/metrics"
)

// ErrorCounters counts translated errors per machine code for the lifetime
// of the process. Recording is lock-free after the first occurrence of a code.
// Counts are mirrored to a Prometheus counter that Reset does not touch.
type ErrorCounters struct {
	counts sync.Map // code -> *atomic.Int64
	mirror *prometheus.CounterVec
}

// ErrorSnapshot is the administrative view of the counters.
type ErrorSnapshot struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// NewErrorCounters creates counters mirrored into reg. A nil reg disables the mirror.
func NewErrorCounters(reg prometheus.Registerer) *ErrorCounters {
	c := &ErrorCounters{}
	if reg != nil {
		c.mirror = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "error_translations_total",
			Help:      "Errors translated at the HTTP boundary by machine code",
		}, []string{"code"})
	}
	return c
}

// Record increments the count for code.
func (c *ErrorCounters) Record(code string) {
	v, ok := c.counts.Load(code)
	if !ok {
		v, _ = c.counts.LoadOrStore(code, new(atomic.Int64))
	}
	v.(*atomic.Int64).Add(1)
	if c.mirror != nil {
		c.mirror.WithLabelValues(code).Inc()
	}
}

// Count returns the current count for code.
func (c *ErrorCounters) Count(code string) int64 {
	if v, ok := c.counts.Load(code); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Snapshot returns the non-zero counts and their total.
func (c *ErrorCounters) Snapshot() ErrorSnapshot {
	snap := ErrorSnapshot{Counts: make(map[string]int64)}
	c.counts.Range(func(k, v any) bool {
		n := v.(*atomic.Int64).Load()
		if n > 0 {
			snap.Counts[k.(string)] = n
			snap.Total += n
		}
		return true
	})
	return snap
}

// Reset zeroes every count and returns the snapshot taken while resetting.
// Errors recorded concurrently land either in the returned snapshot or in the
// fresh counts, never in both and never lost.
func (c *ErrorCounters) Reset() ErrorSnapshot {
	snap := ErrorSnapshot{Counts: make(map[string]int64)}
	c.counts.Range(func(k, v any) bool {
		n := v.(*atomic.Int64).Swap(0)
		if n > 0 {
			snap.Counts[k.(string)] = n
			snap.Total += n
		}
		return true
	})
	return snap
}
