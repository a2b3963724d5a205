package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	platformmetrics "diyetlenio/internal/platform/metrics"
)

// Outcome labels.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeExempt  = "exempt"
)

type Metrics struct {
	Decisions          *prometheus.CounterVec
	FailOpenTotal      prometheus.Counter
	StoreLatency       prometheus.Histogram
	SweptWindowsTotal  prometheus.Counter
	SweepFailuresTotal prometheus.Counter
}

// New registers the rate-limit collectors with reg (default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(platformmetrics.Registerer(reg))
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limit admission decisions by outcome and period",
		}, []string{"outcome", "period"}),
		FailOpenTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "ratelimit_fail_open_total",
			Help:      "Requests admitted because the counter store was unavailable",
		}),
		StoreLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "ratelimit_store_latency_seconds",
			Help:      "Latency of counter store admission calls",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		SweptWindowsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "ratelimit_swept_windows_total",
			Help:      "Expired windows removed by the sweeper",
		}),
		SweepFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "ratelimit_sweep_failures_total",
			Help:      "Sweeper runs that failed",
		}),
	}
}

func (m *Metrics) ObserveDecision(outcome, period string) {
	m.Decisions.WithLabelValues(outcome, period).Inc()
}

func (m *Metrics) IncrementFailOpen() {
	m.FailOpenTotal.Inc()
}

func (m *Metrics) ObserveStoreLatency(seconds float64) {
	m.StoreLatency.Observe(seconds)
}

func (m *Metrics) AddSwept(n int) {
	m.SweptWindowsTotal.Add(float64(n))
}

func (m *Metrics) IncrementSweepFailures() {
	m.SweepFailuresTotal.Inc()
}
