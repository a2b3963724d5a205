package request

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	platformmetrics "diyetlenio/internal/platform/metrics"
)

// unmatchedRoute labels requests that matched no route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Responses       *prometheus.CounterVec
}

// NewMetrics registers the request collectors with reg (default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(platformmetrics.Registerer(reg))
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "endpoint_latency_seconds",
			Help:      "Latency of endpoints in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: platformmetrics.Namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by route and status class",
		}, []string{"route", "class"}),
	}
}

// Observe records latency and status class for a completed request.
func (m *Metrics) Observe(r *http.Request, status int, d time.Duration) {
	route := Route(r)
	m.EndpointLatency.WithLabelValues(r.Method, route).Observe(d.Seconds())
	m.Responses.WithLabelValues(route, StatusClass(status)).Inc()
}

// Route returns the matched chi route pattern.
func Route(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

// StatusClass maps 404 to "4xx".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
