// Package health serves the reserved health endpoint and the liveness and readiness probes.
package health

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"diyetlenio/internal/transport/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Check names reported by the health endpoint.
const (
	CheckDatabase = "database"
	CheckCache    = "cache"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// CheckFunc checks the health of a dependency.
// It returns nil if healthy, or an error describing the issue.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	startTime   time.Time
	environment string
	timeout     time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

type Option func(*Handler)

// WithTimeout bounds each dependency check.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func New(environment string, opts ...Option) *Handler {
	h := &Handler{
		environment: environment,
		timeout:     2 * time.Second,
		now:         time.Now,
		checks:      make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startTime = h.now()
	return h
}

// RegisterCheck adds a named dependency check. The database and cache checks
// are reported by the health endpoint; every check gates readiness.
// A dependency that is not configured has no check and reports ok.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the health endpoint at path and the probes below it.
func (h *Handler) Register(r chi.Router, path string) {
	r.Get(path, h.HandleHealth)
	r.Get(path+"live", h.HandleLiveness)
	r.Get(path+"ready", h.HandleReadiness)
}

// Response is the body of the health endpoint.
type Response struct {
	Status    string  `json:"status"`
	Database  string  `json:"database"`
	Cache     string  `json:"cache"`
	Timestamp float64 `json:"timestamp"`
}

// HandleHealth checks the database and the cache and answers 200 only when both pass.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	results := h.run(r.Context())

	resp := Response{
		Status:    statusOK,
		Database:  results[CheckDatabase],
		Cache:     results[CheckCache],
		Timestamp: float64(h.now().UnixMicro()) / 1e6,
	}
	if resp.Database == "" {
		resp.Database = statusOK
	}
	if resp.Cache == "" {
		resp.Cache = statusOK
	}

	status := http.StatusOK
	if resp.Database != statusOK || resp.Cache != statusOK {
		resp.Status = statusError
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HandleLiveness always answers 200 while the process serves requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: Version,
	})
}

type ReadinessResponse struct {
	Status        string            `json:"status"`
	Environment   string            `json:"environment"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// HandleReadiness returns 503 if any registered check fails.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	results := h.run(r.Context())

	resp := ReadinessResponse{
		Status:        "ready",
		Environment:   h.environment,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
		Checks:        results,
	}
	for _, result := range results {
		if result != statusOK {
			resp.Status = "not_ready"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// run executes every check concurrently, each under the check timeout.
func (h *Handler) run(ctx context.Context) map[string]string {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	maps.Copy(checks, h.checks)
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
		g       errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			result := statusOK
			if err := check(cctx); err != nil {
				result = statusError + ": " + err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
