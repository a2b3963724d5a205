// Package httptransport composes the request pipeline. Every request passes,
// in order, through:
//
//	request ID, start time, client metadata
//	egress log + metrics, security headers, panic boundary
//	health bypass            (health endpoint and /metrics stop here)
//	rate limit               (exempt prefixes skip it)
//	ingress log, body cap, principal, version negotiation
//	route handler            (mounted through the error boundary)
//
// Domain modules plug in through Module and can only be mounted behind the
// full pipeline.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"diyetlenio/internal/platform/health"
	ratelimitmw "diyetlenio/internal/ratelimit/middleware"
	"diyetlenio/internal/transport/httputil"
	"diyetlenio/internal/versioning"
	versionmw "diyetlenio/internal/versioning/middleware"
	"diyetlenio/pkg/platform/middleware/admin"
	"diyetlenio/pkg/platform/middleware/auth"
	"diyetlenio/pkg/platform/middleware/metadata"
	"diyetlenio/pkg/platform/middleware/request"
	"diyetlenio/pkg/platform/middleware/security"
)

// VersionsPath lists the API versions and is linked from deprecation headers.
const VersionsPath = "/api/versions/"

// Module is a domain surface mounted behind the pipeline.
type Module interface {
	Register(r chi.Router, h httputil.Adapter)
}

// AdminModule is mounted behind the admin token check.
type AdminModule interface {
	RegisterAdmin(r chi.Router, h httputil.Adapter)
}

type Config struct {
	HealthPath    string
	AdminToken    string
	Debug         bool
	MaxLoggedBody int64
	MaxBodyBytes  int64
}

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Translator *httputil.Translator
	Versions   *versioning.Registry
	Health     *health.Handler
	Metadata   *metadata.Middleware
	// RateLimit is nil when rate limiting is disabled.
	RateLimit *ratelimitmw.Middleware
	// Tokens is nil when no signing key is configured; every request is then anonymous.
	Tokens         auth.TokenValidator
	RequestMetrics *request.Metrics
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Clock   func() time.Time

	Modules      []Module
	AdminModules []AdminModule
}

// NewRouter wires the pipeline and every module. The returned handler is traced with otelhttp.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := deps.Translator
	if t == nil {
		t = httputil.NewTranslator(logger, nil)
	}
	meta := deps.Metadata
	if meta == nil {
		meta = metadata.NewMiddleware(nil)
	}
	healthPath := deps.Config.HealthPath
	if healthPath == "" {
		healthPath = "/health/"
	}

	notFound := t.Handle(func(http.ResponseWriter, *http.Request) error {
		return httputil.NewStatusError(http.StatusNotFound)
	})
	methodNotAllowed := t.Handle(func(http.ResponseWriter, *http.Request) error {
		return httputil.NewStatusError(http.StatusMethodNotAllowed)
	})

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.StartTime(deps.Clock))
	r.Use(meta.Handler)
	r.Use(request.Egress(logger, deps.RequestMetrics, healthPath))
	r.Use(security.Headers(deps.Config.Debug))
	r.Use(t.Recovery)
	r.NotFound(notFound.ServeHTTP)
	r.MethodNotAllowed(methodNotAllowed.ServeHTTP)

	if deps.Health != nil {
		deps.Health.Register(r, healthPath)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	api := chi.NewRouter()
	if deps.RateLimit != nil {
		api.Use(deps.RateLimit.RateLimit)
	}
	api.Use(request.Ingress(logger, deps.Config.MaxLoggedBody))
	api.Use(request.BodyLimit(deps.Config.MaxBodyBytes))
	api.Use(auth.ResolvePrincipal(deps.Tokens, t, logger))
	if deps.Versions != nil {
		api.Use(versionmw.New(deps.Versions, t, logger, VersionsPath).Negotiate)
	}

	api.NotFound(notFound.ServeHTTP)
	api.MethodNotAllowed(methodNotAllowed.ServeHTTP)

	for _, m := range deps.Modules {
		m.Register(api, t)
	}
	if len(deps.AdminModules) > 0 {
		api.Group(func(ar chi.Router) {
			ar.Use(admin.RequireAdminToken(deps.Config.AdminToken, t, logger))
			for _, m := range deps.AdminModules {
				m.RegisterAdmin(ar, t)
			}
		})
	}

	r.Mount("/", api)

	return otelhttp.NewHandler(r, "http.server")
}
