package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "diyetlenio/internal/jwt_token"
	"diyetlenio/internal/platform/health"
	"diyetlenio/internal/ratelimit/config"
	ratelimitmw "diyetlenio/internal/ratelimit/middleware"
	"diyetlenio/internal/ratelimit/service/requestlimit"
	"diyetlenio/internal/ratelimit/store/window"
	"diyetlenio/internal/transport/httputil"
	"diyetlenio/internal/versioning"
	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/platform/middleware/admin"
	"diyetlenio/pkg/requestcontext"
)

const testAdminToken = "s3cr3t-admin"

// sampleModule stands in for a domain surface.
type sampleModule struct{}

func (sampleModule) Register(r chi.Router, h httputil.Adapter) {
	r.Method(http.MethodPost, "/api/v1/auth/login/", h.Handle(func(w http.ResponseWriter, r *http.Request) error {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"principal": requestcontext.Principal(r.Context())})
		return nil
	}))
	r.Method(http.MethodPost, "/api/v1/appointments/", h.Handle(func(http.ResponseWriter, *http.Request) error {
		return dErrors.BusinessLogic("Slot already booked", "SLOT_CONFLICT")
	}))
	r.Method(http.MethodGet, "/api/v1/reports/", h.Handle(func(http.ResponseWriter, *http.Request) error {
		return errors.New("pq: relation \"reports\" does not exist")
	}))
	r.Method(http.MethodGet, "/api/v1/panic/", h.Handle(func(http.ResponseWriter, *http.Request) error {
		panic("nil map write")
	}))
	r.Method(http.MethodGet, "/api/v1/features/", h.Handle(func(w http.ResponseWriter, r *http.Request) error {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"webhooks": versioning.FeatureEnabled(r.Context(), "webhook_support")})
		return nil
	}))
}

type RouterSuite struct {
	suite.Suite
	now      time.Time
	counters *httputil.ErrorCounters
	health   *health.Handler
	tokens   *jwttoken.JWTService
	router   http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.build(false)
}

func (s *RouterSuite) build(debug bool) {
	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return s.now }

	policy, err := config.NewPolicy("200/hour", config.DefaultOverrides(), config.DefaultExemptPrefixes())
	s.Require().NoError(err)
	limiter, err := requestlimit.New(window.NewInMemoryStore(window.WithClock(clock)), requestlimit.WithPolicy(policy))
	s.Require().NoError(err)

	versions, err := versioning.NewRegistry(versioning.DefaultDescriptors(), versioning.DefaultVersion)
	s.Require().NoError(err)

	s.counters = httputil.NewErrorCounters(nil)
	translator := httputil.NewTranslator(logger, s.counters, httputil.WithDebug(debug))
	s.health = health.New("test", health.WithClock(clock))
	s.tokens = jwttoken.NewJWTService("router-test-signing-key", "diyetlenio")

	s.router = NewRouter(Dependencies{
		Config: Config{
			HealthPath:    "/health/",
			AdminToken:    testAdminToken,
			Debug:         debug,
			MaxLoggedBody: 1024,
			MaxBodyBytes:  1 << 20,
		},
		Logger:     logger,
		Translator: translator,
		Versions:   versions,
		Health:     s.health,
		RateLimit:  ratelimitmw.New(limiter, logger, ratelimitmw.WithErrorRecorder(s.counters)),
		Tokens:     s.tokens,
		Clock:      clock,
		Modules:    []Module{sampleModule{}},
		AdminModules: []AdminModule{
			NewErrorsHandler(s.counters, logger),
		},
	})
}

func (s *RouterSuite) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{"username":"ada","password":"x"}`))
	req.RemoteAddr = "1.2.3.4:51234"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) envelope(rec *httptest.ResponseRecorder) httputil.EnvelopeError {
	var env httputil.Envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func (s *RouterSuite) assertSecurityHeaders(rec *httptest.ResponseRecorder) {
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.NotEmpty(rec.Header().Get("X-XSS-Protection"))
	s.NotEmpty(rec.Header().Get("Referrer-Policy"))
	s.NotEmpty(rec.Header().Get("Permissions-Policy"))
}

func (s *RouterSuite) TestSixthLoginWithinAMinuteIsRejected() {
	for i := range 5 {
		s.now = s.now.Add(2 * time.Second)
		rec := s.do(http.MethodPost, "/api/v1/auth/login/", nil)
		s.Require().Equal(http.StatusOK, rec.Code, "request %d", i+1)
		s.Equal("1.1", rec.Header().Get("X-API-Version"))
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/login/", nil)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.JSONEq(`{"error": "Rate limit exceeded. Please try again later.", "code": "rate_limit_exceeded"}`, rec.Body.String())
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.assertSecurityHeaders(rec)
	s.Equal(int64(1), s.counters.Count(dErrors.CodeRateLimited))

	s.now = s.now.Add(time.Minute)
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/login/", nil).Code, "window resets")
}

func (s *RouterSuite) TestBusinessErrorKeepsItsCode() {
	rec := s.do(http.MethodPost, "/api/v1/appointments/", map[string]string{
		httputil.HeaderRequestTimestamp: "2025-03-01T09:00:00Z",
	})

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	env := s.envelope(rec)
	s.Equal("BUSINESS_LOGIC_ERROR", env.Code)
	s.Equal("SLOT_CONFLICT", env.Details["business_code"])
	s.Require().NotNil(env.Timestamp)
	s.Equal("2025-03-01T09:00:00Z", *env.Timestamp)
	s.assertSecurityHeaders(rec)
}

func (s *RouterSuite) TestUnclassifiedErrorIsHidden() {
	rec := s.do(http.MethodGet, "/api/v1/reports/", nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	env := s.envelope(rec)
	s.Equal("INTERNAL_SERVER_ERROR", env.Code)
	s.Equal("Internal server error", env.Message)
	s.Nil(env.Timestamp)
	s.Empty(env.Details)
	s.NotContains(rec.Body.String(), "relation")
}

func (s *RouterSuite) TestDebugModeSurfacesDetail() {
	s.build(true)

	rec := s.do(http.MethodGet, "/api/v1/reports/", nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(s.envelope(rec).Message, "relation")
	s.Empty(rec.Header().Get("Content-Security-Policy"))
}

func (s *RouterSuite) TestPanicIsTranslated() {
	rec := s.do(http.MethodGet, "/api/v1/panic/", nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("INTERNAL_SERVER_ERROR", s.envelope(rec).Code)
	s.NotEmpty(rec.Header().Get("Content-Security-Policy"))
	s.Equal(int64(1), s.counters.Count(dErrors.CodeInternal))
}

func (s *RouterSuite) TestRoutingErrorsUseTheEnvelope() {
	rec := s.do(http.MethodGet, "/api/v1/nowhere/", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	env := s.envelope(rec)
	s.Equal("RESOURCE_NOT_FOUND", env.Code)
	s.Equal("Resource not found", env.Message)
	s.assertSecurityHeaders(rec)

	rec = s.do(http.MethodDelete, "/api/v1/auth/login/", nil)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
	s.Equal("METHOD_NOT_ALLOWED", s.envelope(rec).Code)
}

func (s *RouterSuite) TestHealthBypassesRateLimiting() {
	s.health.RegisterCheck(health.CheckCache, func(context.Context) error {
		return errors.New("dial tcp 10.0.0.5:6379: connection refused")
	})

	for range 10 {
		rec := s.do(http.MethodGet, "/health/", nil)
		s.Require().Equal(http.StatusServiceUnavailable, rec.Code)

		var body map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("error", body["status"])
		s.True(strings.HasPrefix(body["cache"].(string), "error: "))
		s.Empty(rec.Header().Get("X-RateLimit-Limit"))
		s.Empty(rec.Header().Get("X-API-Version"))
	}
	s.assertSecurityHeaders(s.do(http.MethodGet, "/health/", nil))
}

func (s *RouterSuite) TestVersionNegotiation() {
	s.Run("deprecated version is served with notice", func() {
		rec := s.do(http.MethodGet, "/api/v1/features/", map[string]string{"X-API-Version": "1.0"})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("1.0", rec.Header().Get("X-API-Version"))
		s.Equal("true", rec.Header().Get("Deprecation"))
		s.Contains(rec.Header().Get("Link"), VersionsPath)
		s.NotEmpty(rec.Header().Get("Sunset"))
	})

	s.Run("path version wins over the header", func() {
		rec := s.do(http.MethodGet, "/api/v2.0/features/", map[string]string{"X-API-Version": "1.0"})
		s.Equal(http.StatusNotFound, rec.Code, "no handler is mounted under /api/v2.0/")
		s.Equal("2.0", rec.Header().Get("X-API-Version"))
	})

	s.Run("features follow the resolved version", func() {
		rec := s.do(http.MethodGet, "/api/v1/features/", map[string]string{"Accept": "application/json; version=2.0"})
		s.JSONEq(`{"webhooks": true}`, rec.Body.String())
	})

	s.Run("unknown version", func() {
		rec := s.do(http.MethodGet, "/api/v1/features/", map[string]string{"X-API-Version": "9.9"})
		s.Equal(http.StatusNotFound, rec.Code)
		env := s.envelope(rec)
		s.Equal("RESOURCE_NOT_FOUND", env.Code)
		s.Equal("api_version", env.Details["resource_type"])
	})
}

func (s *RouterSuite) TestAdminErrors() {
	s.do(http.MethodGet, "/api/v1/reports/", nil)

	rec := s.do(http.MethodGet, "/admin/errors", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("AUTHENTICATION_ERROR", s.envelope(rec).Code)

	auth := map[string]string{admin.HeaderAdminToken: testAdminToken}
	rec = s.do(http.MethodGet, "/admin/errors", auth)
	s.Require().Equal(http.StatusOK, rec.Code)
	var snap httputil.ErrorSnapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snap))
	s.Equal(int64(1), snap.Counts["INTERNAL_SERVER_ERROR"])
	s.Equal(int64(1), snap.Counts["AUTHENTICATION_ERROR"])

	rec = s.do(http.MethodDelete, "/admin/errors", auth)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Zero(s.counters.Snapshot().Total)
}

func (s *RouterSuite) TestPrincipalResolution() {
	s.Run("anonymous without credentials", func() {
		rec := s.do(http.MethodPost, "/api/v1/auth/login/", nil)
		s.JSONEq(`{"principal": "anonymous"}`, rec.Body.String())
	})

	s.Run("bearer token", func() {
		token, err := s.tokens.Sign(context.Background(), "42", time.Hour)
		s.Require().NoError(err)
		rec := s.do(http.MethodPost, "/api/v1/auth/login/", map[string]string{"Authorization": "Bearer " + token})
		s.JSONEq(`{"principal": "user:42"}`, rec.Body.String())
	})

	s.Run("malformed header", func() {
		rec := s.do(http.MethodPost, "/api/v1/auth/login/", map[string]string{"Authorization": "Basic abc"})
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("AUTHENTICATION_ERROR", s.envelope(rec).Code)
	})
}
