package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
)

type HealthSuite struct {
	suite.Suite
	handler *Handler
	router  chi.Router
}

func TestHealthSuite(t *testing.T) {
	suite.Run(t, new(HealthSuite))
}

func (s *HealthSuite) SetupTest() {
	fixed := time.Unix(1_700_000_000, 500_000_000)
	s.handler = New("test", WithClock(func() time.Time { return fixed }), WithTimeout(50*time.Millisecond))
	s.router = chi.NewRouter()
	s.handler.Register(s.router, "/health/")
}

func (s *HealthSuite) get(path string) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func (s *HealthSuite) TestAllHealthy() {
	s.handler.RegisterCheck(CheckDatabase, func(context.Context) error { return nil })
	s.handler.RegisterCheck(CheckCache, func(context.Context) error { return nil })

	rec, body := s.get("/health/")

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["status"])
	s.Equal("ok", body["database"])
	s.Equal("ok", body["cache"])
	s.InDelta(1_700_000_000.5, body["timestamp"], 0.001)
}

func (s *HealthSuite) TestCacheDown() {
	s.handler.RegisterCheck(CheckDatabase, func(context.Context) error { return nil })
	s.handler.RegisterCheck(CheckCache, func(context.Context) error { return errors.New("dial tcp 127.0.0.1:6379: connection refused") })

	rec, body := s.get("/health/")

	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("error", body["status"])
	s.Equal("ok", body["database"])
	s.Equal("error: dial tcp 127.0.0.1:6379: connection refused", body["cache"])
}

func (s *HealthSuite) TestSlowCheckTimesOut() {
	s.handler.RegisterCheck(CheckDatabase, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rec, body := s.get("/health/")

	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(body["database"], "error: ")
}

func (s *HealthSuite) TestUnconfiguredDependenciesReportOK() {
	rec, body := s.get("/health/")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["cache"])
}

func (s *HealthSuite) TestLiveness() {
	s.handler.RegisterCheck(CheckCache, func(context.Context) error { return errors.New("down") })
	rec, body := s.get("/health/live")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("alive", body["status"])
}

func (s *HealthSuite) TestReadiness() {
	s.handler.RegisterCheck("kafka", func(context.Context) error { return errors.New("no brokers") })
	rec, body := s.get("/health/ready")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("not_ready", body["status"])
	s.Equal("error: no brokers", body["checks"].(map[string]any)["kafka"])
}
