package cleanup

// Justification: the worker loop is time driven; these tests pin its error
// handling and shutdown without waiting on real windows to expire.

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"diyetlenio/internal/ratelimit/metrics"
	"diyetlenio/internal/ratelimit/store/window"
)

type mockWindowStore struct {
	calls    atomic.Int32
	removed  int
	errToRet error
}

func (m *mockWindowStore) DeleteExpired(context.Context) (int, error) {
	m.calls.Add(1)
	return m.removed, m.errToRet
}

type WindowCleanupSuite struct {
	suite.Suite
	store   *mockWindowStore
	metrics *metrics.Metrics
	service *WindowCleanupService
}

func TestWindowCleanupSuite(t *testing.T) {
	suite.Run(t, new(WindowCleanupSuite))
}

func (s *WindowCleanupSuite) SetupTest() {
	s.store = &mockWindowStore{removed: 3}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInterval(10*time.Millisecond),
		WithMetrics(s.metrics),
	)
}

func (s *WindowCleanupSuite) TestRunOnce() {
	s.Run("reports removed windows", func() {
		res, err := s.service.RunOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(3, res.WindowsRemoved)
	})

	s.Run("propagates store error", func() {
		s.store.errToRet = errors.New("db down")
		_, err := s.service.RunOnce(context.Background())
		s.Error(err)
	})
}

func (s *WindowCleanupSuite) TestStartStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.service.Start(ctx) }()

	s.Eventually(func() bool { return s.store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("worker did not stop")
	}
	s.GreaterOrEqual(testutil.ToFloat64(s.metrics.SweptWindowsTotal), float64(6))
}

func (s *WindowCleanupSuite) TestStartSurvivesFailures() {
	s.store.errToRet = errors.New("db down")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.service.Start(ctx) }()

	s.Eventually(func() bool { return s.store.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return testutil.ToFloat64(s.metrics.SweepFailuresTotal) >= 3 }, time.Second, 5*time.Millisecond)
}

func (s *WindowCleanupSuite) TestWithInMemoryStore() {
	clock := time.Now()
	store := window.NewInMemoryStore(window.WithClock(func() time.Time { return clock }))
	_, _ = store.Admit(context.Background(), "k", 1, time.Second)
	clock = clock.Add(2 * time.Second)

	res, err := New(store).RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, res.WindowsRemoved)
}
