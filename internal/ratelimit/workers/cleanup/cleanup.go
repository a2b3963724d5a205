// Package cleanup runs the background sweep that drops expired rate-limit
// windows from stores without native key expiry (memory and Postgres).
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"diyetlenio/internal/ratelimit/metrics"
)

// CleanupResult contains the results of a cleanup run.
type CleanupResult struct {
	WindowsRemoved int
	Duration       time.Duration
}

// ExpiredWindowStore removes windows whose TTL has passed.
type ExpiredWindowStore interface {
	DeleteExpired(ctx context.Context) (int, error)
}

type Option func(*WindowCleanupService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *WindowCleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *WindowCleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *WindowCleanupService) {
		s.metrics = m
	}
}

type WindowCleanupService struct {
	store    ExpiredWindowStore
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(store ExpiredWindowStore, opts ...Option) *WindowCleanupService {
	service := &WindowCleanupService{
		store:    store,
		logger:   slog.Default(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Start sweeps every interval until ctx is cancelled. Failed runs are logged
// and retried on the next tick.
func (s *WindowCleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("rate_limit_cleanup_failed", "error", err)
				if s.metrics != nil {
					s.metrics.IncrementSweepFailures()
				}
				continue
			}
			if res.WindowsRemoved > 0 {
				s.logger.Debug("rate_limit_cleanup_completed",
					"windows_removed", res.WindowsRemoved,
					"duration_ms", res.Duration.Milliseconds(),
				)
			}
			if s.metrics != nil {
				s.metrics.AddSwept(res.WindowsRemoved)
			}

		case <-ctx.Done():
			s.logger.Info("rate limit cleanup worker stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce executes a single cleanup run. Logging is handled by the caller (Start).
func (s *WindowCleanupService) RunOnce(ctx context.Context) (*CleanupResult, error) {
	start := time.Now()
	removed, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return nil, err
	}
	return &CleanupResult{WindowsRemoved: removed, Duration: time.Since(start)}, nil
}
