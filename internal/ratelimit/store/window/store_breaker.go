package window

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"diyetlenio/internal/ratelimit/models"
	"diyetlenio/internal/ratelimit/ports"
	"diyetlenio/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the breaker short-circuits store calls.
var ErrCircuitOpen = errors.New("counter store circuit open")

// BreakerStore wraps a CounterStore so that a failing backend is skipped
// after repeated errors instead of adding its timeout to every request.
// Callers see ErrCircuitOpen and fail open as they would for any store error.
type BreakerStore struct {
	next    ports.CounterStore
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewBreakerStore wraps next with breaker. A nil logger discards transitions.
func NewBreakerStore(next ports.CounterStore, breaker *circuit.Breaker, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BreakerStore{next: next, breaker: breaker, logger: logger}
}

func (s *BreakerStore) Admit(ctx context.Context, key string, limit int, window time.Duration) (models.WindowState, error) {
	if !s.breaker.Allow() {
		return models.WindowState{}, ErrCircuitOpen
	}
	st, err := s.next.Admit(ctx, key, limit, window)
	s.record(ctx, err)
	return st, err
}

func (s *BreakerStore) Peek(ctx context.Context, key string) (models.WindowState, error) {
	if !s.breaker.Allow() {
		return models.WindowState{}, ErrCircuitOpen
	}
	st, err := s.next.Peek(ctx, key)
	s.record(ctx, err)
	return st, err
}

func (s *BreakerStore) record(ctx context.Context, err error) {
	// A cancelled request says nothing about the backend.
	if err != nil && ctx.Err() != nil {
		s.breaker.Release()
		return
	}
	var change circuit.StateChange
	if err != nil {
		change = s.breaker.RecordFailure()
	} else {
		change = s.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		s.logger.WarnContext(ctx, "counter store circuit opened", "breaker", s.breaker.Name(), "error", err)
	case change.Closed:
		s.logger.InfoContext(ctx, "counter store circuit closed", "breaker", s.breaker.Name())
	}
}
