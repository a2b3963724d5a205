// Package requestlimit provides per-client, per-path fixed-window admission control.
//
// This is the rate limiting service used by middleware to enforce request
// quotas on API endpoints. Each (client, path, period) triple owns one counter
// in the shared store; a request is admitted while the counter is below the
// path's limit and denied until the window's TTL expires.
//
// Usage:
//
//	svc, _ := requestlimit.New(store, requestlimit.WithPolicy(policy))
//	decision := svc.Check(ctx, clientIP, r.URL.Path)
//	if !decision.Allowed {
//	    // Return 429 Too Many Requests
//	}
//
// Windows are fixed, not sliding: a client may spend its full quota at the end
// of one window and again at the start of the next, so up to twice the nominal
// limit can pass across a boundary.
//
// The service fails open. When the counter store errors, the failure is
// logged and the request is admitted.
package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"diyetlenio/internal/platform/privacy"
	"diyetlenio/internal/ratelimit/config"
	"diyetlenio/internal/ratelimit/metrics"
	"diyetlenio/internal/ratelimit/models"
	"diyetlenio/internal/ratelimit/ports"
	"diyetlenio/pkg/requestcontext"
)

// Service enforces per-client, per-path fixed-window limits.
// Safe for concurrent use by HTTP middleware.
type Service struct {
	store   ports.CounterStore
	policy  *config.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger used for fail-open reports.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPolicy overrides the default path policy.
func WithPolicy(p *config.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithMetrics sets the metrics recorder for observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a rate limiting service backed by store.
func New(store ports.CounterStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}

	svc := &Service{
		store:  store,
		policy: config.DefaultPolicy(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.policy == nil {
		return nil, errors.New("rate limit policy is required")
	}
	return svc, nil
}

// Policy returns the path policy in force.
func (s *Service) Policy() *config.Policy {
	return s.policy
}

// Check decides whether the request from clientKey to path may proceed and
// consumes one slot from the window when it does.
func (s *Service) Check(ctx context.Context, clientKey, path string) models.Decision {
	rate, limited := s.policy.Resolve(path)
	if !limited {
		s.observe(metrics.OutcomeExempt, "")
		return models.Decision{Allowed: true, Exempt: true}
	}

	window := rate.Window()
	key := models.NewWindowKey(clientKey, path, rate.Period).String()

	start := time.Now()
	state, err := s.store.Admit(ctx, key, rate.Count, window)
	if s.metrics != nil {
		s.metrics.ObserveStoreLatency(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "rate limit store unavailable, admitting request",
			"error", err,
			"path", path,
			"client_prefix", privacy.AnonymizeIP(clientKey),
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementFailOpen()
		}
		return models.Decision{Allowed: true, Rate: rate, Limit: rate.Count, Remaining: rate.Count}
	}

	now := requestcontext.Now(ctx)
	decision := models.Decision{
		Allowed:   state.Admitted,
		Rate:      rate,
		Limit:     rate.Count,
		Remaining: max(rate.Count-state.Count, 0),
		ResetAt:   now.Add(state.TTL),
	}
	if !state.Admitted {
		decision.Remaining = 0
		decision.RetryAfter = models.RetryAfterSeconds(state.TTL, window)
		if decision.RetryAfter == 0 {
			decision.RetryAfter = 1
		}
		s.observe(metrics.OutcomeDenied, rate.Period.String())
		return decision
	}
	s.observe(metrics.OutcomeAllowed, rate.Period.String())
	return decision
}

// Status reports the window for clientKey and path without consuming from it.
func (s *Service) Status(ctx context.Context, clientKey, path string) (models.StatusResponse, error) {
	resp := models.StatusResponse{Client: clientKey, Path: path}

	rate, limited := s.policy.Resolve(path)
	if !limited {
		resp.Exempt = true
		return resp, nil
	}

	key := models.NewWindowKey(clientKey, path, rate.Period).String()
	state, err := s.store.Peek(ctx, key)
	if err != nil {
		return models.StatusResponse{}, err
	}

	resp.Rate = rate.String()
	resp.Limit = rate.Count
	resp.Current = state.Count
	resp.Remaining = max(rate.Count-state.Count, 0)
	resp.ResetInSec = models.RetryAfterSeconds(state.TTL, rate.Window())
	return resp, nil
}

func (s *Service) observe(outcome, period string) {
	if s.metrics != nil {
		s.metrics.ObserveDecision(outcome, period)
	}
}
