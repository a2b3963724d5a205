package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"diyetlenio/internal/events"
	"diyetlenio/internal/platform/privacy"
	"diyetlenio/internal/ratelimit/models"
	"diyetlenio/internal/transport/httputil"
	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

type RateLimiter interface {
	Check(ctx context.Context, clientKey, path string) models.Decision
}

// ErrorRecorder counts rejections alongside translated errors.
type ErrorRecorder interface {
	Record(code string)
}

// Option configures the middleware.
type Option func(*Middleware)

// WithErrorRecorder counts every rejection under RATE_LIMIT_EXCEEDED.
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(m *Middleware) {
		m.recorder = r
	}
}

// WithPublisher publishes a governance event for every rejection.
func WithPublisher(p events.Publisher) Option {
	return func(m *Middleware) {
		m.publisher = p
	}
}

type Middleware struct {
	limiter   RateLimiter
	logger    *slog.Logger
	recorder  ErrorRecorder
	publisher events.Publisher
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimit enforces the per-client, per-path limit keyed on the client IP
// resolved by the metadata middleware.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		decision := m.limiter.Check(ctx, ip, r.URL.Path)
		if decision.Exempt {
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, decision)

		if !decision.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"path", r.URL.Path,
				"client_prefix", privacy.AnonymizeIP(ip),
				"rate", decision.Rate.String(),
				"retry_after", decision.RetryAfter,
				"request_id", requestcontext.RequestID(ctx),
			)
			if m.recorder != nil {
				m.recorder.Record(dErrors.CodeRateLimited)
			}
			if m.publisher != nil {
				m.publisher.Publish(ctx, events.RateLimitExceeded(ctx, r.URL.Path, decision.Rate.String(), decision.RetryAfter))
			}
			writeRateLimitExceeded(w, decision)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// addRateLimitHeaders adds X-RateLimit-* headers to the response.
func addRateLimitHeaders(w http.ResponseWriter, d models.Decision) {
	if d.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, d models.Decision) {
	if d.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error: models.ExceededMessage,
		Code:  models.ExceededCode,
	})
}
