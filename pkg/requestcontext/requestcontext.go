// Package requestcontext carries per-request values through context.Context:
// request ID, client metadata, the authenticated principal, the negotiated API
// version and the request start time.
//
// Values are written once by the middleware that owns them and read everywhere
// else. A context is never shared between requests.
package requestcontext

import (
	"context"
	"time"

	dErrors "diyetlenio/pkg/domain-errors"
)

// Anonymous is the principal recorded for requests without valid credentials.
const Anonymous = "anonymous"

type (
	contextKeyRequestID  struct{}
	contextKeyClientIP   struct{}
	contextKeyUserAgent  struct{}
	contextKeyPrincipal  struct{}
	contextKeyAPIVersion struct{}
	contextKeyTime       struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, id)
}

// RequestID returns the request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID{}).(string)
	return id
}

// WithClientMetadata stores the resolved client IP and User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, ip)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(contextKeyClientIP{}).(string)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return ua
}

func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, principal)
}

// Principal returns the authenticated principal, or Anonymous when none was resolved.
func Principal(ctx context.Context) string {
	if p, ok := ctx.Value(contextKeyPrincipal{}).(string); ok && p != "" {
		return p
	}
	return Anonymous
}

// IsAuthenticated reports whether a non-anonymous principal is attached.
func IsAuthenticated(ctx context.Context) bool {
	return Principal(ctx) != Anonymous
}

// RequirePrincipal returns the principal or an authentication error for anonymous callers.
func RequirePrincipal(ctx context.Context) (string, error) {
	if !IsAuthenticated(ctx) {
		return "", dErrors.Authentication("Authentication credentials were not provided")
	}
	return Principal(ctx), nil
}

func WithAPIVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, contextKeyAPIVersion{}, version)
}

// APIVersion returns the negotiated API version string, or "" before negotiation.
func APIVersion(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyAPIVersion{}).(string)
	return v
}

// WithTime injects the request start time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyTime{}, t)
}

// Now returns the request start time.
// Falls back to time.Now() when not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// StartTime returns the request start time and whether it was set.
func StartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(contextKeyTime{}).(time.Time)
	return t, ok
}
