// Package admin guards administrative routes with a shared token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	HeaderActorID    = "X-Admin-Actor-ID"
)

type contextKeyAdminActorID struct{}

// ActorID returns the admin actor identifier, or "" outside admin requests.
func ActorID(ctx context.Context) string {
	actorID, _ := ctx.Value(contextKeyAdminActorID{}).(string)
	return actorID
}

// ErrorWriter writes the error envelope.
type ErrorWriter interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects every request.
func RequireAdminToken(expectedToken string, errors ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(HeaderAdminToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"path", r.URL.Path,
					"token_present", token != "",
					"request_id", requestcontext.RequestID(ctx),
				)
				errors.WriteError(w, r, dErrors.Authentication("Admin token required"))
				return
			}

			if actorID := r.Header.Get(HeaderActorID); actorID != "" {
				ctx = context.WithValue(ctx, contextKeyAdminActorID{}, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
