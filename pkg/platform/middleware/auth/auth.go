// Package auth resolves the request principal from an optional bearer token.
//
// Requests without an Authorization header are anonymous. A bearer token that
// fails validation is rejected with an authentication error rather than being
// downgraded to anonymous, so a client never silently loses its identity.
// Enforcing that a principal exists is left to handlers
// (requestcontext.RequirePrincipal).
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

// PrincipalPrefix namespaces user principals.
const PrincipalPrefix = "user:"

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	Subject(token string) (string, error)
}

// ErrorWriter writes the error envelope.
type ErrorWriter interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

// ResolvePrincipal attaches user:<subject> for valid bearer tokens and the
// anonymous marker otherwise. A nil validator makes every request anonymous.
func ResolvePrincipal(validator TokenValidator, errors ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get("Authorization")
			if validator == nil || header == "" {
				next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, requestcontext.Anonymous)))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				errors.WriteError(w, r, dErrors.Authentication("Missing or invalid Authorization header"))
				return
			}

			subject, err := validator.Subject(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				if !dErrors.HasKind(err, dErrors.KindAuthentication) {
					err = dErrors.Wrap(err, dErrors.KindAuthentication, "Invalid or expired token")
				}
				errors.WriteError(w, r, err)
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, PrincipalPrefix+subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
