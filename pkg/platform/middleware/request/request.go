package request

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"diyetlenio/internal/platform/privacy"
	"diyetlenio/pkg/requestcontext"
)

// MaxRequestIDLength is the maximum allowed length for X-Request-ID header
// to prevent header injection and log pollution attacks.
const MaxRequestIDLength = 128

// validRequestID matches alphanumeric characters, dashes, underscores, and periods.
var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// RequestID adds a unique request ID to the context and response headers.
// A valid client-provided X-Request-ID is kept; anything else is replaced with a UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !isValidRequestID(requestID) {
			requestID = uuid.New().String()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	return validRequestID.MatchString(id)
}

// StartTime pins the request start time so every stage sees the same "now".
func StartTime(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Ingress logs every admitted request. At debug level it also logs a redacted
// copy of JSON and form bodies, reading at most maxBody bytes; the handler
// still receives the full body.
func Ingress(logger *slog.Logger, maxBody int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"client_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
				"user_agent", requestcontext.UserAgent(ctx),
				"request_id", requestcontext.RequestID(ctx),
			}

			if logger.Enabled(ctx, slog.LevelDebug) && r.Body != nil && r.Body != http.NoBody && maxBody > 0 {
				if body, ok := redactedBody(r, maxBody); ok {
					attrs = append(attrs, "body", body)
				}
			}

			logger.InfoContext(ctx, "http request received", attrs...)
			next.ServeHTTP(w, r)
		})
	}
}

// redactedBody peeks at the body and returns a redacted rendering for
// recognised content types. r.Body is always restored.
func redactedBody(r *http.Request, maxBody int64) (any, bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, false
	}
	if mediaType != "application/json" && mediaType != "application/x-www-form-urlencoded" {
		return nil, false
	}

	peeked, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(peeked), r.Body), Closer: r.Body}
	if err != nil {
		return nil, false
	}
	if int64(len(peeked)) > maxBody {
		return "[body exceeds log limit]", true
	}

	switch mediaType {
	case "application/json":
		if redacted, ok := privacy.RedactJSON(peeked); ok {
			return redacted, true
		}
		return "[unparseable json]", true
	default:
		values, err := url.ParseQuery(string(peeked))
		if err != nil {
			return "[unparseable form]", true
		}
		return privacy.RedactForm(values), true
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Egress logs the final status and latency of every response, at warn level
// for statuses >= 400. Successful health checks are not logged.
func Egress(logger *slog.Logger, metrics *Metrics, healthPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			ctx := r.Context()
			if metrics != nil {
				metrics.Observe(r, wrapped.statusCode, duration)
			}

			if r.URL.Path == healthPath && wrapped.statusCode < http.StatusBadRequest {
				return
			}

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "http request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"api_version", wrapped.Header().Get("X-API-Version"),
				"request_id", requestcontext.RequestID(ctx),
				"client_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
