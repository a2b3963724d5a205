package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"diyetlenio/internal/versioning"
	"diyetlenio/pkg/requestcontext"
)

// Version negotiation and deprecation headers.
const (
	HeaderAPIVersion        = "X-API-Version"
	HeaderDeprecation       = "Deprecation"
	HeaderSunset            = "Sunset"
	HeaderLink              = "Link"
	HeaderDeprecationNotice = "X-API-Deprecation-Notice"
)

// pathVersion matches /api/v<major>.<minor>/...; /api/v1/ carries no version.
var pathVersion = regexp.MustCompile(`^/api/v(\d+\.\d+)(?:/|$)`)

// ErrorWriter writes the error envelope for a failed resolution.
type ErrorWriter interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

type Middleware struct {
	registry     *versioning.Registry
	errors       ErrorWriter
	logger       *slog.Logger
	versionsPath string
}

// New creates the negotiation middleware. versionsPath is linked from
// deprecation headers.
func New(registry *versioning.Registry, errors ErrorWriter, logger *slog.Logger, versionsPath string) *Middleware {
	return &Middleware{
		registry:     registry,
		errors:       errors,
		logger:       logger,
		versionsPath: versionsPath,
	}
}

// Negotiate resolves the request's API version and attaches the descriptor
// to the context. Unknown and retired versions are answered through the
// error writer; deprecated versions are served with deprecation headers.
func (m *Middleware) Negotiate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requested, source := Requested(r)

		d, err := m.registry.Resolve(ctx, requested)
		if err != nil {
			m.logger.InfoContext(ctx, "api version rejected",
				"requested", requested,
				"source", source,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			m.errors.WriteError(w, r, err)
			return
		}

		w.Header().Set(HeaderAPIVersion, d.Version)
		deprecated := false
		if notice, ok := m.registry.Notice(d, r.URL.Path); ok {
			deprecated = true
			m.setDeprecationHeaders(w, d, notice)
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("api.version", d.Version),
			attribute.Bool("api.version.deprecated", deprecated),
		)

		ctx = requestcontext.WithAPIVersion(ctx, d.Version)
		ctx = versioning.NewContext(ctx, d)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) setDeprecationHeaders(w http.ResponseWriter, d versioning.Descriptor, n versioning.DeprecationNotice) {
	h := w.Header()
	h.Set(HeaderDeprecation, "true")
	if d.HasSunset() {
		h.Set(HeaderSunset, d.SunsetDate.UTC().Format(http.TimeFormat))
	}
	if m.versionsPath != "" {
		h.Set(HeaderLink, "<"+m.versionsPath+`>; rel="deprecation"`)
	}
	h.Set(HeaderDeprecationNotice, n.Message)
}

// Requested extracts the requested version and where it came from:
// the path segment first, then X-API-Version, then the Accept version parameter.
func Requested(r *http.Request) (version, source string) {
	if m := pathVersion.FindStringSubmatch(r.URL.Path); m != nil {
		return m[1], "path"
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderAPIVersion)); v != "" {
		return v, "header"
	}
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		_, params, err := mime.ParseMediaType(strings.TrimSpace(accept))
		if err != nil {
			continue
		}
		if v := params["version"]; v != "" {
			return v, "accept"
		}
	}
	return "", "default"
}
