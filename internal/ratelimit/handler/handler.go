// Package handler exposes rate-limit administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"diyetlenio/internal/platform/privacy"
	"diyetlenio/internal/ratelimit/models"
	"diyetlenio/internal/transport/httputil"
	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/platform/middleware/admin"
	"diyetlenio/pkg/requestcontext"
)

type Service interface {
	Status(ctx context.Context, clientKey, path string) (models.StatusResponse, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterAdmin mounts the admin routes. Callers place r behind the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router, a httputil.Adapter) {
	r.Method(http.MethodGet, "/admin/ratelimit/status", a.Handle(h.HandleStatus))
}

// HandleStatus implements GET /admin/ratelimit/status?client=<ip>&path=<path>.
// It reports the window without consuming from it.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	client := strings.TrimSpace(r.URL.Query().Get("client"))
	path := strings.TrimSpace(r.URL.Query().Get("path"))

	fieldErrors := map[string][]string{}
	if client == "" {
		fieldErrors["client"] = []string{"This field is required."}
	}
	if !strings.HasPrefix(path, "/") {
		fieldErrors["path"] = []string{"Must be an absolute request path."}
	}
	if len(fieldErrors) > 0 {
		return dErrors.Validation("Invalid status query", fieldErrors)
	}

	status, err := h.service.Status(ctx, client, path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.KindUnavailable, "Rate limit store unavailable")
	}

	h.logger.InfoContext(ctx, "rate limit status queried",
		"client_prefix", privacy.AnonymizeIP(client),
		"path", path,
		"actor", admin.ActorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, status)
	return nil
}
