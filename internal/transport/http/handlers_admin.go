package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"diyetlenio/internal/transport/httputil"
	"diyetlenio/pkg/platform/middleware/admin"
	"diyetlenio/pkg/requestcontext"
)

// ErrorStats exposes the process-wide error counters.
type ErrorStats interface {
	Snapshot() httputil.ErrorSnapshot
	Reset() httputil.ErrorSnapshot
}

// ErrorsHandler serves /admin/errors.
type ErrorsHandler struct {
	stats  ErrorStats
	logger *slog.Logger
}

func NewErrorsHandler(stats ErrorStats, logger *slog.Logger) *ErrorsHandler {
	return &ErrorsHandler{stats: stats, logger: logger}
}

func (h *ErrorsHandler) RegisterAdmin(r chi.Router, a httputil.Adapter) {
	r.Method(http.MethodGet, "/admin/errors", a.Handle(h.HandleSnapshot))
	r.Method(http.MethodDelete, "/admin/errors", a.Handle(h.HandleReset))
}

// HandleSnapshot implements GET /admin/errors.
func (h *ErrorsHandler) HandleSnapshot(w http.ResponseWriter, _ *http.Request) error {
	httputil.WriteJSON(w, http.StatusOK, h.stats.Snapshot())
	return nil
}

// ResetResponse carries the counts as they were when reset.
type ResetResponse struct {
	Reset    bool                   `json:"reset"`
	Previous httputil.ErrorSnapshot `json:"previous"`
}

// HandleReset implements DELETE /admin/errors.
func (h *ErrorsHandler) HandleReset(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	prev := h.stats.Reset()
	h.logger.InfoContext(ctx, "error counters reset",
		"previous_total", prev.Total,
		"actor", admin.ActorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, ResetResponse{Reset: true, Previous: prev})
	return nil
}
