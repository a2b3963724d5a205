// Package handler serves the API version catalogue.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"diyetlenio/internal/transport/httputil"
	"diyetlenio/internal/versioning"
)

// VersionResponse describes one registered API version.
type VersionResponse struct {
	Version             string   `json:"version"`
	Status              string   `json:"status"`
	ReleaseDate         string   `json:"release_date"`
	SunsetDate          *string  `json:"sunset_date"`
	Features            []string `json:"features"`
	BreakingChanges     []string `json:"breaking_changes"`
	DeprecatedEndpoints []string `json:"deprecated_endpoints"`
}

type ListResponse struct {
	Versions []VersionResponse `json:"versions"`
	Default  string            `json:"default"`
	Current  *string           `json:"current"`
}

type Handler struct {
	registry *versioning.Registry
}

func New(registry *versioning.Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) Register(r chi.Router, a httputil.Adapter) {
	r.Method(http.MethodGet, "/api/versions/", a.Handle(h.HandleList))
}

// HandleList implements GET /api/versions/.
func (h *Handler) HandleList(w http.ResponseWriter, _ *http.Request) error {
	resp := ListResponse{
		Versions: make([]VersionResponse, 0, len(h.registry.Versions())),
		Default:  h.registry.Default().Version,
	}
	for _, d := range h.registry.Versions() {
		resp.Versions = append(resp.Versions, toResponse(d))
	}
	if cur, ok := h.registry.Current(); ok {
		resp.Current = &cur.Version
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func toResponse(d versioning.Descriptor) VersionResponse {
	v := VersionResponse{
		Version:             d.Version,
		Status:              d.Status.String(),
		ReleaseDate:         d.ReleaseDate.Format(versioning.DateLayout),
		Features:            nonNil(d.Features()),
		BreakingChanges:     nonNil(d.BreakingChanges()),
		DeprecatedEndpoints: nonNil(d.DeprecatedEndpoints()),
	}
	if d.HasSunset() {
		sunset := d.SunsetDate.Format(versioning.DateLayout)
		v.SunsetDate = &sunset
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
