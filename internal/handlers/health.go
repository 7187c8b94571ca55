package handlers

import (
	"errors"
	"net/http"

	"copilot-bridge/internal/bridge"
)

type healthResponse struct {
	OK             bool   `json:"ok"`
	Copilot        string `json:"copilot"`
	Reason         string `json:"reason,omitempty"`
	Version        string `json:"version"`
	ActiveRequests int64  `json:"active_requests"`
}

// HealthHandler reports bridge liveness. The response is always 200; the
// copilot field carries the backing model's availability.
type HealthHandler struct {
	resolver bridge.Resolver
	state    *bridge.State
	version  string
}

func NewHealthHandler(resolver bridge.Resolver, state *bridge.State, version string) *HealthHandler {
	return &HealthHandler{resolver: resolver, state: state, version: version}
}

// Check handles GET /health and GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	copilot := "ok"
	reason := ""

	if h.state.CachedModel() == nil {
		if _, err := h.resolver.Resolve(r.Context(), ""); err != nil {
			copilot = "unavailable"

			var unavailable *bridge.UnavailableError
			if errors.As(err, &unavailable) {
				reason = unavailable.Reason
			}
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		OK:             true,
		Copilot:        copilot,
		Reason:         reason,
		Version:        h.version,
		ActiveRequests: h.state.ActiveRequests(),
	})
}
