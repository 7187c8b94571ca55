package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"copilot-bridge/internal/bridge"
)

type modelEntry struct {
	ID         string `json:"id"`
	Object     string `json:"object"`
	Created    int64  `json:"created"`
	OwnedBy    string `json:"owned_by"`
	Permission []any  `json:"permission"`
	Root       string `json:"root"`
	Parent     any    `json:"parent"`
}

type modelListResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// ModelsHandler serves the OpenAI-compatible model catalog.
type ModelsHandler struct {
	resolver bridge.Resolver
	logger   *slog.Logger
}

func NewModelsHandler(resolver bridge.Resolver, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{resolver: resolver, logger: logger}
}

// List handles GET /v1/models. Catalog failures degrade to a single
// placeholder entry rather than an error; clients use this route to probe
// for liveness, not correctness.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models, err := h.resolver.ListModels(r.Context())
	if err != nil {
		h.logger.Debug("model catalog unavailable", "error", err)
	}

	if len(models) == 0 {
		models = []string{"copilot"}
	}

	created := time.Now().Unix()
	entries := make([]modelEntry, 0, len(models))

	for _, id := range models {
		entries = append(entries, modelEntry{
			ID:         id,
			Object:     "model",
			Created:    created,
			OwnedBy:    "copilot-bridge",
			Permission: []any{},
			Root:       id,
			Parent:     nil,
		})
	}

	writeJSON(w, http.StatusOK, modelListResponse{Object: "list", Data: entries})
}
