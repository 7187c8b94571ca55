package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"copilot-bridge/internal/bridge"
)

// Messages handles POST /v1/messages.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	body, err := readBody(w, r)
	if err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req bridge.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !req.Valid() {
		writeAnthropicError(w, http.StatusBadRequest, "model and messages are required")
		return
	}

	if req.MaxTokens <= 0 {
		writeAnthropicError(w, http.StatusBadRequest, "max_tokens is required and must be greater than 0")
		return
	}

	handle, err := h.resolver.Resolve(r.Context(), req.Model)
	if err != nil {
		status, message, _ := resolutionStatus(req.Model, err)
		writeAnthropicError(w, status, message)

		return
	}

	if !h.state.TryAcquire(int64(cfg.MaxConcurrent)) {
		writeAnthropicError(w, http.StatusTooManyRequests, "too many concurrent requests")
		return
	}
	defer h.state.Release()

	tools := bridge.AnthropicTools(&req)
	messages := bridge.NormalizeAnthropic(&req, cfg.HistoryWindow)

	h.logPrompt(r, "messages", handle.ID(), messages, len(tools))

	stream, err := handle.Invoke(r.Context(), messages, tools)
	if err != nil {
		h.resolver.Invalidate()
		writeAnthropicError(w, http.StatusInternalServerError, err.Error())

		return
	}
	defer stream.Close()

	formatter := anthropicFormatter{
		ctx: bridge.NewResponseContext("msg_"+uuid.NewString(), handle.ID(), req.Stream),
	}

	if req.Stream {
		if err := formatter.streamResponse(r.Context(), w, stream); err != nil {
			h.logger.Warn("messages stream aborted", "error", err)
		}

		return
	}

	message, err := formatter.collectResponse(r.Context(), stream)
	if err != nil {
		h.resolver.Invalidate()
		writeAnthropicError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, message)
}
