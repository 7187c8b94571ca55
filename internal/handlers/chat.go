package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"copilot-bridge/internal/bridge"
	"copilot-bridge/internal/config"
)

const maxRequestBody = 10 << 20

// ChatHandler serves the two completion routes. Both share the same
// dispatch shape: validate, resolve a model, acquire an admission slot,
// invoke, then hand the part stream to the route's formatter.
type ChatHandler struct {
	config   *config.Manager
	resolver bridge.Resolver
	state    *bridge.State
	logger   *slog.Logger
}

func NewChatHandler(cfg *config.Manager, resolver bridge.Resolver, state *bridge.State, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		config:   cfg,
		resolver: resolver,
		state:    state,
		logger:   logger,
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
}

// resolutionStatus maps a resolution failure to a status, message and
// reason code. A named model that is simply absent is a 404; everything
// else is a 503 carrying the reason.
func resolutionStatus(requested string, err error) (status int, message, reason string) {
	var unavailable *bridge.UnavailableError
	if !errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable, err.Error(), bridge.ReasonModelUnavailable
	}

	if requested != "" && unavailable.Reason == bridge.ReasonNotFound {
		return http.StatusNotFound, fmt.Sprintf("model %q not found", requested), ""
	}

	return http.StatusServiceUnavailable, unavailable.Error(), unavailable.Reason
}

// Completions handles POST /v1/chat/completions.
func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req bridge.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !req.Valid() {
		writeError(w, http.StatusBadRequest, "messages must be a non-empty array of valid messages")
		return
	}

	handle, err := h.resolver.Resolve(r.Context(), req.Model)
	if err != nil {
		status, message, reason := resolutionStatus(req.Model, err)
		writeErrorReason(w, status, message, reason)

		return
	}

	if !h.state.TryAcquire(int64(cfg.MaxConcurrent)) {
		writeError(w, http.StatusTooManyRequests, "too many concurrent requests")
		return
	}
	defer h.state.Release()

	tools := bridge.MergeTools(&req)
	messages := bridge.Normalize(req.Messages, cfg.HistoryWindow)

	h.logPrompt(r, "chat completion", handle.ID(), messages, len(tools))

	stream, err := handle.Invoke(r.Context(), messages, tools)
	if err != nil {
		h.resolver.Invalidate()
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}
	defer stream.Close()

	formatter := openAIFormatter{
		ctx:                bridge.NewResponseContext("chatcmpl-"+uuid.NewString(), handle.ID(), req.Streaming()),
		legacyFunctionCall: req.UsesFunctionCall(),
	}

	if req.Streaming() {
		if err := formatter.streamResponse(r.Context(), w, stream); err != nil {
			h.logger.Warn("chat completion stream aborted", "error", err)
		}

		return
	}

	completion, err := formatter.collectResponse(r.Context(), stream)
	if err != nil {
		h.resolver.Invalidate()
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, completion)
}

func (h *ChatHandler) logPrompt(r *http.Request, route, model string, messages []bridge.BackingMessage, toolCount int) {
	if !h.logger.Enabled(r.Context(), slog.LevelDebug) {
		return
	}

	h.logger.Debug(route+" prompt prepared",
		"model", model,
		"turns", len(messages),
		"tools", toolCount,
		"prompt_tokens_est", estimateTokens(messages),
	)
}

// estimateTokens is a logging-only estimate of the prompt size.
func estimateTokens(messages []bridge.BackingMessage) int {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0
	}

	total := 0
	for _, m := range messages {
		total += len(encoding.Encode(m.Content, nil, nil))
	}

	return total
}
