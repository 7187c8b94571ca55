package copilot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"copilot-bridge/internal/bridge"
)

// handle binds a resolved model id to the client that can invoke it.
type handle struct {
	client *Client
	id     string
}

func (h *handle) ID() string {
	return h.id
}

func (h *handle) Invoke(ctx context.Context, messages []bridge.BackingMessage, tools []bridge.Tool) (bridge.Stream, error) {
	return h.client.Stream(ctx, h.id, messages, tools)
}

// Service resolves model handles against the Copilot catalog. The default
// resolution (empty id) is cached in the shared bridge state; resolutions
// by explicit id are not cached, matching how clients probe for families.
type Service struct {
	client       *Client // nil when no upstream is configured
	defaultModel string
	state        *bridge.State
	logger       *slog.Logger
}

// NewService creates a resolver. A nil client means the backing API is
// absent entirely; every resolution then fails with
// missing_language_model_api.
func NewService(client *Client, defaultModel string, state *bridge.State, logger *slog.Logger) *Service {
	return &Service{
		client:       client,
		defaultModel: defaultModel,
		state:        state,
		logger:       logger,
	}
}

func (s *Service) Resolve(ctx context.Context, id string) (bridge.Handle, error) {
	if id == "" {
		if h := s.state.CachedModel(); h != nil {
			return h, nil
		}
	}

	if s.client == nil {
		return nil, s.unavailable(bridge.ReasonMissingAPI, "language model API unavailable")
	}

	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, s.catalogError(err)
	}

	if id != "" {
		if match := matchModel(models, id); match != "" {
			s.state.SetLastReason("")
			return &handle{client: s.client, id: match}, nil
		}

		return nil, s.unavailable(bridge.ReasonNotFound, "model not found")
	}

	chosen := s.pickDefault(models)
	if chosen == "" {
		return nil, s.unavailable(bridge.ReasonModelUnavailable, "no copilot models available")
	}

	h := &handle{client: s.client, id: chosen}
	s.state.StoreModel(h)

	return h, nil
}

func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, s.unavailable(bridge.ReasonMissingAPI, "language model API unavailable")
	}

	return s.client.ListModels(ctx)
}

func (s *Service) Invalidate() {
	s.state.InvalidateModel()
}

func (s *Service) pickDefault(models []string) string {
	if s.defaultModel != "" {
		if match := matchModel(models, s.defaultModel); match != "" {
			return match
		}
	}

	if len(models) > 0 {
		return models[0]
	}

	return ""
}

// matchModel prefers an exact id match and falls back to a family prefix
// match, so "gpt-4o" resolves against "gpt-4o-2024-11-20".
func matchModel(models []string, id string) string {
	for _, m := range models {
		if m == id {
			return m
		}
	}

	for _, m := range models {
		if strings.HasPrefix(m, id) {
			return m
		}
	}

	return ""
}

func (s *Service) unavailable(reason, message string) error {
	s.state.SetLastReason(reason)
	s.logger.Debug("model resolution failed", "reason", reason, "message", message)

	return &bridge.UnavailableError{Reason: reason, Message: message}
}

func (s *Service) catalogError(err error) error {
	var status *statusError
	if errors.As(err, &status) {
		switch status.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return s.unavailable(bridge.ReasonConsentRequired, "copilot consent required")
		case http.StatusTooManyRequests:
			return s.unavailable(bridge.ReasonRateLimited, "copilot rate limited")
		}
	}

	return s.unavailable(bridge.ReasonModelUnavailable, err.Error())
}
