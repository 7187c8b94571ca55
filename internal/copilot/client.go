package copilot

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"copilot-bridge/internal/bridge"
)

const (
	chatCompletionsPath = "/chat/completions"
	modelsPath          = "/models"

	editorVersion = "vscode/1.99.0"
	integrationID = "vscode-chat"
)

// statusError carries an upstream HTTP status for reason mapping.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Client speaks the Copilot OpenAI-compatible chat API over HTTP.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given endpoint. The token must already
// be resolved; see ResolveToken.
func NewClient(apiBase, token string, logger *slog.Logger) *Client {
	return &Client{
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 0}, // streaming; bounded by the provider
		logger:     logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Editor-Version", editorVersion)
	req.Header.Set("Copilot-Integration-Id", integrationID)

	return req, nil
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the upstream model catalog.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, modelsPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}

	return ids, nil
}

type upstreamFunction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

type upstreamTool struct {
	Type     string           `json:"type"`
	Function upstreamFunction `json:"function"`
}

type chatRequest struct {
	Model    string                  `json:"model"`
	Messages []bridge.BackingMessage `json:"messages"`
	Stream   bool                    `json:"stream"`
	Tools    []upstreamTool          `json:"tools,omitempty"`
}

// Stream opens one streaming completion and returns a pull iterator over
// its parts. The returned stream is bound to ctx: cancelling it aborts the
// upstream request.
func (c *Client) Stream(ctx context.Context, model string, messages []bridge.BackingMessage, tools []bridge.Tool) (bridge.Stream, error) {
	payload := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	for _, t := range tools {
		payload.Tools = append(payload.Tools, upstreamTool{
			Type: "function",
			Function: upstreamFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	c.logger.Debug("upstream stream open", "model", model, "latency", time.Since(start))

	reader, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decompress upstream response: %w", err)
	}

	return newSSEStream(resp, reader), nil
}

// decompressReader unwraps gzip and brotli encodings on the upstream body.
func decompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
