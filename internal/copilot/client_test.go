package copilot

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-bridge/internal/bridge"
)

const sampleChunks = `data: {"choices":[{"delta":{"content":"Hello"}}]}

data: {"choices":[{"delta":{"content":" world"}}]}

data: [DONE]

`

func drainStream(t *testing.T, stream bridge.Stream) []bridge.Part {
	t.Helper()
	defer stream.Close()

	var parts []bridge.Part

	for {
		part, err := stream.Next(context.Background())
		if err == io.EOF {
			return parts
		}

		require.NoError(t, err)
		parts = append(parts, part)
	}
}

func TestClientStream(t *testing.T) {
	var captured chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "vscode/1.99.0", r.Header.Get("Editor-Version"))
		assert.Equal(t, "vscode-chat", r.Header.Get("Copilot-Integration-Id"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sampleChunks)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", testLogger())

	messages := []bridge.BackingMessage{{Role: "user", Content: "hi"}}
	tools := []bridge.Tool{{Name: "get_weather", Description: "", InputSchema: map[string]any{"type": "object"}}}

	stream, err := client.Stream(context.Background(), "gpt-4o", messages, tools)
	require.NoError(t, err)

	parts := drainStream(t, stream)
	require.Len(t, parts, 2)
	assert.Equal(t, bridge.TextPart("Hello"), parts[0])
	assert.Equal(t, bridge.TextPart(" world"), parts[1])

	assert.Equal(t, "gpt-4o", captured.Model)
	assert.True(t, captured.Stream, "upstream request always streams")
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "get_weather", captured.Tools[0].Function.Name)
}

func TestClientStream_GzipBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Encoding", "gzip")

		zw := gzip.NewWriter(w)
		_, _ = io.WriteString(zw, sampleChunks)
		_ = zw.Close()
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", testLogger())

	stream, err := client.Stream(context.Background(), "gpt-4o", nil, nil)
	require.NoError(t, err)

	parts := drainStream(t, stream)
	require.Len(t, parts, 2)
	assert.Equal(t, bridge.TextPart("Hello"), parts[0])
}

func TestClientStream_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", testLogger())

	_, err := client.Stream(context.Background(), "gpt-4o", nil, nil)
	require.Error(t, err)

	var status *statusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
	assert.Equal(t, "slow down", status.Body)
}

func TestClientListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "gpt-4o"}, {"id": "o3-mini"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", testLogger())

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "o3-mini"}, models)
}
