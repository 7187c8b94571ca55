package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"copilot-bridge/internal/bridge"
)

type chunkToolCall struct {
	Index    int                 `json:"index"`
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function bridge.FunctionCall `json:"function"`
}

type chunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []chunkToolCall `json:"tool_calls,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type completionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type completionMessage struct {
	Role         string               `json:"role"`
	Content      *string              `json:"content"`
	ToolCalls    []bridge.ToolCall    `json:"tool_calls,omitempty"`
	FunctionCall *bridge.FunctionCall `json:"function_call,omitempty"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

func marshalInput(input map[string]any) string {
	data, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}

	return string(data)
}

func sseHeaders(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	return flusher
}

func writeSSEData(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	if flusher != nil {
		flusher.Flush()
	}

	return nil
}

func (rc openAIFormatter) chunk(delta chunkDelta, finish *string) completionChunk {
	return completionChunk{
		ID:      rc.ctx.RequestID,
		Object:  "chat.completion.chunk",
		Created: rc.ctx.CreatedAt,
		Model:   rc.ctx.ModelName,
		Choices: []chunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}

// openAIFormatter renders one part stream in the Chat Completions wire
// format, streaming or collected.
type openAIFormatter struct {
	ctx bridge.ResponseContext

	// legacyFunctionCall echoes a function_call field on the final
	// message when the request used the deprecated functions surface.
	legacyFunctionCall bool
}

// streamResponse writes the SSE chunk sequence: one role chunk, a chunk
// per part, a finish chunk and the [DONE] sentinel.
func (rc openAIFormatter) streamResponse(ctx context.Context, w http.ResponseWriter, stream bridge.Stream) error {
	flusher := sseHeaders(w)

	if err := writeSSEData(w, flusher, rc.chunk(chunkDelta{Role: bridge.RoleAssistant}, nil)); err != nil {
		return err
	}

	sawToolCall := false
	callIndex := 0

	for {
		part, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		switch p := part.(type) {
		case bridge.TextPart:
			if p == "" {
				continue
			}

			if err := writeSSEData(w, flusher, rc.chunk(chunkDelta{Content: string(p)}, nil)); err != nil {
				return err
			}
		case bridge.ToolCallPart:
			sawToolCall = true

			delta := chunkDelta{ToolCalls: []chunkToolCall{{
				Index:    callIndex,
				ID:       p.CallID,
				Type:     "function",
				Function: bridge.FunctionCall{Name: p.Name, Arguments: marshalInput(p.Input)},
			}}}
			callIndex++

			if err := writeSSEData(w, flusher, rc.chunk(delta, nil)); err != nil {
				return err
			}
		}
	}

	finish := finishReason(sawToolCall)
	if err := writeSSEData(w, flusher, rc.chunk(chunkDelta{}, &finish)); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}

	if flusher != nil {
		flusher.Flush()
	}

	return nil
}

// collectResponse drains the stream into a single chat.completion object.
func (rc openAIFormatter) collectResponse(ctx context.Context, stream bridge.Stream) (*chatCompletion, error) {
	var (
		text  string
		calls []bridge.ToolCall
	)

	for {
		part, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		switch p := part.(type) {
		case bridge.TextPart:
			text += string(p)
		case bridge.ToolCallPart:
			calls = append(calls, bridge.ToolCall{
				ID:       p.CallID,
				Type:     "function",
				Function: bridge.FunctionCall{Name: p.Name, Arguments: marshalInput(p.Input)},
			})
		}
	}

	message := completionMessage{Role: bridge.RoleAssistant, ToolCalls: calls}

	// Content and tool_calls are mutually exclusive on the final message.
	if len(calls) == 0 {
		message.Content = &text
	}

	if rc.legacyFunctionCall && len(calls) == 1 {
		fc := calls[0].Function
		message.FunctionCall = &fc
	}

	return &chatCompletion{
		ID:      rc.ctx.RequestID,
		Object:  "chat.completion",
		Created: rc.ctx.CreatedAt,
		Model:   rc.ctx.ModelName,
		Choices: []completionChoice{{
			Index:        0,
			Message:      message,
			FinishReason: finishReason(len(calls) > 0),
		}},
	}, nil
}

func finishReason(sawToolCall bool) string {
	if sawToolCall {
		return "tool_calls"
	}

	return "stop"
}
