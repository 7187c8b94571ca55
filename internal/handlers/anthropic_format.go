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

// anthropicFormatter renders one part stream in the Anthropic Messages
// wire format, streaming or collected.
type anthropicFormatter struct {
	ctx bridge.ResponseContext
}

func writeAnthropicEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}

	if flusher != nil {
		flusher.Flush()
	}

	return nil
}

// streamResponse writes the Anthropic event sequence: message_start, a
// content_block series, message_delta and message_stop. There is no
// [DONE] sentinel in this protocol.
func (rc anthropicFormatter) streamResponse(ctx context.Context, w http.ResponseWriter, stream bridge.Stream) error {
	flusher := sseHeaders(w)

	start := map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            rc.ctx.RequestID,
			"type":          "message",
			"role":          bridge.RoleAssistant,
			"model":         rc.ctx.ModelName,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
		},
	}
	if err := writeAnthropicEvent(w, flusher, "message_start", start); err != nil {
		return err
	}

	const (
		blockNone = iota
		blockText
		blockToolUse
	)

	index := 0
	current := blockNone
	sawToolCall := false

	closeBlock := func() error {
		err := writeAnthropicEvent(w, flusher, "content_block_stop", map[string]any{
			"type":  "content_block_stop",
			"index": index,
		})
		index++
		current = blockNone

		return err
	}

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
			if current != blockText {
				if current != blockNone {
					if err := closeBlock(); err != nil {
						return err
					}
				}

				err := writeAnthropicEvent(w, flusher, "content_block_start", map[string]any{
					"type":          "content_block_start",
					"index":         index,
					"content_block": map[string]any{"type": "text", "text": ""},
				})
				if err != nil {
					return err
				}

				current = blockText
			}

			err := writeAnthropicEvent(w, flusher, "content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": index,
				"delta": map[string]any{"type": "text_delta", "text": string(p)},
			})
			if err != nil {
				return err
			}
		case bridge.ToolCallPart:
			sawToolCall = true

			if current != blockNone {
				if err := closeBlock(); err != nil {
					return err
				}
			}

			// Tool use blocks are opened and closed atomically per call.
			err := writeAnthropicEvent(w, flusher, "content_block_start", map[string]any{
				"type":  "content_block_start",
				"index": index,
				"content_block": map[string]any{
					"type":  "tool_use",
					"id":    p.CallID,
					"name":  p.Name,
					"input": map[string]any{},
				},
			})
			if err != nil {
				return err
			}

			err = writeAnthropicEvent(w, flusher, "content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": index,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": marshalInput(p.Input)},
			})
			if err != nil {
				return err
			}

			if err := closeBlock(); err != nil {
				return err
			}
		}
	}

	if current != blockNone {
		if err := closeBlock(); err != nil {
			return err
		}
	}

	err := writeAnthropicEvent(w, flusher, "message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason(sawToolCall), "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": 0},
	})
	if err != nil {
		return err
	}

	return writeAnthropicEvent(w, flusher, "message_stop", map[string]any{"type": "message_stop"})
}

// collectResponse drains the stream into a single message object.
// Contiguous text accumulates into one block; tool_use blocks interrupt
// and flush the pending text.
func (rc anthropicFormatter) collectResponse(ctx context.Context, stream bridge.Stream) (map[string]any, error) {
	var (
		blocks      []map[string]any
		pending     string
		sawToolCall bool
	)

	flushText := func() {
		if pending != "" {
			blocks = append(blocks, map[string]any{"type": "text", "text": pending})
			pending = ""
		}
	}

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
			pending += string(p)
		case bridge.ToolCallPart:
			sawToolCall = true
			flushText()

			input := p.Input
			if input == nil {
				input = map[string]any{}
			}

			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    p.CallID,
				"name":  p.Name,
				"input": input,
			})
		}
	}

	flushText()

	if blocks == nil {
		blocks = []map[string]any{}
	}

	return map[string]any{
		"id":            rc.ctx.RequestID,
		"type":          "message",
		"role":          bridge.RoleAssistant,
		"model":         rc.ctx.ModelName,
		"content":       blocks,
		"stop_reason":   stopReason(sawToolCall),
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
	}, nil
}

func stopReason(sawToolCall bool) string {
	if sawToolCall {
		return "tool_use"
	}

	return "end_turn"
}
