package copilot

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"copilot-bridge/internal/bridge"
)

// sseStream converts the upstream SSE chunk stream into bridge parts. Text
// deltas are yielded as they arrive; tool-call argument fragments are
// accumulated and yielded as one complete part when the upstream reports a
// finish reason or the stream ends.
type sseStream struct {
	resp    *http.Response
	scanner *bufio.Scanner

	pending []bridge.Part
	calls   []*toolCallAccum
	byIndex map[int]*toolCallAccum
	done    bool
}

type toolCallAccum struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

func newSSEStream(resp *http.Response, body io.Reader) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &sseStream{
		resp:    resp,
		scanner: scanner,
		byIndex: make(map[int]*toolCallAccum),
	}
}

func (s *sseStream) Next(ctx context.Context) (bridge.Part, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(s.pending) > 0 {
			part := s.pending[0]
			s.pending = s.pending[1:]

			return part, nil
		}

		if s.done {
			return nil, io.EOF
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}

			s.done = true
			s.flushCalls()

			continue
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			s.done = true
			s.flushCalls()

			continue
		}

		s.ingest([]byte(payload))
	}
}

type upstreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (s *sseStream) ingest(data []byte) {
	var chunk upstreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
		return
	}

	choice := chunk.Choices[0]

	for _, tc := range choice.Delta.ToolCalls {
		accum, ok := s.byIndex[tc.Index]
		if !ok {
			accum = &toolCallAccum{index: tc.Index}
			s.byIndex[tc.Index] = accum
			s.calls = append(s.calls, accum)
		}

		if tc.ID != "" {
			accum.id = tc.ID
		}

		if tc.Function.Name != "" {
			accum.name = tc.Function.Name
		}

		accum.args.WriteString(tc.Function.Arguments)
	}

	if choice.Delta.Content != "" {
		s.pending = append(s.pending, bridge.TextPart(choice.Delta.Content))
	}

	if choice.FinishReason != nil {
		s.flushCalls()
	}
}

func (s *sseStream) flushCalls() {
	for _, accum := range s.calls {
		if accum.id == "" || accum.name == "" {
			continue
		}

		input := map[string]any{}

		if args := accum.args.String(); args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				input = map[string]any{"raw": args}
			}
		}

		s.pending = append(s.pending, bridge.ToolCallPart{
			CallID: accum.id,
			Name:   accum.name,
			Input:  input,
		})
	}

	s.calls = nil
	s.byIndex = make(map[int]*toolCallAccum)
}

func (s *sseStream) Close() error {
	return s.resp.Body.Close()
}
