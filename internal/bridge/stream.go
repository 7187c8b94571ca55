package bridge

import (
	"context"
	"io"
)

// Part is one fragment of a model invocation's output stream: either a
// text fragment or a complete tool call.
type Part interface {
	part()
}

// TextPart is a fragment of assistant text.
type TextPart string

func (TextPart) part() {}

// ToolCallPart is a complete tool invocation requested by the model.
type ToolCallPart struct {
	CallID string
	Name   string
	Input  map[string]any
}

func (ToolCallPart) part() {}

// Stream is a pull-based iterator over one invocation's parts. Next returns
// io.EOF when the stream is drained and must observe ctx on every pull so
// that client disconnects cancel the backing request promptly.
type Stream interface {
	Next(ctx context.Context) (Part, error)
	Close() error
}

// Parts is an in-memory Stream over a fixed part list.
type Parts struct {
	parts []Part
	pos   int
}

// NewParts returns a Stream that yields the given parts in order.
func NewParts(parts ...Part) *Parts {
	return &Parts{parts: parts}
}

func (p *Parts) Next(ctx context.Context) (Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.pos >= len(p.parts) {
		return nil, io.EOF
	}

	part := p.parts[p.pos]
	p.pos++

	return part, nil
}

func (p *Parts) Close() error {
	return nil
}
