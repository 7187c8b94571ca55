package bridge

import (
	"encoding/json"
	"strings"
)

// Anthropic content block types.
const (
	BlockText             = "text"
	BlockThinking         = "thinking"
	BlockRedactedThinking = "redacted_thinking"
	BlockToolUse          = "tool_use"
	BlockToolResult       = "tool_result"
)

// ContentBlock is a tagged Anthropic content block. Only the fields for the
// block's type are populated.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// AnthropicMessage is one turn of an Anthropic-style conversation.
type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Blocks decodes the message content as a block array. String content is
// wrapped into a single text block.
func (m *AnthropicMessage) Blocks() []ContentBlock {
	if len(m.Content) == 0 || string(m.Content) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return []ContentBlock{{Type: BlockText, Text: s}}
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}

	return blocks
}

// AnthropicTool is an Anthropic tool declaration.
type AnthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// AnthropicToolChoice is the tool_choice object of the messages route.
type AnthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model      string               `json:"model"`
	Messages   []AnthropicMessage   `json:"messages"`
	MaxTokens  int                  `json:"max_tokens"`
	System     json.RawMessage      `json:"system,omitempty"`
	Stream     bool                 `json:"stream,omitempty"`
	Tools      []AnthropicTool      `json:"tools,omitempty"`
	ToolChoice *AnthropicToolChoice `json:"tool_choice,omitempty"`
}

// Valid reports whether the request carries a model and a messages array.
// max_tokens is validated separately so the route can report it distinctly.
func (r *MessagesRequest) Valid() bool {
	return r.Model != "" && r.Messages != nil
}

// SystemText collapses the system field (string or text-block array) to a
// single prompt string.
func (r *MessagesRequest) SystemText() string {
	if len(r.System) == 0 || string(r.System) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(r.System, &s); err == nil {
		return s
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(r.System, &blocks); err != nil {
		return ""
	}

	parts := make([]string, 0, len(blocks))

	for _, b := range blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}

	return strings.Join(parts, "\n")
}
