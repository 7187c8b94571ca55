package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles accepted on the OpenAI-compatible route.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FunctionCall is the OpenAI function invocation shape, also used by the
// deprecated top-level function_call field.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is an OpenAI tool invocation attached to an assistant message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ChatMessage is one turn of an OpenAI-style conversation. Content is kept
// raw because clients send either a string, a content-part array, or null.
type ChatMessage struct {
	Role         string          `json:"role"`
	Content      json.RawMessage `json:"content,omitempty"`
	Name         string          `json:"name,omitempty"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	FunctionCall *FunctionCall   `json:"function_call,omitempty"`
}

func validRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}

	return false
}

func (m *ChatMessage) hasContent() bool {
	return len(m.Content) > 0
}

func (m *ChatMessage) contentIsNull() bool {
	return string(m.Content) == "null"
}

// Valid reports whether the message satisfies the per-role shape rules:
// tool messages carry a tool_call_id and string-or-null content, assistant
// messages carry at least one of content/tool_calls/function_call, and
// system/user messages carry non-null content.
func (m *ChatMessage) Valid() bool {
	if !validRole(m.Role) {
		return false
	}

	switch m.Role {
	case RoleTool:
		if m.ToolCallID == "" {
			return false
		}

		if !m.hasContent() {
			return false
		}

		if m.contentIsNull() {
			return true
		}

		var s string

		return json.Unmarshal(m.Content, &s) == nil
	case RoleAssistant:
		return m.hasContent() || len(m.ToolCalls) > 0 || m.FunctionCall != nil
	default:
		return m.hasContent() && !m.contentIsNull()
	}
}

// Text collapses the message content to plain text. String content passes
// through verbatim, part arrays are joined recursively, structured parts
// prefer their text field and fall back to their JSON rendering.
func (m *ChatMessage) Text() string {
	if !m.hasContent() || m.contentIsNull() {
		return ""
	}

	var v any
	if err := json.Unmarshal(m.Content, &v); err != nil {
		return string(m.Content)
	}

	return coerceText(v)
}

func coerceText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, coerceText(e))
		}

		return strings.Join(parts, "\n")
	case map[string]any:
		if text, ok := t["text"].(string); ok {
			return text
		}

		if data, err := json.Marshal(t); err == nil {
			return string(data)
		}

		return fmt.Sprint(t)
	case nil:
		return ""
	default:
		if data, err := json.Marshal(t); err == nil {
			return string(data)
		}

		return fmt.Sprint(t)
	}
}

// ToolFunction is the function body of an OpenAI tool declaration, and the
// element type of the deprecated top-level functions field.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// RequestTool is an OpenAI tool declaration ({type:"function", function:{...}}).
type RequestTool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions. Unknown
// fields are ignored; only the consumed subset is declared.
type ChatCompletionRequest struct {
	Model        string          `json:"model,omitempty"`
	Messages     []ChatMessage   `json:"messages"`
	Stream       *bool           `json:"stream,omitempty"`
	Tools        []RequestTool   `json:"tools,omitempty"`
	ToolChoice   json.RawMessage `json:"tool_choice,omitempty"`
	Functions    []ToolFunction  `json:"functions,omitempty"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
}

// Streaming reports whether the request asked for SSE output. Absent means
// streaming on this route.
func (r *ChatCompletionRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// UsesFunctionCall reports whether the deprecated function_call field was
// present, which turns on the legacy function_call echo in responses.
func (r *ChatCompletionRequest) UsesFunctionCall() bool {
	return len(r.FunctionCall) > 0
}

// Valid reports whether the request carries a non-empty list of
// well-formed messages.
func (r *ChatCompletionRequest) Valid() bool {
	if len(r.Messages) == 0 {
		return false
	}

	for i := range r.Messages {
		if !r.Messages[i].Valid() {
			return false
		}
	}

	return true
}
