package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BackingMessage is one turn in the backing model's format. The backing
// model only understands user and assistant roles; system content and tool
// traffic are folded into those.
type BackingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// windowMultiplier reserves room for tool-result turns that get folded
// into user turns when trimming history.
const windowMultiplier = 3

// Normalize converts an OpenAI-style message list into backing-model turns.
// The last system message wins, conversation roles are trimmed to the last
// historyWindow*3 entries, tool traffic is rendered as bracketed text, and
// the result is never empty.
func Normalize(messages []ChatMessage, historyWindow int) []BackingMessage {
	var system *ChatMessage

	for i := range messages {
		if messages[i].Role == RoleSystem {
			system = &messages[i]
		}
	}

	conversation := make([]ChatMessage, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleTool:
			conversation = append(conversation, m)
		}
	}

	if keep := historyWindow * windowMultiplier; len(conversation) > keep {
		conversation = conversation[len(conversation)-keep:]
	}

	result := make([]BackingMessage, 0, len(conversation)+1)
	firstUserSeen := false

	for _, m := range conversation {
		switch m.Role {
		case RoleUser:
			text := m.Text()
			if !firstUserSeen && system != nil {
				text = fmt.Sprintf("[SYSTEM]\n%s\n\n[DIALOG]\nuser: %s", system.Text(), text)
				firstUserSeen = true
			}

			result = append(result, BackingMessage{Role: RoleUser, Content: text})
		case RoleAssistant:
			result = append(result, BackingMessage{Role: RoleAssistant, Content: renderAssistant(m)})
		case RoleTool:
			text := fmt.Sprintf("[TOOL_RESULT:%s] %s", m.ToolCallID, m.Text())
			result = append(result, BackingMessage{Role: RoleUser, Content: text})
		}
	}

	if !firstUserSeen && system != nil {
		turn := BackingMessage{Role: RoleUser, Content: "[SYSTEM]\n" + system.Text()}
		result = append([]BackingMessage{turn}, result...)
	}

	if len(result) == 0 {
		result = append(result, BackingMessage{Role: RoleUser, Content: ""})
	}

	return result
}

func renderAssistant(m ChatMessage) string {
	text := m.Text()

	if len(m.ToolCalls) > 0 {
		calls := make([]string, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, fmt.Sprintf("[TOOL_CALL:%s] %s(%s)", tc.ID, tc.Function.Name, tc.Function.Arguments))
		}

		if text != "" {
			return text + "\n" + strings.Join(calls, "\n")
		}

		return strings.Join(calls, "\n")
	}

	if text == "" && m.FunctionCall != nil {
		return fmt.Sprintf("[FUNCTION_CALL] %s(%s)", m.FunctionCall.Name, m.FunctionCall.Arguments)
	}

	return text
}

// NormalizeAnthropic converts an Anthropic messages request into
// backing-model turns. Every turn is rendered as a user message for the
// backing model, with the system prompt folded into the first user turn.
func NormalizeAnthropic(req *MessagesRequest, historyWindow int) []BackingMessage {
	system := req.SystemText()

	conversation := req.Messages
	if keep := historyWindow * windowMultiplier; len(conversation) > keep {
		conversation = conversation[len(conversation)-keep:]
	}

	result := make([]BackingMessage, 0, len(conversation))

	for i := range conversation {
		m := &conversation[i]

		content := renderAnthropicContent(m)
		if i == 0 && m.Role == RoleUser && system != "" {
			content = fmt.Sprintf("[SYSTEM]\n%s\n\n%s", system, content)
		}

		result = append(result, BackingMessage{Role: RoleUser, Content: content})
	}

	if len(result) == 0 {
		content := ""
		if system != "" {
			content = "[SYSTEM]\n" + system
		}

		result = append(result, BackingMessage{Role: RoleUser, Content: content})
	}

	return result
}

func renderAnthropicContent(m *AnthropicMessage) string {
	var parts []string

	for _, block := range m.Blocks() {
		switch block.Type {
		case BlockText:
			parts = append(parts, block.Text)
		case BlockToolUse:
			input, err := json.Marshal(block.Input)
			if err != nil {
				input = []byte("{}")
			}

			parts = append(parts, fmt.Sprintf("[TOOL_CALL:%s] %s(%s)", block.ID, block.Name, input))
		case BlockToolResult:
			parts = append(parts, fmt.Sprintf("[TOOL_RESULT:%s]\n%s", block.ToolUseID, toolResultText(block)))
		}
	}

	return strings.Join(parts, "\n")
}

func toolResultText(block ContentBlock) string {
	if len(block.Content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(block.Content, &s); err == nil {
		return s
	}

	var nested []ContentBlock
	if err := json.Unmarshal(block.Content, &nested); err != nil {
		return string(block.Content)
	}

	parts := make([]string, 0, len(nested))

	for _, b := range nested {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}

	return strings.Join(parts, "\n")
}
