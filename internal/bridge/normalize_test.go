package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

func TestNormalize_SystemFoldedIntoFirstUserTurn(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: text("be terse")},
		{Role: RoleUser, Content: text("hello")},
		{Role: RoleAssistant, Content: text("hi")},
		{Role: RoleUser, Content: text("again")},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 3)

	assert.Equal(t, RoleUser, result[0].Role)
	assert.Equal(t, "[SYSTEM]\nbe terse\n\n[DIALOG]\nuser: hello", result[0].Content)
	assert.Equal(t, BackingMessage{Role: RoleAssistant, Content: "hi"}, result[1])
	assert.Equal(t, BackingMessage{Role: RoleUser, Content: "again"}, result[2])
}

func TestNormalize_LastSystemWins(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: text("first")},
		{Role: RoleUser, Content: text("hello")},
		{Role: RoleSystem, Content: text("second")},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 1)
	assert.Equal(t, "[SYSTEM]\nsecond\n\n[DIALOG]\nuser: hello", result[0].Content)
}

func TestNormalize_TrimsToHistoryWindow(t *testing.T) {
	var messages []ChatMessage
	for i := 0; i < 10; i++ {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: text("turn")})
	}

	result := Normalize(messages, 1)
	assert.Len(t, result, 3)
}

func TestNormalize_ToolTraffic(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleUser, Content: text("weather?")},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: FunctionCall{Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		}}},
		{Role: RoleTool, ToolCallID: "call_1", Content: text("rainy")},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 3)

	assert.Equal(t, `[TOOL_CALL:call_1] get_weather({"city":"Oslo"})`, result[1].Content)
	assert.Equal(t, RoleAssistant, result[1].Role)
	assert.Equal(t, "[TOOL_RESULT:call_1] rainy", result[2].Content)
	assert.Equal(t, RoleUser, result[2].Role, "tool results become user turns")
}

func TestNormalize_AssistantTextWithToolCalls(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleUser, Content: text("go")},
		{Role: RoleAssistant, Content: text("checking"), ToolCalls: []ToolCall{{
			ID:       "call_2",
			Function: FunctionCall{Name: "lookup", Arguments: "{}"},
		}}},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 2)
	assert.Equal(t, "checking\n[TOOL_CALL:call_2] lookup({})", result[1].Content)
}

func TestNormalize_LegacyFunctionCall(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleUser, Content: text("go")},
		{Role: RoleAssistant, FunctionCall: &FunctionCall{Name: "run", Arguments: `{"x":1}`}},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 2)
	assert.Equal(t, `[FUNCTION_CALL] run({"x":1})`, result[1].Content)
}

func TestNormalize_SystemOnlyConversation(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: text("just the rules")},
	}

	result := Normalize(messages, 3)
	require.Len(t, result, 1)
	assert.Equal(t, BackingMessage{Role: RoleUser, Content: "[SYSTEM]\njust the rules"}, result[0])
}

func TestNormalize_NeverEmpty(t *testing.T) {
	result := Normalize(nil, 3)
	require.Len(t, result, 1)
	assert.Equal(t, BackingMessage{Role: RoleUser, Content: ""}, result[0])
}

func TestNormalize_SystemAfterTrimStillFolds(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: text("rules")},
	}
	for i := 0; i < 5; i++ {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: text("u")})
		messages = append(messages, ChatMessage{Role: RoleAssistant, Content: text("a")})
	}

	result := Normalize(messages, 1)
	require.Len(t, result, 3)

	// The kept window starts on an assistant turn; the system prompt folds
	// into the first user turn that survives the trim.
	assert.NotContains(t, result[0].Content, "[SYSTEM]")
	assert.Contains(t, result[1].Content, "[SYSTEM]\nrules")
}

func TestNormalizeAnthropic_SystemAndBlocks(t *testing.T) {
	req := &MessagesRequest{
		Model: "gpt-4o",
		System: text("be helpful"),
		Messages: []AnthropicMessage{
			{Role: RoleUser, Content: text("hello")},
			{Role: RoleAssistant, Content: json.RawMessage(`[{"type":"text","text":"hi"}]`)},
		},
	}

	result := NormalizeAnthropic(req, 3)
	require.Len(t, result, 2)

	assert.Equal(t, "[SYSTEM]\nbe helpful\n\nhello", result[0].Content)
	assert.Equal(t, RoleUser, result[0].Role)
	assert.Equal(t, "hi", result[1].Content)
	assert.Equal(t, RoleUser, result[1].Role, "all anthropic turns are sent as user turns")
}

func TestNormalizeAnthropic_ToolBlocks(t *testing.T) {
	req := &MessagesRequest{
		Model: "gpt-4o",
		Messages: []AnthropicMessage{
			{Role: RoleAssistant, Content: json.RawMessage(`[{"type":"tool_use","id":"tu_1","name":"search","input":{"q":"go"}}]`)},
			{Role: RoleUser, Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"tu_1","content":"found it"}]`)},
		},
	}

	result := NormalizeAnthropic(req, 3)
	require.Len(t, result, 2)

	assert.Equal(t, `[TOOL_CALL:tu_1] search({"q":"go"})`, result[0].Content)
	assert.Equal(t, "[TOOL_RESULT:tu_1]\nfound it", result[1].Content)
}

func TestNormalizeAnthropic_NestedToolResultBlocks(t *testing.T) {
	req := &MessagesRequest{
		Model: "gpt-4o",
		Messages: []AnthropicMessage{
			{Role: RoleUser, Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"tu_2","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]`)},
		},
	}

	result := NormalizeAnthropic(req, 3)
	require.Len(t, result, 1)
	assert.Equal(t, "[TOOL_RESULT:tu_2]\na\nb", result[0].Content)
}

func TestNormalizeAnthropic_EmptyConversation(t *testing.T) {
	req := &MessagesRequest{Model: "gpt-4o", System: text("rules")}

	result := NormalizeAnthropic(req, 3)
	require.Len(t, result, 1)
	assert.Equal(t, "[SYSTEM]\nrules", result[0].Content)
}
