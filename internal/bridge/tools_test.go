package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeTools_ToolsAndFunctions(t *testing.T) {
	req := &ChatCompletionRequest{
		Tools: []RequestTool{{
			Type:     "function",
			Function: ToolFunction{Name: "a", Description: "first", Parameters: map[string]any{"type": "object"}},
		}},
		Functions: []ToolFunction{{Name: "b"}},
	}

	tools := MergeTools(req)
	require.Len(t, tools, 2)

	assert.Equal(t, "a", tools[0].Name)
	assert.Equal(t, "first", tools[0].Description)
	assert.Equal(t, "b", tools[1].Name)
	assert.Equal(t, "", tools[1].Description, "absent description normalizes to empty string")
}

func TestMergeTools_ChoiceNoneDisables(t *testing.T) {
	req := &ChatCompletionRequest{
		Tools:      []RequestTool{{Type: "function", Function: ToolFunction{Name: "a"}}},
		ToolChoice: json.RawMessage(`"none"`),
	}

	assert.Empty(t, MergeTools(req))
}

func TestMergeTools_LegacyFunctionCallNoneDisables(t *testing.T) {
	req := &ChatCompletionRequest{
		Functions:    []ToolFunction{{Name: "a"}},
		FunctionCall: json.RawMessage(`"none"`),
	}

	assert.Empty(t, MergeTools(req))
}

func TestMergeTools_ChoiceFiltersByName(t *testing.T) {
	req := &ChatCompletionRequest{
		Tools: []RequestTool{
			{Type: "function", Function: ToolFunction{Name: "a"}},
			{Type: "function", Function: ToolFunction{Name: "b"}},
		},
		ToolChoice: json.RawMessage(`{"type":"function","function":{"name":"b"}}`),
	}

	tools := MergeTools(req)
	require.Len(t, tools, 1)
	assert.Equal(t, "b", tools[0].Name)
}

func TestMergeTools_ChoiceNamingUnknownFunctionYieldsEmpty(t *testing.T) {
	req := &ChatCompletionRequest{
		Tools:      []RequestTool{{Type: "function", Function: ToolFunction{Name: "a"}}},
		ToolChoice: json.RawMessage(`{"type":"function","function":{"name":"missing"}}`),
	}

	assert.Empty(t, MergeTools(req), "no fallback to the full list")
}

func TestMergeTools_AutoChoicePassesThrough(t *testing.T) {
	req := &ChatCompletionRequest{
		Tools:      []RequestTool{{Type: "function", Function: ToolFunction{Name: "a"}}},
		ToolChoice: json.RawMessage(`"auto"`),
	}

	assert.Len(t, MergeTools(req), 1)
}

func TestAnthropicTools_Conversion(t *testing.T) {
	req := &MessagesRequest{
		Tools: []AnthropicTool{
			{Name: "search", Description: "find things", InputSchema: map[string]any{"type": "object"}},
			{Name: "fetch"},
		},
	}

	tools := AnthropicTools(req)
	require.Len(t, tools, 2)
	assert.Equal(t, "find things", tools[0].Description)
	assert.Equal(t, "", tools[1].Description)
}

func TestAnthropicTools_ChoiceNone(t *testing.T) {
	req := &MessagesRequest{
		Tools:      []AnthropicTool{{Name: "search"}},
		ToolChoice: &AnthropicToolChoice{Type: "none"},
	}

	assert.Empty(t, AnthropicTools(req))
}

func TestAnthropicTools_ChoiceTool(t *testing.T) {
	req := &MessagesRequest{
		Tools: []AnthropicTool{
			{Name: "search"},
			{Name: "fetch"},
		},
		ToolChoice: &AnthropicToolChoice{Type: "tool", Name: "fetch"},
	}

	tools := AnthropicTools(req)
	require.Len(t, tools, 1)
	assert.Equal(t, "fetch", tools[0].Name)
}

func TestAnthropicTools_ChoiceToolUnknownName(t *testing.T) {
	req := &MessagesRequest{
		Tools:      []AnthropicTool{{Name: "search"}},
		ToolChoice: &AnthropicToolChoice{Type: "tool", Name: "missing"},
	}

	assert.Empty(t, AnthropicTools(req))
}
