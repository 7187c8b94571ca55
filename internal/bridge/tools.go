package bridge

import "encoding/json"

// Tool is the provider-neutral tool shape handed to the backing model.
// Description is always concrete; clients that omit it get "".
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// toolChoiceFunction matches the object form of tool_choice that names one
// specific function.
type toolChoiceFunction struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

func choiceDisabled(raw json.RawMessage) bool {
	var s string

	return json.Unmarshal(raw, &s) == nil && s == "none"
}

func choiceFunctionName(raw json.RawMessage) string {
	var tc toolChoiceFunction
	if err := json.Unmarshal(raw, &tc); err != nil {
		return ""
	}

	if tc.Type != "function" {
		return ""
	}

	return tc.Function.Name
}

// MergeTools combines the request's tools with its deprecated functions and
// applies tool_choice. A tool_choice naming a function absent from the
// merged list yields an empty result, with no fallback to the full list.
func MergeTools(req *ChatCompletionRequest) []Tool {
	if choiceDisabled(req.ToolChoice) || choiceDisabled(req.FunctionCall) {
		return []Tool{}
	}

	merged := make([]Tool, 0, len(req.Tools)+len(req.Functions))

	for _, t := range req.Tools {
		merged = append(merged, Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}

	for _, f := range req.Functions {
		merged = append(merged, Tool{
			Name:        f.Name,
			Description: f.Description,
			InputSchema: f.Parameters,
		})
	}

	if name := choiceFunctionName(req.ToolChoice); name != "" {
		return filterByName(merged, name)
	}

	return merged
}

// AnthropicTools converts the messages route's tools and tool_choice into
// the normalized shape, with the same silent-empty filtering contract.
func AnthropicTools(req *MessagesRequest) []Tool {
	if req.ToolChoice != nil && req.ToolChoice.Type == "none" {
		return []Tool{}
	}

	tools := make([]Tool, 0, len(req.Tools))

	for _, t := range req.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	if req.ToolChoice != nil && req.ToolChoice.Type == "tool" && req.ToolChoice.Name != "" {
		return filterByName(tools, req.ToolChoice.Name)
	}

	return tools
}

func filterByName(tools []Tool, name string) []Tool {
	filtered := make([]Tool, 0, 1)

	for _, t := range tools {
		if t.Name == name {
			filtered = append(filtered, t)
		}
	}

	return filtered
}
