package core

import (
	"encoding/json"
	"fmt"
)

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers exactly one ToolCall. Payload is always a JSON object;
// failures are carried as {"error": "..."} with IsError set.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	IsError    bool            `json:"is_error,omitempty"`
}

type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Required    []string        `json:"required,omitempty"`
}

func NewToolResult(call ToolCall, payload any) ToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return NewToolError(call, fmt.Sprintf("encode result: %v", err))
	}
	return ToolResult{ToolCallID: call.ID, Name: call.Name, Payload: data}
}

func NewToolError(call ToolCall, errMsg string) ToolResult {
	data, _ := json.Marshal(map[string]string{"error": errMsg})
	return ToolResult{ToolCallID: call.ID, Name: call.Name, Payload: data, IsError: true}
}

// Message renders the result as the tool-role message fed back to the model.
func (r ToolResult) Message() Message {
	return NewToolMessage(r.ToolCallID, string(r.Payload))
}
