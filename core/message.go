package core

import "fmt"

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage is the assistant turn that requested calls. It must
// precede the tool messages answering it.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// CheckToolPairing verifies that every tool message answers a call made by
// the assistant turn it follows, and that every call is answered before the
// conversation moves on.
func CheckToolPairing(msgs []Message) error {
	pending := map[string]bool{}
	for i, m := range msgs {
		if m.Role == RoleTool {
			if !pending[m.ToolCallID] {
				return NewValidationError("messages",
					fmt.Sprintf("tool message at index %d answers no pending tool call %q", i, m.ToolCallID))
			}
			delete(pending, m.ToolCallID)
			continue
		}
		if len(pending) > 0 {
			return NewValidationError("messages", fmt.Sprintf("tool calls before index %d have no result", i))
		}
		if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
			return NewValidationError("messages", fmt.Sprintf("only assistant messages carry tool calls (index %d)", i))
		}
		for _, c := range m.ToolCalls {
			if c.ID == "" || pending[c.ID] {
				return NewValidationError("messages", fmt.Sprintf("empty or duplicate tool call id %q at index %d", c.ID, i))
			}
			pending[c.ID] = true
		}
	}
	if len(pending) > 0 {
		return NewValidationError("messages", "tool calls at the end of messages have no result")
	}
	return nil
}
