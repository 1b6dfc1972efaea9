package server

import (
	"encoding/json"
	"strings"

	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/server/store"
)

// Re-export types from store package
type (
	Conversation    = store.Conversation
	StoredMessage   = store.Message
	KnowledgeRecord = store.KnowledgeRecord
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Required    []string        `json:"required,omitempty"`
}

type ChatRequest struct {
	Messages []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []HistoryToolCall `json:"tool_calls,omitempty"`
}

// HistoryToolCall is an assistant tool call in the OpenAI wire shape.
type HistoryToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type,omitempty"`
	Function HistoryFunction `json:"function"`
}

type HistoryFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (h HistoryMessage) toCore() core.Message {
	m := core.Message{Role: core.MessageRole(h.Role), Content: h.Content, ToolCallID: h.ToolCallID}
	for _, tc := range h.ToolCalls {
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		m.ToolCalls = append(m.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return m
}

// SmartAgentsRequest keeps message untyped so a non-string can be rejected
// with a field error instead of a decode error.
type SmartAgentsRequest struct {
	Message        any            `json:"message"`
	UserID         string         `json:"user_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

type SupremeRequest struct {
	Message        any    `json:"message"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type KnowledgeListResponse struct {
	Knowledge []KnowledgeRecord `json:"knowledge"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Service string `json:"service,omitempty"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}
