package store

import (
	"context"
	"errors"

	"github.com/hubenschmidt/go-orchestra/core"
)

// ErrNotFound is returned when an entity is not found
var ErrNotFound = core.ErrNotFound

// ErrOwnership is returned when a turn is appended to another user's conversation
var ErrOwnership = errors.New("conversation belongs to another user")

// Turn is one user message and the answer it received
type Turn struct {
	ConversationID   string
	UserID           string
	UserMessage      string
	AssistantMessage string
	Intent           core.Intent
	AgentID          string
}

// Message is a persisted transcript entry. Seq is 1-based and gap-free
// within a conversation.
type Message struct {
	Seq       int              `json:"seq"`
	Role      core.MessageRole `json:"role"`
	Content   string           `json:"content"`
	Intent    core.Intent      `json:"intent,omitempty"`
	AgentID   string           `json:"agent_id,omitempty"`
	CreatedAt int64            `json:"created_at"`
}

// Conversation is a user's transcript. List results omit Messages.
type Conversation struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Intent    core.Intent `json:"intent"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
	Messages  []Message   `json:"messages,omitempty"`
}

// KnowledgeRecord is a fact extracted from a non-chit-chat turn
type KnowledgeRecord struct {
	ID         string   `json:"id"`
	AgentID    string   `json:"agent_id"`
	Topic      string   `json:"topic"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
	CreatedAt  int64    `json:"created_at"`
}

// ConversationStore persists conversations append-only, plus knowledge records
type ConversationStore interface {
	AppendTurn(ctx context.Context, t Turn) error
	RecordKnowledge(ctx context.Context, k KnowledgeRecord) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListKnowledge(ctx context.Context, agentID string) ([]KnowledgeRecord, error)
	Close() error
}
