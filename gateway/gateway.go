// Package gateway composes routing, tool sessions and persistence into the
// request/response contract served over HTTP.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/router"
	"github.com/hubenschmidt/go-orchestra/server/store"
	"github.com/hubenschmidt/go-orchestra/session"
)

const (
	DegradedMessage = "Agents are processing your request..."
	AnonymousUser   = "anonymous"
)

type Router interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

type Chatter interface {
	Run(ctx context.Context, history []core.Message) (*session.Outcome, error)
}

type Supreme interface {
	Query(ctx context.Context, req agents.SupremeRequest) (*agents.SupremeResponse, error)
}

type Gateway struct {
	router         Router
	chat           Chatter
	supreme        Supreme
	recorder       *store.Recorder
	supremeTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

type Config struct {
	Router   Router
	Chat     Chatter
	Supreme  Supreme
	Recorder *store.Recorder
	// SupremeTimeout bounds the supreme orchestrator call. Zero means none.
	SupremeTimeout time.Duration
	Logger         zerolog.Logger
}

func New(cfg Config) *Gateway {
	return &Gateway{
		router:         cfg.Router,
		chat:           cfg.Chat,
		supreme:        cfg.Supreme,
		recorder:       cfg.Recorder,
		supremeTimeout: cfg.SupremeTimeout,
		logger:         logging.Component(cfg.Logger, "gateway"),
		now:            time.Now,
	}
}

type SmartRequest struct {
	Message        string
	UserID         string
	ConversationID string
	Context        map[string]any
}

// Smart classifies the message, lets the router pick the answer and
// persists the turn. Persistence never affects the returned response.
func (g *Gateway) Smart(ctx context.Context, req SmartRequest) (*agents.Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, core.NewValidationError("message", "Message is required")
	}
	userID := orDefault(req.UserID, AnonymousUser)
	convID := req.ConversationID
	if convID == "" || convID == agents.NewConversationID {
		convID = uuid.NewString()
	}

	res, err := g.router.Route(ctx, router.Request{
		Message:        req.Message,
		UserID:         userID,
		ConversationID: convID,
		Context:        req.Context,
	})
	if err != nil {
		return nil, err
	}

	resp := res.Response
	if resp.ConversationID == "" || resp.ConversationID == agents.NewConversationID {
		resp.ConversationID = convID
	}
	if resp.Timestamp == "" {
		resp.Timestamp = g.now().UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(resp.Response) == "" {
		resp.Response = DegradedMessage
	}

	g.logger.Info().
		Str("conversation_id", resp.ConversationID).
		Str("intent", resp.Intent.String()).
		Str("attempt", res.Attempt).
		Bool("fallback", res.Fallback).
		Strs("tools_used", resp.ToolsUsed).
		Msg("routed message")

	g.recorder.AppendTurn(ctx, store.Turn{
		ConversationID:   resp.ConversationID,
		UserID:           userID,
		UserMessage:      req.Message,
		AssistantMessage: resp.Response,
		Intent:           resp.Intent,
		AgentID:          resp.AgentID,
	})
	if !resp.Intent.IsChitChat() {
		g.recorder.RecordKnowledge(ctx, knowledgeFor(resp))
	}
	return resp, nil
}

func knowledgeFor(resp *agents.Response) store.KnowledgeRecord {
	tags := []string{resp.Intent.String()}
	if resp.AgentID != "" {
		tags = append(tags, resp.AgentID)
	}
	tags = append(tags, resp.SkillsDetected()...)
	return store.KnowledgeRecord{
		AgentID:    resp.AgentID,
		Topic:      resp.Intent.String(),
		Content:    resp.Response,
		Tags:       dedupe(tags),
		Confidence: resp.IntentConfidence,
	}
}

type ChatResponse struct {
	Message   string   `json:"message"`
	Model     string   `json:"model"`
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// Chat runs a tool-calling session over a client-held transcript.
func (g *Gateway) Chat(ctx context.Context, messages []core.Message) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, core.NewValidationError("messages", "Messages array is required")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, core.NewValidationError("messages", fmt.Sprintf("invalid role %q at index %d", m.Role, i))
		}
	}
	if messages[len(messages)-1].Role != core.RoleUser {
		return nil, core.NewValidationError("messages", "Last message must be from user")
	}
	if err := core.CheckToolPairing(messages); err != nil {
		return nil, err
	}

	out, err := g.chat.Run(ctx, messages)
	if err != nil {
		g.logger.Error().Err(err).Msg("chat session failed")
		return nil, err
	}

	content := out.Content
	if strings.TrimSpace(content) == "" {
		content = DegradedMessage
	}
	return &ChatResponse{Message: content, Model: out.Model, ToolsUsed: out.ToolsUsed}, nil
}

type SupremeRequest struct {
	Message        string
	UserID         string
	ConversationID string
}

// SupremeResponse is the orchestrator reply with every counter present.
type SupremeResponse struct {
	Response               string  `json:"response"`
	ConversationID         string  `json:"conversation_id"`
	Intent                 string  `json:"intent"`
	Confidence             float64 `json:"confidence"`
	AgentConversationCount int     `json:"agent_conversations_count"`
	AgentResponsesCount    int     `json:"agent_responses_count"`
	DatabaseQueriesCount   int     `json:"database_queries_count"`
	AISynthesisUsed        bool    `json:"ai_synthesis_used"`
	AgentID                string  `json:"agent_id"`
	Timestamp              string  `json:"timestamp"`
}

func (g *Gateway) Supreme(ctx context.Context, req SupremeRequest) (*SupremeResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, core.NewValidationError("message", "Message is required")
	}
	userID := orDefault(req.UserID, AnonymousUser)

	callCtx := ctx
	if g.supremeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.supremeTimeout)
		defer cancel()
	}
	raw, err := g.supreme.Query(callCtx, agents.SupremeRequest{Message: req.Message, UserID: userID})
	if err != nil {
		g.logger.Error().Err(err).Msg("supreme orchestrator failed")
		return nil, err
	}

	convID := req.ConversationID
	if convID == "" || convID == agents.NewConversationID {
		convID = orDefault(raw.SessionID, uuid.NewString())
	}
	resp := &SupremeResponse{
		Response:               orDefault(strings.TrimSpace(raw.Response), DegradedMessage),
		ConversationID:         convID,
		Intent:                 orDefault(raw.Intent, core.IntentGeneralChat.String()),
		Confidence:             raw.Confidence,
		AgentConversationCount: raw.AgentConversationCount,
		AgentResponsesCount:    raw.AgentResponsesCount,
		DatabaseQueriesCount:   raw.DatabaseQueriesCount,
		AISynthesisUsed:        raw.AISynthesisUsed,
		AgentID:                agents.SupremeAgentID,
		Timestamp:              orDefault(raw.Timestamp, g.now().UTC().Format(time.RFC3339)),
	}

	g.recorder.AppendTurn(ctx, store.Turn{
		ConversationID:   convID,
		UserID:           userID,
		UserMessage:      req.Message,
		AssistantMessage: resp.Response,
		Intent:           core.Intent(resp.Intent),
		AgentID:          agents.SupremeAgentID,
	})
	return resp, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
