package router

import (
	"context"
	"strings"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/session"
)

const (
	AttemptToolChat = "tool_chat"
	ToolChatAgentID = "asi1_tool_calling"
)

type SessionRunner interface {
	Run(ctx context.Context, history []core.Message) (*session.Outcome, error)
}

// ToolChat answers general chat through a tool-calling session, replacing
// the backend's own chat answer.
type ToolChat struct {
	runner SessionRunner
}

func NewToolChat(runner SessionRunner) *ToolChat {
	return &ToolChat{runner: runner}
}

func (t *ToolChat) Name() string {
	return AttemptToolChat
}

func (t *ToolChat) Applies(backend *agents.Response) bool {
	return backend.Intent.IsChitChat()
}

func (t *ToolChat) Run(ctx context.Context, req Request, backend *agents.Response) (*agents.Response, error) {
	out, err := t.runner.Run(ctx, []core.Message{core.NewUserMessage(req.Message)})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil, core.ErrEmptyCompletion
	}

	if backend.Intent == "" {
		backend.Intent = core.IntentGeneralChat
	}
	backend.Response = out.Content
	backend.AgentID = ToolChatAgentID
	backend.Model = out.Model
	backend.ToolsUsed = out.ToolsUsed
	return backend, nil
}
