package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/llm"
	"github.com/hubenschmidt/go-orchestra/llm/llmtest"
	"github.com/hubenschmidt/go-orchestra/router"
	"github.com/hubenschmidt/go-orchestra/server/store"
	"github.com/hubenschmidt/go-orchestra/session"
	"github.com/hubenschmidt/go-orchestra/tools"
)

type harness struct {
	gw      *Gateway
	store   store.ConversationStore
	client  *llmtest.Client
	backend *httptest.Server
	lastReq agents.QueryRequest
}

func newHarness(t *testing.T, backendReply string, steps ...llmtest.Step) *harness {
	t.Helper()
	h := &harness{client: llmtest.New(steps...)}

	h.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&h.lastReq))
		w.Write([]byte(backendReply))
	}))
	t.Cleanup(h.backend.Close)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "orchestra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	h.store = s

	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewAgentverseSearch(tools.AgentverseConfig{}))
	registry.MustRegister(tools.NewRepositoryContext(nil))
	sess := session.New(h.client, registry)

	h.gw = New(Config{
		Router:   router.New(agents.NewSmartAgentsClient(h.backend.URL, time.Second), []router.Attempt{router.NewToolChat(sess)}),
		Chat:     sess,
		Recorder: store.NewRecorder(s, time.Second, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	return h
}

const chatReply = `{"response":"backend says hi","intent":"general_chat","intent_confidence":0.5,
	"agent_id":"general","conversation_id":"new_conversation","metadata":{},"timestamp":"2025-01-01T00:00:00Z"}`

const skillReply = `{"response":"You match 3 issues","intent":"skill_matching","intent_confidence":0.87,
	"agent_id":"skill_matcher","conversation_id":"conv-9","metadata":{"skills_detected":["go","react"]},"timestamp":"2025-01-01T00:00:00Z"}`

func TestSmart_GeneralChatUsesToolsAndPersists(t *testing.T) {
	h := newHarness(t, chatReply,
		llmtest.Calls(llmtest.Call("call_1", tools.AgentverseSearchName, map[string]any{"query": "Next.js experts", "limit": 5})),
		llmtest.Text("Search is not configured, but here is what I know."),
	)

	resp, err := h.gw.Smart(context.Background(), SmartRequest{Message: "search Next.js experts", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "Search is not configured, but here is what I know.", resp.Response)
	assert.Equal(t, []string{tools.AgentverseSearchName}, resp.ToolsUsed)
	assert.Equal(t, core.DefaultModel, resp.Model)
	assert.NotEqual(t, agents.NewConversationID, resp.ConversationID)
	assert.Equal(t, resp.ConversationID, h.lastReq.ConversationID)

	conv, err := h.store.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "search Next.js experts", conv.Messages[0].Content)
	assert.Equal(t, resp.Response, conv.Messages[1].Content)

	knowledge, err := h.store.ListKnowledge(context.Background(), router.ToolChatAgentID)
	require.NoError(t, err)
	assert.Empty(t, knowledge)
}

func TestSmart_DomainIntentRecordsKnowledge(t *testing.T) {
	h := newHarness(t, skillReply)

	resp, err := h.gw.Smart(context.Background(), SmartRequest{Message: "match my skills", UserID: "u1", ConversationID: "conv-9"})

	require.NoError(t, err)
	assert.Equal(t, "You match 3 issues", resp.Response)
	assert.Empty(t, h.client.Requests())

	records, err := h.store.ListKnowledge(context.Background(), "skill_matcher")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "skill_matching", records[0].Topic)
	assert.Equal(t, []string{"skill_matching", "skill_matcher", "go", "react"}, records[0].Tags)
	assert.InDelta(t, 0.87, records[0].Confidence, 1e-9)
}

func TestSmart_ToolFailureFallsBackToBackend(t *testing.T) {
	h := newHarness(t, chatReply, llmtest.Fail(&llm.CompletionError{Status: 500, Body: "down"}))

	resp, err := h.gw.Smart(context.Background(), SmartRequest{Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "backend says hi", resp.Response)
	assert.Equal(t, "general", resp.AgentID)
	assert.Empty(t, resp.ToolsUsed)
}

func TestSmart_EmptyAnswerIsDegraded(t *testing.T) {
	h := newHarness(t, `{"response":"","intent":"repo_analysis","agent_id":"repo_analyzer"}`)

	resp, err := h.gw.Smart(context.Background(), SmartRequest{Message: "analyze"})

	require.NoError(t, err)
	assert.Equal(t, DegradedMessage, resp.Response)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestSmart_RequiresMessage(t *testing.T) {
	h := newHarness(t, chatReply)

	_, err := h.gw.Smart(context.Background(), SmartRequest{Message: "  "})

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "message", verr.Field)
}

func TestSmart_PersistenceFailureDoesNotAffectAnswer(t *testing.T) {
	h := newHarness(t, skillReply)
	require.NoError(t, h.store.Close())

	resp, err := h.gw.Smart(context.Background(), SmartRequest{Message: "match my skills"})

	require.NoError(t, err)
	assert.Equal(t, "You match 3 issues", resp.Response)
}

func TestChat_Validation(t *testing.T) {
	h := newHarness(t, chatReply)
	cases := map[string][]core.Message{
		"empty":         nil,
		"last not user": {core.NewUserMessage("hi"), core.NewAssistantMessage("hello")},
		"unknown role":  {{Role: "robot", Content: "beep"}, core.NewUserMessage("hi")},
	}
	for name, msgs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.gw.Chat(context.Background(), msgs)
			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestChat_RejectsToolResultsWithoutMatchingCall(t *testing.T) {
	h := newHarness(t, chatReply, llmtest.Text("unreachable"))
	lookup := llmtest.Call("call_1", tools.RepositoryContextName, map[string]any{"repository": "golang/go"})
	cases := map[string][]core.Message{
		"no calls before tool": {
			core.NewAssistantMessage("no calls here"),
			core.NewToolMessage("call_ghost", `{}`),
			core.NewUserMessage("and now?"),
		},
		"foreign id": {
			core.NewToolCallMessage("", []core.ToolCall{lookup}),
			core.NewToolMessage("call_2", `{}`),
			core.NewUserMessage("and now?"),
		},
		"answered twice": {
			core.NewToolCallMessage("", []core.ToolCall{lookup}),
			core.NewToolMessage("call_1", `{}`),
			core.NewToolMessage("call_1", `{}`),
			core.NewUserMessage("and now?"),
		},
		"unanswered call": {
			core.NewToolCallMessage("", []core.ToolCall{lookup}),
			core.NewUserMessage("and now?"),
		},
		"duplicate call ids": {
			core.NewToolCallMessage("", []core.ToolCall{lookup, lookup}),
			core.NewToolMessage("call_1", `{}`),
			core.NewUserMessage("and now?"),
		},
	}
	for name, msgs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.gw.Chat(context.Background(), msgs)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "messages", verr.Field)
		})
	}
	assert.Empty(t, h.client.Requests())
}

func TestChat_AcceptsPairedToolTranscript(t *testing.T) {
	h := newHarness(t, chatReply, llmtest.Text("golang/go is the Go repository"))
	lookup := llmtest.Call("call_1", tools.RepositoryContextName, map[string]any{"repository": "golang/go"})

	resp, err := h.gw.Chat(context.Background(), []core.Message{
		core.NewUserMessage("look up golang/go"),
		core.NewToolCallMessage("", []core.ToolCall{lookup}),
		core.NewToolMessage("call_1", `{"repository":"golang/go"}`),
		core.NewAssistantMessage("It is the Go repository."),
		core.NewUserMessage("summarize again"),
	})

	require.NoError(t, err)
	assert.Equal(t, "golang/go is the Go repository", resp.Message)
	require.Len(t, h.client.Requests(), 1)
	assert.Len(t, h.client.Requests()[0].Messages, 5)
}

func TestChat_ReturnsModelAnswer(t *testing.T) {
	h := newHarness(t, chatReply, llmtest.Text("Hello there"))

	resp, err := h.gw.Chat(context.Background(), []core.Message{core.NewUserMessage("Hello")})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Message)
	assert.Equal(t, "asi1-mini", resp.Model)
	assert.Empty(t, resp.ToolsUsed)
}

func TestChat_CompletionFailureIsReturned(t *testing.T) {
	h := newHarness(t, chatReply, llmtest.Fail(&llm.CompletionError{Status: 401, Body: "bad key"}))

	_, err := h.gw.Chat(context.Background(), []core.Message{core.NewUserMessage("Hello")})

	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 401, ce.Status)
}

type fakeSupreme struct {
	resp *agents.SupremeResponse
	err  error
}

func (f fakeSupreme) Query(context.Context, agents.SupremeRequest) (*agents.SupremeResponse, error) {
	return f.resp, f.err
}

func TestSupreme_NormalizesAndPersists(t *testing.T) {
	h := newHarness(t, chatReply)
	h.gw.supreme = fakeSupreme{resp: &agents.SupremeResponse{Response: "synthesized plan", SessionID: "s-1", AgentResponsesCount: 2}}

	resp, err := h.gw.Supreme(context.Background(), SupremeRequest{Message: "plan my sprint", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "synthesized plan", resp.Response)
	assert.Equal(t, "s-1", resp.ConversationID)
	assert.Equal(t, 2, resp.AgentResponsesCount)
	assert.Zero(t, resp.DatabaseQueriesCount)
	assert.False(t, resp.AISynthesisUsed)
	assert.Equal(t, agents.SupremeAgentID, resp.AgentID)
	assert.Equal(t, "general_chat", resp.Intent)

	conv, err := h.store.GetConversation(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, agents.SupremeAgentID, conv.Messages[1].AgentID)
}

func TestSupreme_UpstreamFailure(t *testing.T) {
	h := newHarness(t, chatReply)
	h.gw.supreme = fakeSupreme{err: &core.UpstreamError{Service: "supreme-orchestrator", Status: 503}}

	_, err := h.gw.Supreme(context.Background(), SupremeRequest{Message: "plan"})

	var upstream *core.UpstreamError
	assert.True(t, errors.As(err, &upstream))
}
