package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-orchestra/core"
)

const backendReply = `{
	"response": "Repository looks healthy",
	"intent": "repo_analysis",
	"intent_confidence": 0.92,
	"agent_id": "repo_analyzer",
	"conversation_id": "new_conversation",
	"metadata": {"skills_detected": ["go", "", 7, "postgres"]},
	"timestamp": "2025-01-01T00:00:00Z",
	"processing_time": 1.5
}`

func TestSmartAgents_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/smart-agents", r.URL.Path)

		var req QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "analyze golang/go", req.Message)
		assert.Equal(t, "u1", req.UserID)
		w.Write([]byte(backendReply))
	}))
	defer srv.Close()

	resp, err := NewSmartAgentsClient(srv.URL, time.Second).Query(context.Background(), QueryRequest{
		Message: "analyze golang/go",
		UserID:  "u1",
	})

	require.NoError(t, err)
	assert.Equal(t, core.IntentRepoAnalysis, resp.Intent)
	assert.InDelta(t, 0.92, resp.IntentConfidence, 1e-9)
	assert.Equal(t, "repo_analyzer", resp.AgentID)
	assert.Equal(t, []string{"go", "postgres"}, resp.SkillsDetected())
	assert.JSONEq(t, `1.5`, string(resp.Extra["processing_time"]))
}

func TestResponse_RoundTripKeepsUnknownFields(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(backendReply), &resp))

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, backendReply, string(out))
}

func TestResponse_CloneIsIndependent(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(backendReply), &resp))

	clone := resp.Clone()
	clone.Metadata["extra"] = true
	clone.Response = "changed"

	assert.NotContains(t, resp.Metadata, "extra")
	assert.Equal(t, "Repository looks healthy", resp.Response)
}

func TestSmartAgents_MissingIntentIsLeftEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	resp, err := NewSmartAgentsClient(srv.URL, time.Second).Query(context.Background(), QueryRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Empty(t, resp.Intent)
	assert.True(t, resp.Intent.IsChitChat())
}

func TestSmartAgents_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agents offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSmartAgentsClient(srv.URL, time.Second).Query(context.Background(), QueryRequest{Message: "hi"})

	var upstream *core.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "smart-agents", upstream.Service)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.Status)
	assert.Contains(t, upstream.Body, "agents offline")
}

func TestSmartAgents_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewSmartAgentsClient(url, time.Second).Query(context.Background(), QueryRequest{Message: "hi"})

	var upstream *core.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Zero(t, upstream.Status)
}

func TestSmartAgents_NotConfigured(t *testing.T) {
	_, err := NewSmartAgentsClient("", time.Second).Query(context.Background(), QueryRequest{Message: "hi"})
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestSmartAgents_Capabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"agents":{"repo_analyzer":{"status":"active"},"skill_matcher":{"status":"active"}},"status":"ok"}`))
	}))
	defer srv.Close()

	caps, err := NewSmartAgentsClient(srv.URL, time.Second).Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, caps.Count)
	assert.Equal(t, "ok", caps.Status)
}

func TestSupreme_QueryNormalizesMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		var req SupremeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserID)
		w.Write([]byte(`{"response":"synthesized","session_id":"s1","agent_responses_count":3}`))
	}))
	defer srv.Close()

	resp, err := NewSupremeClient(srv.URL, time.Second).Query(context.Background(), SupremeRequest{Message: "plan", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "synthesized", resp.Response)
	assert.Equal(t, 3, resp.AgentResponsesCount)
	assert.Zero(t, resp.AgentConversationCount)
	assert.Zero(t, resp.DatabaseQueriesCount)
	assert.False(t, resp.AISynthesisUsed)
}
