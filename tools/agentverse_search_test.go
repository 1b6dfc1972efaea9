package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-orchestra/cache"
)

func agentverseServer(t *testing.T, hits *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/search/agents", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if status != http.StatusOK {
			http.Error(w, "marketplace down", status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"agents": []map[string]any{
				{"address": "agent1q", "name": "Next.js Guru", "readme": "Builds Next.js apps", "status": "active", "total_interactions": 12},
				{"address": "agent2q", "name": "React Helper", "description": "React expert"},
			},
			"total":      2,
			"echo_query": body["search_text"],
			"echo_limit": body["limit"],
		})
	}))
}

func TestAgentverseSearch_Success(t *testing.T) {
	var hits atomic.Int32
	srv := agentverseServer(t, &hits, http.StatusOK)
	defer srv.Close()

	r := NewRegistry()
	r.MustRegister(NewAgentverseSearch(AgentverseConfig{APIKey: "test-key", BaseURL: srv.URL}))

	res := r.Execute(context.Background(), call("c1", AgentverseSearchName, `{"query":"Next.js experts","limit":5}`))
	require.False(t, res.IsError, string(res.Payload))

	var out AgentverseSearchResult
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	assert.Equal(t, "Next.js experts", out.Query)
	assert.Equal(t, 2, out.Total)
	require.Len(t, out.Agents, 2)
	assert.Equal(t, "Builds Next.js apps", out.Agents[0].Description)
	assert.Equal(t, "React expert", out.Agents[1].Description)
}

func TestAgentverseSearch_DefaultsLimitToFive(t *testing.T) {
	var gotLimit float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotLimit, _ = body["limit"].(float64)
		w.Write([]byte(`{"agents":[],"total":0}`))
	}))
	defer srv.Close()

	tool := NewAgentverseSearch(AgentverseConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"go"}`))
	require.NoError(t, err)
	assert.Equal(t, float64(5), gotLimit)
}

func TestAgentverseSearch_MissingAPIKey(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewAgentverseSearch(AgentverseConfig{}))

	res := r.Execute(context.Background(), call("c1", AgentverseSearchName, `{"query":"anything"}`))

	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"Agentverse API key not configured"}`, string(res.Payload))
}

func TestAgentverseSearch_UpstreamFailureBecomesPayload(t *testing.T) {
	var hits atomic.Int32
	srv := agentverseServer(t, &hits, http.StatusBadGateway)
	defer srv.Close()

	r := NewRegistry()
	r.MustRegister(NewAgentverseSearch(AgentverseConfig{APIKey: "test-key", BaseURL: srv.URL}))

	res := r.Execute(context.Background(), call("c1", AgentverseSearchName, `{"query":"x"}`))

	assert.True(t, res.IsError)
	msg := payloadOf(t, res)["error"].(string)
	assert.Contains(t, msg, "502")
	assert.Contains(t, msg, "marketplace down")
}

func TestAgentverseSearch_UsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := agentverseServer(t, &hits, http.StatusOK)
	defer srv.Close()

	tool := NewAgentverseSearch(AgentverseConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Cache:   cache.NewMemory(8, time.Minute),
	})

	first, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"Next.js experts"}`))
	require.NoError(t, err)
	second, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"  next.js EXPERTS "}`))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.(AgentverseSearchResult).Agents, second.(AgentverseSearchResult).Agents)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	out := truncate("  Übersetzungsagent für Dokumente  ", 2)

	assert.Equal(t, "Üb...", out)
	assert.True(t, utf8.ValidString(truncate("日本語のエージェント", 4)))
	assert.Equal(t, "日本語の...", truncate("日本語のエージェント", 4))
	assert.Equal(t, "short", truncate("short", 280))
}
