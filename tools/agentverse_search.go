package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hubenschmidt/go-orchestra/core"
)

const (
	AgentverseSearchName     = "search_agentverse_agents"
	DefaultAgentverseBaseURL = "https://agentverse.ai"
	defaultSearchLimit       = 5
	maxSearchLimit           = 50
)

// ResultCache stores encoded search results. Implementations live in the
// cache package.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type AgentverseSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   ResultCache
}

type agentverseSearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type AgentSummary struct {
	Address      string   `json:"address"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status,omitempty"`
	Interactions int      `json:"total_interactions,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
}

type AgentverseSearchResult struct {
	Agents []AgentSummary `json:"agents"`
	Total  int            `json:"total"`
	Query  string         `json:"query"`
}

type AgentverseConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Cache   ResultCache
}

func NewAgentverseSearch(cfg AgentverseConfig) *AgentverseSearch {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAgentverseBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AgentverseSearch{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   cfg.Cache,
	}
}

func (a *AgentverseSearch) Name() string {
	return AgentverseSearchName
}

func (a *AgentverseSearch) Description() string {
	return "Searches the Agentverse marketplace for agents matching a free-text query"
}

func (a *AgentverseSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"minLength": 1,
				"description": "Free-text description of the agent or expertise to find"
			},
			"limit": {
				"type": "integer",
				"minimum": 1,
				"maximum": 50,
				"description": "Maximum number of agents to return (default: 5)"
			}
		},
		"required": ["query"]
	}`)
}

func (a *AgentverseSearch) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var params agentverseSearchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if a.apiKey == "" {
		return nil, core.NotConfigured("Agentverse API key")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	key := cacheKey(params.Query, limit)
	if a.cache != nil {
		if data, ok := a.cache.Get(ctx, key); ok {
			var cached AgentverseSearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	result, err := a.search(ctx, params.Query, limit)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			a.cache.Set(ctx, key, data)
		}
	}
	return result, nil
}

func (a *AgentverseSearch) search(ctx context.Context, query string, limit int) (AgentverseSearchResult, error) {
	body, err := json.Marshal(map[string]any{
		"search_text": query,
		"limit":       limit,
		"offset":      0,
		"sort":        "relevancy",
		"direction":   "asc",
	})
	if err != nil {
		return AgentverseSearchResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/search/agents", bytes.NewReader(body))
	if err != nil {
		return AgentverseSearchResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return AgentverseSearchResult{}, &core.UpstreamError{Service: "agentverse", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return AgentverseSearchResult{}, &core.UpstreamError{Service: "agentverse", Status: resp.StatusCode, Body: string(respBody)}
	}

	var decoded agentverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return AgentverseSearchResult{}, &core.UpstreamError{Service: "agentverse", Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	result := AgentverseSearchResult{
		Agents: make([]AgentSummary, 0, len(decoded.Agents)),
		Total:  decoded.Total,
		Query:  query,
	}
	for _, ag := range decoded.Agents {
		desc := ag.Description
		if desc == "" {
			desc = truncate(ag.Readme, 280)
		}
		result.Agents = append(result.Agents, AgentSummary{
			Address:      ag.Address,
			Name:         ag.Name,
			Description:  desc,
			Status:       ag.Status,
			Interactions: ag.TotalInteractions,
			Rating:       ag.Rating,
		})
		if len(result.Agents) == limit {
			break
		}
	}
	if result.Total == 0 {
		result.Total = max(decoded.NumHits, len(result.Agents))
	}
	return result, nil
}

type agentverseResponse struct {
	Agents []struct {
		Address           string   `json:"address"`
		Name              string   `json:"name"`
		Description       string   `json:"description"`
		Readme            string   `json:"readme"`
		Status            string   `json:"status"`
		TotalInteractions int      `json:"total_interactions"`
		Rating            *float64 `json:"rating"`
	} `json:"agents"`
	Total   int `json:"total"`
	NumHits int `json:"num_hits"`
}

func cacheKey(query string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), limit)))
	return "agentverse:search:" + hex.EncodeToString(sum[:16])
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
