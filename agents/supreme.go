package agents

import (
	"context"
	"net/http"
	"time"
)

const (
	DefaultSupremeURL = "http://localhost:8020"
	SupremeAgentID    = "supreme_orchestrator"
)

type SupremeRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// SupremeResponse is the orchestrator's reply. Absent counters decode as
// zero and an absent ai_synthesis_used as false.
type SupremeResponse struct {
	Response               string  `json:"response"`
	SessionID              string  `json:"session_id"`
	Intent                 string  `json:"intent"`
	Confidence             float64 `json:"confidence"`
	AgentConversationCount int     `json:"agent_conversations_count"`
	AgentResponsesCount    int     `json:"agent_responses_count"`
	DatabaseQueriesCount   int     `json:"database_queries_count"`
	AISynthesisUsed        bool    `json:"ai_synthesis_used"`
	Timestamp              string  `json:"timestamp"`
}

type SupremeClient struct {
	http httpClient
}

func NewSupremeClient(baseURL string, timeout time.Duration) *SupremeClient {
	return &SupremeClient{http: newHTTPClient("supreme-orchestrator", baseURL, timeout)}
}

func (c *SupremeClient) Query(ctx context.Context, req SupremeRequest) (*SupremeResponse, error) {
	var resp SupremeResponse
	if err := c.http.do(ctx, http.MethodPost, "/api/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
