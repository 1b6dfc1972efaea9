package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hubenschmidt/go-orchestra/core"
)

const (
	DefaultSmartAgentsURL = "http://localhost:5001"
	smartAgentsPath       = "/api/smart-agents"

	// NewConversationID is the backend's placeholder for "no conversation yet".
	NewConversationID = "new_conversation"
)

type QueryRequest struct {
	Message        string         `json:"message"`
	UserID         string         `json:"user_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// Response is the smart-agent backend's answer. Fields the backend sends
// that are not modeled here are kept in Extra and written back out, so a
// Response round-trips without losing data.
type Response struct {
	Response         string         `json:"response"`
	Intent           core.Intent    `json:"intent"`
	IntentConfidence float64        `json:"intent_confidence"`
	AgentID          string         `json:"agent_id"`
	ConversationID   string         `json:"conversation_id"`
	Metadata         map[string]any `json:"metadata"`
	Timestamp        string         `json:"timestamp"`
	Model            string         `json:"model,omitempty"`
	ToolsUsed        []string       `json:"tools_used,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type responseFields Response

var knownResponseKeys = map[string]bool{
	"response": true, "intent": true, "intent_confidence": true, "agent_id": true,
	"conversation_id": true, "metadata": true, "timestamp": true, "model": true, "tools_used": true,
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var fields responseFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if knownResponseKeys[k] {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]json.RawMessage)
		}
		fields.Extra[k] = v
	}
	*r = Response(fields)
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(responseFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a copy whose maps and slices can be changed independently.
func (r *Response) Clone() *Response {
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	if r.ToolsUsed != nil {
		out.ToolsUsed = append(make([]string, 0, len(r.ToolsUsed)), r.ToolsUsed...)
	}
	return &out
}

// SkillsDetected returns metadata.skills_detected when it is a list of strings.
func (r *Response) SkillsDetected() []string {
	raw, ok := r.Metadata["skills_detected"].([]any)
	if !ok {
		return nil
	}
	skills := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

type Capabilities struct {
	Agents map[string]any `json:"agents"`
	Count  int            `json:"count"`
	Status string         `json:"status"`
}

type SmartAgentsClient struct {
	http httpClient
}

func NewSmartAgentsClient(baseURL string, timeout time.Duration) *SmartAgentsClient {
	return &SmartAgentsClient{http: newHTTPClient("smart-agents", baseURL, timeout)}
}

// Query classifies and answers one message.
func (c *SmartAgentsClient) Query(ctx context.Context, req QueryRequest) (*Response, error) {
	var resp Response
	if err := c.http.do(ctx, http.MethodPost, smartAgentsPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SmartAgentsClient) Capabilities(ctx context.Context) (*Capabilities, error) {
	var caps Capabilities
	if err := c.http.do(ctx, http.MethodGet, smartAgentsPath, nil, &caps); err != nil {
		return nil, err
	}
	if caps.Agents == nil {
		caps.Agents = map[string]any{}
	}
	if caps.Count == 0 {
		caps.Count = len(caps.Agents)
	}
	return &caps, nil
}
