package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hubenschmidt/go-orchestra/core"
)

// DefaultBaseURL is the ASI:One endpoint, which speaks the OpenAI chat
// completions dialect.
const DefaultBaseURL = "https://api.asi1.ai/v1"

type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        core.ModelConfig
	maxRetries   int
	retryBackoff time.Duration
	client       *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	cfg := DefaultClientConfig()
	cfg.APIKey = apiKey
	return NewOpenAIClientWithConfig(cfg)
}

func NewOpenAIClientWithConfig(cfg ClientConfig) *OpenAIClient {
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.Model.Name == "" {
		cfg.Model = defaults.Model
	}
	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAIClient) Model() string {
	return c.model.Name
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if c.apiKey == "" {
		return nil, core.NotConfigured("ASI1 API key")
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result *Completion
	backoff := retry.WithMaxRetries(uint64(max(c.maxRetries, 0)), retry.NewExponential(c.retryBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.do(ctx, body)
		var ce *CompletionError
		if errors.As(callErr, &ce) && ce.retryable() {
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *OpenAIClient) do(ctx context.Context, body []byte) (*Completion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CompletionError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &CompletionError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CompletionError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &CompletionError{Status: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return nil, &CompletionError{Status: resp.StatusCode, Body: string(respBody), Err: core.ErrEmptyCompletion}
	}

	return c.parseResponse(result), nil
}

func (c *OpenAIClient) buildRequest(req CompletionRequest) map[string]any {
	reqBody := map[string]any{
		"model":       c.model.Name,
		"messages":    c.buildMessages(req.System, req.Messages),
		"temperature": c.model.Temperature,
		"stream":      false,
	}
	if c.model.MaxTokens > 0 {
		reqBody["max_tokens"] = c.model.MaxTokens
	}

	if len(req.Tools) > 0 {
		reqBody["tools"] = c.buildTools(req.Tools)
		choice := req.ToolChoice
		if choice == "" {
			choice = ToolChoiceAuto
		}
		reqBody["tool_choice"] = string(choice)
	}
	return reqBody
}

func (c *OpenAIClient) buildMessages(system string, msgs []core.Message) []map[string]any {
	if system != "" {
		msgs = append([]core.Message{core.NewSystemMessage(system)}, msgs...)
	}

	messages := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		msg := map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		if len(m.ToolCalls) > 0 {
			msg["tool_calls"] = c.buildToolCalls(m.ToolCalls)
		}
		messages = append(messages, msg)
	}

	return messages
}

func (c *OpenAIClient) buildToolCalls(calls []core.ToolCall) []map[string]any {
	result := make([]map[string]any, len(calls))
	for i, tc := range calls {
		result[i] = map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": string(tc.Arguments),
			},
		}
	}
	return result
}

func (c *OpenAIClient) buildTools(tools []core.ToolSchema) []map[string]any {
	result := make([]map[string]any, len(tools))
	for i, t := range tools {
		result[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  json.RawMessage(t.Parameters),
			},
		}
	}
	return result
}

func (c *OpenAIClient) parseResponse(resp openAIResponse) *Completion {
	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = c.model.Name
	}

	result := &Completion{
		Kind:         KindText,
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	taken := make(map[string]bool, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		taken[tc.ID] = true
	}
	for i, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = unusedCallID(taken, i)
		}
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		result.ToolCalls = append(result.ToolCalls, core.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	if len(result.ToolCalls) > 0 {
		result.Kind = KindToolCalls
	}

	return result
}

type openAIResponse struct {
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// unusedCallID names an id-less call after its position, skipping ids the
// model already used.
func unusedCallID(taken map[string]bool, n int) string {
	id := fmt.Sprintf("call_%d", n)
	for taken[id] {
		n++
		id = fmt.Sprintf("call_%d", n)
	}
	taken[id] = true
	return id
}
