// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/llm"
)

// Step is one scripted reply. Exactly one of Completion or Err is used.
type Step struct {
	Completion *llm.Completion
	Err        error
}

// Client replays Steps in order and records every request it receives.
type Client struct {
	mu       sync.Mutex
	model    string
	steps    []Step
	requests []llm.CompletionRequest
}

func New(steps ...Step) *Client {
	return &Client{model: core.DefaultModel, steps: steps}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.steps) == 0 {
		return nil, errors.New("llmtest: no scripted step left")
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Completion, nil
}

// Requests returns a copy of the requests seen so far.
func (c *Client) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.CompletionRequest(nil), c.requests...)
}

func Text(content string) Step {
	return Step{Completion: &llm.Completion{Kind: llm.KindText, Content: content, Model: core.DefaultModel}}
}

func Calls(calls ...core.ToolCall) Step {
	return Step{Completion: &llm.Completion{Kind: llm.KindToolCalls, ToolCalls: calls, Model: core.DefaultModel}}
}

func Fail(err error) Step {
	return Step{Err: err}
}

// Call builds a tool call with JSON-encoded args.
func Call(id, name string, args any) core.ToolCall {
	data, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return core.ToolCall{ID: id, Name: name, Arguments: data}
}
