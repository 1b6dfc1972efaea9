package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hubenschmidt/go-orchestra/core"
)

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}

type ClientConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Model        core.ModelConfig
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      DefaultBaseURL,
		Timeout:      60 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
		Model:        core.DefaultModelConfig(core.DefaultModel),
	}
}

// CompletionError is a failed or undecodable call to the completion
// endpoint. Status and Body are the upstream's, kept for diagnostics.
type CompletionError struct {
	Status int
	Body   string
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return errors.Join(core.ErrLLMRequest, e.Err)
}

// Upstream converts the error into the service-agnostic taxonomy.
func (e *CompletionError) Upstream() *core.UpstreamError {
	return &core.UpstreamError{Service: "completion", Status: e.Status, Body: e.Body, Err: e.Err}
}

func (e *CompletionError) retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}
