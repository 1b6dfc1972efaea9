// Package agents talks to the Python multi-agent backends: the smart-agent
// server that classifies and answers messages, and the supreme orchestrator.
package agents

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

	"github.com/hubenschmidt/go-orchestra/core"
)

const maxBodyBytes = 4 << 20

type httpClient struct {
	service string
	baseURL string
	client  *http.Client
}

func newHTTPClient(service, baseURL string, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// do sends body (nil for GET) and decodes a 2xx JSON reply into out. Every
// failure is an *core.UpstreamError.
func (c httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return core.NotConfigured(c.service + " URL")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", core.ErrTimeout, err)
		}
		return &core.UpstreamError{Service: c.service, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &core.UpstreamError{Service: c.service, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.UpstreamError{Service: c.service, Status: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.UpstreamError{Service: c.service, Status: resp.StatusCode, Body: string(data), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
