// Package session drives one user turn through at most two completion rounds:
// the first may request tools, the second must answer in text.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/llm"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/monitor"
	"github.com/hubenschmidt/go-orchestra/tools"
)

const DefaultSystemPrompt = "You are a helpful assistant for a developer marketplace. " +
	"Use the available tools to find agents on Agentverse or to describe a GitHub repository when the user asks for it. " +
	"Summarize tool results in plain prose."

// Executor runs a batch of tool calls and returns one result per call.
type Executor interface {
	Schemas() []core.ToolSchema
	ExecuteAll(ctx context.Context, calls []core.ToolCall) []core.ToolResult
}

var _ Executor = (*tools.Registry)(nil)

type State string

const (
	StateStart              State = "start"
	StateAwaitingCompletion State = "awaiting_completion"
	StateExecutingTools     State = "executing_tools"
	StateAwaitingFollowup   State = "awaiting_followup"
	StateDone               State = "done"
)

// Outcome is the final answer of a turn.
type Outcome struct {
	Content   string              `json:"content"`
	ToolsUsed []string            `json:"tools_used"`
	Model     string              `json:"model"`
	Metrics   monitor.TurnMetrics `json:"metrics"`
}

// Error reports the state a failed turn stopped in.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session failed in %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Session struct {
	client            llm.Client
	executor          Executor
	system            string
	completionTimeout time.Duration
	logger            zerolog.Logger
}

type Option func(*Session)

func WithSystemPrompt(prompt string) Option {
	return func(s *Session) { s.system = prompt }
}

// WithCompletionTimeout bounds each completion round separately.
func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Session) { s.completionTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = logging.Component(l, "session") }
}

func New(client llm.Client, executor Executor, opts ...Option) *Session {
	s := &Session{
		client:   client,
		executor: executor,
		system:   DefaultSystemPrompt,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run answers the last message of history. History is not modified.
func (s *Session) Run(ctx context.Context, history []core.Message) (*Outcome, error) {
	start := time.Now()
	if len(history) == 0 {
		return nil, &Error{State: StateStart, Err: core.NewValidationError("messages", "at least one message is required")}
	}

	messages := make([]core.Message, 0, len(history)+4)
	messages = append(messages, history...)

	first, err := s.complete(ctx, 1, llm.CompletionRequest{
		System:     s.system,
		Messages:   messages,
		Tools:      s.executor.Schemas(),
		ToolChoice: llm.ToolChoiceAuto,
	})
	if err != nil {
		return nil, &Error{State: StateAwaitingCompletion, Err: err}
	}

	if !first.HasToolCalls() {
		return &Outcome{
			Content:   first.Content,
			ToolsUsed: []string{},
			Model:     first.Model,
			Metrics:   monitor.TurnMetrics{Rounds: 1, Duration: time.Since(start)},
		}, nil
	}

	calls := first.ToolCalls
	s.logger.Debug().Int("calls", len(calls)).Strs("tools", toolNames(calls)).Msg("model requested tools")

	if err := checkCallIDs(calls); err != nil {
		return nil, &Error{State: StateExecutingTools, Err: err}
	}
	results := s.executor.ExecuteAll(ctx, calls)
	toolMessages, err := pairResults(calls, results)
	if err != nil {
		return nil, &Error{State: StateExecutingTools, Err: err}
	}

	messages = append(messages, core.NewToolCallMessage(first.Content, calls))
	messages = append(messages, toolMessages...)

	// Tools are withheld on the follow-up, which caps the turn at two rounds.
	second, err := s.complete(ctx, 2, llm.CompletionRequest{
		System:   s.system,
		Messages: messages,
	})
	if err != nil {
		return nil, &Error{State: StateAwaitingFollowup, Err: err}
	}
	if second.HasToolCalls() && second.Content == "" {
		return nil, &Error{State: StateAwaitingFollowup, Err: core.ErrRoundLimit}
	}

	out := &Outcome{
		Content:   second.Content,
		ToolsUsed: toolNames(calls),
		Model:     second.Model,
		Metrics: monitor.TurnMetrics{
			Rounds:    2,
			ToolCalls: len(calls),
			Duration:  time.Since(start),
		},
	}
	s.logger.Debug().
		Int("tool_calls", out.Metrics.ToolCalls).
		Int64("elapsed_ms", out.Metrics.ElapsedMs()).
		Msg("turn complete")
	return out, nil
}

func (s *Session) complete(ctx context.Context, round int, req llm.CompletionRequest) (*llm.Completion, error) {
	if s.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.completionTimeout)
		defer cancel()
	}

	resp, err := s.client.Complete(ctx, req)
	monitor.CompletionRounds.WithLabelValues(strconv.Itoa(round), monitor.Outcome(err)).Inc()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("completion round %d: %w", round, core.ErrTimeout)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int("round", round).Msg("completion failed")
		return nil, err
	}
	return resp, nil
}

// pairResults builds one tool message per call, matched by id. Results for
// ids that were never requested, or requested ids with no result, are a
// protocol violation.
func pairResults(calls []core.ToolCall, results []core.ToolResult) ([]core.Message, error) {
	byID := make(map[string]core.ToolResult, len(results))
	for _, res := range results {
		if _, dup := byID[res.ToolCallID]; dup {
			return nil, fmt.Errorf("%w: more than one result for tool call %s", core.ErrProtocol, res.ToolCallID)
		}
		byID[res.ToolCallID] = res
	}

	requested := make(map[string]bool, len(calls))
	msgs := make([]core.Message, 0, len(calls))
	for _, call := range calls {
		requested[call.ID] = true
		res, ok := byID[call.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no result for tool call %s", core.ErrProtocol, call.ID)
		}
		msgs = append(msgs, res.Message())
	}
	for id := range byID {
		if !requested[id] {
			return nil, fmt.Errorf("%w: result for unknown tool call %s", core.ErrProtocol, id)
		}
	}
	return msgs, nil
}

// toolNames lists distinct tool names in first-requested order.
func toolNames(calls []core.ToolCall) []string {
	seen := make(map[string]bool, len(calls))
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	return names
}

// checkCallIDs rejects calls that cannot be paired with a single result.
func checkCallIDs(calls []core.ToolCall) error {
	seen := make(map[string]bool, len(calls))
	for _, call := range calls {
		if call.ID == "" {
			return fmt.Errorf("%w: tool call %s has no id", core.ErrProtocol, call.Name)
		}
		if seen[call.ID] {
			return fmt.Errorf("%w: duplicate tool call id %s", core.ErrProtocol, call.ID)
		}
		seen[call.ID] = true
	}
	return nil
}
