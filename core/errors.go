package core

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrNotConfigured    = errors.New("not configured")
	ErrProtocol         = errors.New("tool call protocol violation")
	ErrRoundLimit       = errors.New("tool round limit reached")
	ErrEmptyCompletion  = errors.New("completion returned no content")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("operation timed out")
	ErrLLMRequest       = errors.New("LLM request failed")
)

// ValidationError is malformed caller input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// UpstreamError is a non-2xx or transport failure from a remote service.
// Status is zero when no response was received.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type ToolErrorKind string

const (
	ToolErrUnknown          ToolErrorKind = "unknown_tool"
	ToolErrInvalidArguments ToolErrorKind = "invalid_arguments"
	ToolErrExecution        ToolErrorKind = "execution_failed"
)

// ToolError never reaches callers; the executor turns it into a payload.
type ToolError struct {
	Kind ToolErrorKind
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	switch e.Kind {
	case ToolErrUnknown:
		return "Unknown tool"
	case ToolErrInvalidArguments:
		return fmt.Sprintf("Invalid arguments for %s: %v", e.Tool, e.Err)
	}
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	switch e.Kind {
	case ToolErrUnknown:
		return ErrToolNotFound
	case ToolErrInvalidArguments:
		return errors.Join(ErrInvalidArguments, e.Err)
	}
	return e.Err
}

// NotConfigured reports a missing credential or endpoint by name, e.g.
// NotConfigured("Agentverse API key") reads "Agentverse API key not configured".
func NotConfigured(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotConfigured)
}
