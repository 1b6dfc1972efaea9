// Package router classifies a message with the smart-agent backend and then
// picks the answer through an ordered list of attempts.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/monitor"
)

// AttemptBackend names the terminal default: the backend's own answer.
const AttemptBackend = "backend"

type Classifier interface {
	Query(ctx context.Context, req agents.QueryRequest) (*agents.Response, error)
}

type Request struct {
	Message        string
	UserID         string
	ConversationID string
	Context        map[string]any
}

// Attempt is one strategy for producing the answer. Run receives a private
// copy of the backend response and returns the response to use.
type Attempt interface {
	Name() string
	Applies(backend *agents.Response) bool
	Run(ctx context.Context, req Request, backend *agents.Response) (*agents.Response, error)
}

type Result struct {
	Response *agents.Response
	Attempt  string
	// Fallback is set when an applicable attempt failed and a later one
	// answered.
	Fallback bool
}

type Router struct {
	classifier Classifier
	attempts   []Attempt
	timeout    time.Duration
	logger     zerolog.Logger
}

type Option func(*Router)

// WithClassificationTimeout bounds the backend classification call.
func WithClassificationTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = logging.Component(l, "router") }
}

// New builds a router that tries attempts in order and falls back to the
// backend response when none applies or all applicable ones fail.
func New(classifier Classifier, attempts []Attempt, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		attempts:   attempts,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	backend, err := r.classify(ctx, req)
	if err != nil {
		return nil, err
	}

	log := r.logger.With().
		Str("intent", backend.Intent.String()).
		Str("conversation_id", req.ConversationID).
		Logger()

	failed := false
	for _, a := range r.attempts {
		if !a.Applies(backend) {
			continue
		}
		resp, err := a.Run(ctx, req, backend.Clone())
		if err == nil {
			monitor.RouteDecisions.WithLabelValues(backend.Intent.String(), a.Name()).Inc()
			return &Result{Response: resp, Attempt: a.Name(), Fallback: failed}, nil
		}
		failed = true
		log.Warn().Err(err).Str("attempt", a.Name()).Msg("attempt failed, trying next")
	}

	monitor.RouteDecisions.WithLabelValues(backend.Intent.String(), AttemptBackend).Inc()
	return &Result{Response: backend, Attempt: AttemptBackend, Fallback: failed}, nil
}

func (r *Router) classify(ctx context.Context, req Request) (*agents.Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	backend, err := r.classifier.Query(ctx, agents.QueryRequest{
		Message:        req.Message,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Context:        req.Context,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("classification: %w", core.ErrTimeout)
		}
		r.logger.Error().Err(err).Msg("classification failed")
		return nil, err
	}
	return backend, nil
}
