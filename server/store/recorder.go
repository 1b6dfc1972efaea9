package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/monitor"
)

// Recorder writes turns and knowledge on a best-effort basis. Failures are
// logged and counted, never returned; a nil store disables persistence.
type Recorder struct {
	store   ConversationStore
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRecorder(s ConversationStore, timeout time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:   s,
		timeout: timeout,
		logger:  logging.Component(logger, "store"),
	}
}

func (r *Recorder) AppendTurn(ctx context.Context, t Turn) {
	if r == nil || r.store == nil {
		return
	}
	ctx, cancel := r.detach(ctx)
	defer cancel()

	if err := r.store.AppendTurn(ctx, t); err != nil {
		monitor.PersistenceFailures.WithLabelValues("append_turn").Inc()
		r.logger.Error().Err(err).
			Str("conversation_id", t.ConversationID).
			Str("user_id", t.UserID).
			Str("intent", t.Intent.String()).
			Msg("failed to persist turn")
	}
}

func (r *Recorder) RecordKnowledge(ctx context.Context, k KnowledgeRecord) {
	if r == nil || r.store == nil {
		return
	}
	ctx, cancel := r.detach(ctx)
	defer cancel()

	if err := r.store.RecordKnowledge(ctx, k); err != nil {
		monitor.PersistenceFailures.WithLabelValues("record_knowledge").Inc()
		r.logger.Error().Err(err).
			Str("agent_id", k.AgentID).
			Str("topic", k.Topic).
			Msg("failed to record knowledge")
	}
}

// detach drops the caller's cancellation; writes outlive a disconnect.
func (r *Recorder) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, func() {}
}
