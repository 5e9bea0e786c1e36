package interview

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audit"
	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/sse"
)

const (
	EventInterviewEvaluated      = "interview_evaluated"
	EventInterviewFinalizeFailed = "interview_finalize_failed"
)

type FinalizeEvent struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Messages  int    `json:"messages"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Finalizer scores and persists ended interviews in the background. Failures
// are logged and published, never returned to the caller.
type Finalizer struct {
	evaluator Evaluator
	persist   PersistenceStore
	publisher EventPublisher
	timeout   time.Duration
	now       func() time.Time

	wg sync.WaitGroup
}

// NewFinalizer builds a Finalizer. publisher may be nil.
func NewFinalizer(evaluator Evaluator, persist PersistenceStore, publisher EventPublisher, timeout time.Duration) *Finalizer {
	return &Finalizer{
		evaluator: evaluator,
		persist:   persist,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (f *Finalizer) Dispatch(ctx context.Context, session *model.InterviewSession) {
	snapshot := session.Clone()
	ctx = context.WithoutCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}
		f.finalize(ctx, snapshot)
	}()
}

// Wait blocks until every dispatched finalization has finished or ctx is done.
func (f *Finalizer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Finalizer) finalize(ctx context.Context, session *model.InterviewSession) {
	logger := log.With().Str("sessionId", session.ID).Logger()
	summary := FinalizeEvent{
		SessionID: session.ID,
		Role:      session.Role,
		Messages:  len(session.History),
	}

	evaluation, err := f.evaluator.Score(ctx, session.History, session.Role, session.RoleDescription)
	if err != nil {
		err = apperrors.Evaluation(err)
		logger.Error().Err(err).Msg("interview evaluation failed, interview lost")
		summary.Stage, summary.Error = "evaluation", err.Error()
		f.publish(ctx, EventInterviewFinalizeFailed, summary)
		return
	}

	record := model.PersistedInterview{
		SessionID:       session.ID,
		Role:            session.Role,
		RoleDescription: session.RoleDescription,
		Messages:        model.Transcript(session.History),
		Evaluation:      &evaluation,
		CreatedAt:       f.now().UTC(),
	}
	if err := f.persist.Save(ctx, record); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeDuplicate) {
			logger.Warn().Err(err).Msg("interview finalized twice, duplicate record rejected")
		} else {
			err = apperrors.Persistence(err)
			logger.Error().Err(err).Msg("interview persistence failed, interview lost")
		}
		summary.Stage, summary.Error = "persistence", err.Error()
		f.publish(ctx, EventInterviewFinalizeFailed, summary)
		return
	}

	logger.Info().Int("messages", summary.Messages).Msg("interview evaluated and saved")
	audit.Log(ctx, audit.Event{
		Type:      audit.EventInterviewFinalized,
		SessionID: session.ID,
		Role:      session.Role,
		Details:   map[string]any{"messages": summary.Messages},
	})
	f.publish(ctx, EventInterviewEvaluated, summary)
}

func (f *Finalizer) publish(ctx context.Context, eventType string, payload FinalizeEvent) {
	if f.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal finalize event")
		return
	}
	if err := f.publisher.Publish(ctx, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("sessionId", payload.SessionID).Msg("failed to publish finalize event")
	}
}
