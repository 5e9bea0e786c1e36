// Package interview runs the per-connection turn state machine and the
// detached finalization of finished interviews.
package interview

import (
	"context"

	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/sse"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// QuestionGenerator produces the interviewer's next line from the session
// plan, its history and the candidate's latest answer.
type QuestionGenerator interface {
	Next(ctx context.Context, session *model.InterviewSession, candidateText string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Evaluator interface {
	Score(ctx context.Context, history []model.Turn, role, roleDescription string) (string, error)
}

// PersistenceStore must reject a second record for the same session id.
type PersistenceStore interface {
	Save(ctx context.Context, interview model.PersistedInterview) error
}

type GuidelineGenerator interface {
	Guidelines(ctx context.Context, role, roleDescription, resume string, mustHave []string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// Dispatcher hands a finished session to background finalization. Dispatch
// must not block on the work itself, and the work must outlive ctx.
type Dispatcher interface {
	Dispatch(ctx context.Context, session *model.InterviewSession)
}
