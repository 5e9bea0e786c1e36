package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
)

const previewLength = 50

type InterviewRepository interface {
	Save(ctx context.Context, interview model.PersistedInterview) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.PersistedInterview, error)
	List(ctx context.Context, limit, offset int) ([]model.InterviewSummary, error)
	Count(ctx context.Context) (int, error)
}

type interviewRepo struct {
	db *sqlx.DB
}

func NewInterviewRepository(db *sqlx.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

// Save inserts the record once. A second insert for the same session fails
// with a DUPLICATE error and leaves the stored row untouched.
func (r *interviewRepo) Save(ctx context.Context, interview model.PersistedInterview) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interviews (session_id, role, role_description, messages, evaluation)
		VALUES ($1, $2, $3, $4, $5)
	`, interview.SessionID, interview.Role, interview.RoleDescription,
		interview.Messages, interview.Evaluation)
	if IsUniqueViolation(err) {
		return apperrors.Duplicate("interview", err).WithDetails(map[string]string{"sessionId": interview.SessionID})
	}
	return err
}

func (r *interviewRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.PersistedInterview, error) {
	var interview model.PersistedInterview
	err := r.db.GetContext(ctx, &interview, `
		SELECT session_id, role, role_description, messages, evaluation, created_at
		FROM interviews WHERE session_id = $1
	`, sessionID)
	return HandleNotFound(&interview, err)
}

func (r *interviewRepo) List(ctx context.Context, limit, offset int) ([]model.InterviewSummary, error) {
	summaries := []model.InterviewSummary{}
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT
			session_id,
			role,
			COALESCE(LEFT(messages->0->>'text', $3), '') AS preview,
			evaluation IS NOT NULL AS evaluated,
			created_at
		FROM interviews
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset, previewLength)
	return summaries, err
}

func (r *interviewRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM interviews`)
	return count, err
}
