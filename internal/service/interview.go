package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/interview"
	"github.com/openclaw/interview-server-go/internal/llm"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/repository"
	"github.com/openclaw/interview-server-go/internal/store"
)

type StartInterviewParams struct {
	Role            string
	RoleDescription string
	PortfolioText   string
}

type StartInterviewResult struct {
	Session  *model.InterviewSession
	Question string
	Audio    []byte
}

type InterviewServiceDeps struct {
	Sessions    store.Store
	Interviews  repository.InterviewRepository
	Roles       repository.RoleRepository
	Guidelines  interview.GuidelineGenerator
	Generator   interview.QuestionGenerator
	Synthesizer interview.Synthesizer
}

type InterviewService struct {
	sessions    store.Store
	interviews  repository.InterviewRepository
	roles       repository.RoleRepository
	guidelines  interview.GuidelineGenerator
	generator   interview.QuestionGenerator
	synthesizer interview.Synthesizer
	now         func() time.Time
}

func NewInterviewService(deps InterviewServiceDeps) *InterviewService {
	return &InterviewService{
		sessions:    deps.Sessions,
		interviews:  deps.Interviews,
		roles:       deps.Roles,
		guidelines:  deps.Guidelines,
		generator:   deps.Generator,
		synthesizer: deps.Synthesizer,
		now:         time.Now,
	}
}

// Start plans a new interview, asks its opening question and stores the
// session so a connection can bind to it.
func (s *InterviewService) Start(ctx context.Context, params StartInterviewParams) (*StartInterviewResult, error) {
	role := strings.TrimSpace(params.Role)
	description := strings.TrimSpace(params.RoleDescription)
	resume := strings.TrimSpace(params.PortfolioText)
	switch {
	case role == "":
		return nil, apperrors.MissingRequired("role")
	case description == "":
		return nil, apperrors.MissingRequired("role_description")
	case resume == "":
		return nil, apperrors.MissingRequired("portfolio_text")
	}

	settings, err := s.roles.FindByRole(ctx, role)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	mustHave := settings.MustHaveQuestions()

	guidelines, err := s.guidelines.Guidelines(ctx, role, description, resume, mustHave)
	if err != nil {
		return nil, apperrors.Generation(err)
	}

	now := s.now().UTC()
	session := &model.InterviewSession{
		ID:                uuid.NewString(),
		Role:              role,
		RoleDescription:   description,
		Resume:            resume,
		Guidelines:        guidelines,
		MustHaveQuestions: mustHave,
		History:           []model.Turn{},
		Status:            model.SessionStatusActive,
		CreatedAt:         now,
	}

	question, err := s.generator.Next(ctx, session, llm.StartPrompt)
	if err != nil {
		return nil, apperrors.Generation(err)
	}

	audio, err := s.synthesizer.Synthesize(ctx, question)
	if err != nil {
		return nil, apperrors.Synthesis(err)
	}

	session.History = append(session.History, model.AssistantTurn(question, now))
	if err := session.Validate(); err != nil {
		return nil, apperrors.Internal("Generated session is incomplete").WithCause(err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Internal("Failed to store session").WithCause(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("role", role).
		Int("mustHaveQuestions", len(mustHave)).
		Msg("interview started")

	return &StartInterviewResult{Session: session, Question: question, Audio: audio}, nil
}

func (s *InterviewService) List(ctx context.Context, limit, offset int) ([]model.InterviewSummary, int, error) {
	summaries, err := s.interviews.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.interviews.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return summaries, total, nil
}

func (s *InterviewService) Get(ctx context.Context, sessionID string) (*model.PersistedInterview, error) {
	record, err := s.interviews.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if record == nil {
		return nil, apperrors.NotFound("Interview")
	}
	return record, nil
}

// DeleteSession drops a live session. Unknown ids are not an error.
func (s *InterviewService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Remove(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	log.Info().Str("sessionId", sessionID).Msg("session deleted")
	return nil
}

// ResolveSession loads the session a connection asked to bind to.
func (s *InterviewService) ResolveSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperrors.MissingRequired("session_id")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, apperrors.SessionNotFound(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if session.IsEnded() {
		return nil, apperrors.SessionNotFound(sessionID)
	}
	return session, nil
}
