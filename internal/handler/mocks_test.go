package handler

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/openclaw/interview-server-go/internal/model"
)

type mockInterviewRepo struct {
	mock.Mock
}

func (m *mockInterviewRepo) Save(ctx context.Context, interview model.PersistedInterview) error {
	return m.Called(ctx, interview).Error(0)
}

func (m *mockInterviewRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.PersistedInterview, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PersistedInterview), args.Error(1)
}

func (m *mockInterviewRepo) List(ctx context.Context, limit, offset int) ([]model.InterviewSummary, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InterviewSummary), args.Error(1)
}

func (m *mockInterviewRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockRoleRepo struct {
	mock.Mock
}

func (m *mockRoleRepo) Create(ctx context.Context, params model.CreateRoleParams) (*model.RoleSettings, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RoleSettings), args.Error(1)
}

func (m *mockRoleRepo) FindByRole(ctx context.Context, role string) (*model.RoleSettings, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RoleSettings), args.Error(1)
}

func (m *mockRoleRepo) List(ctx context.Context) ([]model.RoleSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RoleSettings), args.Error(1)
}

func (m *mockRoleRepo) Update(ctx context.Context, role string, params model.UpdateRoleParams) (*model.RoleSettings, error) {
	args := m.Called(ctx, role, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RoleSettings), args.Error(1)
}

type mockGuidelines struct {
	mock.Mock
}

func (m *mockGuidelines) Guidelines(ctx context.Context, role, roleDescription, resume string, mustHave []string) (string, error) {
	args := m.Called(ctx, role, roleDescription, resume, mustHave)
	return args.String(0), args.Error(1)
}

type mockTranscriber struct {
	mock.Mock
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	args := m.Called(ctx, audioPath)
	return args.String(0), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Next(ctx context.Context, session *model.InterviewSession, candidateText string) (string, error) {
	args := m.Called(ctx, session, candidateText)
	return args.String(0), args.Error(1)
}

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	sessions []*model.InterviewSession
}

func (d *recordingDispatcher) Dispatch(_ context.Context, session *model.InterviewSession) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = append(d.sessions, session.Clone())
}

func (d *recordingDispatcher) dispatched() []*model.InterviewSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*model.InterviewSession(nil), d.sessions...)
}
