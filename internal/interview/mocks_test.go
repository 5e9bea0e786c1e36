package interview

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/sse"
	"github.com/openclaw/interview-server-go/internal/store"
)

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

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Score(ctx context.Context, history []model.Turn, role, roleDescription string) (string, error) {
	args := m.Called(ctx, history, role, roleDescription)
	return args.String(0), args.Error(1)
}

// memoryPersistence rejects a second record for the same session like the
// unique key on the interviews table.
type memoryPersistence struct {
	mu      sync.Mutex
	records map[string]model.PersistedInterview
	saves   int
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{records: make(map[string]model.PersistedInterview)}
}

func (p *memoryPersistence) Save(_ context.Context, interview model.PersistedInterview) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if _, ok := p.records[interview.SessionID]; ok {
		return apperrors.Duplicate("interview", nil)
	}
	p.records[interview.SessionID] = interview
	return nil
}

func (p *memoryPersistence) get(sessionID string) (model.PersistedInterview, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[sessionID]
	return rec, ok
}

func (p *memoryPersistence) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
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

type fakeConn struct {
	mu      sync.Mutex
	audio   [][]byte
	texts   []string
	notices []Notice
	closed  bool
	sendErr error
}

func (c *fakeConn) SendAudio(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.audio = append(c.audio, data)
	return nil
}

func (c *fakeConn) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeConn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var n Notice
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() (audio [][]byte, texts []string, notices []Notice, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.audio...), append([]string(nil), c.texts...),
		append([]Notice(nil), c.notices...), c.closed
}

type harness struct {
	ctrl        *Controller
	conn        *fakeConn
	store       *store.MemoryStore
	transcriber *mockTranscriber
	generator   *mockGenerator
	synthesizer *mockSynthesizer
	dispatcher  *recordingDispatcher
	audioDir    string
}

func newHarness(t *testing.T, session *model.InterviewSession, cfg ControllerConfig) *harness {
	t.Helper()

	h := &harness{
		conn:        &fakeConn{},
		store:       store.NewMemoryStore(0),
		transcriber: &mockTranscriber{},
		generator:   &mockGenerator{},
		synthesizer: &mockSynthesizer{},
		dispatcher:  &recordingDispatcher{},
		audioDir:    t.TempDir(),
	}
	require.NoError(t, h.store.Create(context.Background(), session))

	cfg.AudioDir = h.audioDir
	h.ctrl = NewController(session, h.conn, Deps{
		Store:       h.store,
		Transcriber: h.transcriber,
		Generator:   h.generator,
		Synthesizer: h.synthesizer,
		Finalizer:   h.dispatcher,
	}, cfg)
	return h
}

func testSession(id string, history ...model.Turn) *model.InterviewSession {
	return &model.InterviewSession{
		ID:              id,
		Role:            "Backend Engineer",
		RoleDescription: "Builds Go services",
		Guidelines:      "1. Ask about Go\n2. Ask about databases",
		History:         history,
		Status:          model.SessionStatusActive,
		CreatedAt:       time.Now().UTC(),
	}
}

func historyOf(n int) []model.Turn {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	turns := make([]model.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			turns = append(turns, model.AssistantTurn("question", at))
		} else {
			turns = append(turns, model.CandidateTurn("answer", at))
		}
	}
	return turns
}
