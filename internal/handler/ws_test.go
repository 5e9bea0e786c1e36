package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/interview-server-go/internal/interview"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/service"
	"github.com/openclaw/interview-server-go/internal/store"
)

type gatewayFixture struct {
	srv         *httptest.Server
	url         string
	store       *store.MemoryStore
	bindings    *BindingTracker
	transcriber *mockTranscriber
	generator   *mockGenerator
	synthesizer *mockSynthesizer
	dispatcher  *recordingDispatcher
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		store:       store.NewMemoryStore(0),
		bindings:    NewBindingTracker(),
		transcriber: &mockTranscriber{},
		generator:   &mockGenerator{},
		synthesizer: &mockSynthesizer{},
		dispatcher:  &recordingDispatcher{},
	}
	require.NoError(t, f.store.Create(context.Background(), &model.InterviewSession{
		ID:              "s-1",
		Role:            "Backend Engineer",
		RoleDescription: "Builds Go services",
		Guidelines:      "1. Ask about Go",
		History:         []model.Turn{model.AssistantTurn("Which language do you like?", time.Now())},
		Status:          model.SessionStatusActive,
		CreatedAt:       time.Now(),
	}))

	resolver := service.NewInterviewService(service.InterviewServiceDeps{Sessions: f.store})
	gateway := NewAudioGateway(resolver, interview.Deps{
		Store:       f.store,
		Transcriber: f.transcriber,
		Generator:   f.generator,
		Synthesizer: f.synthesizer,
		Finalizer:   f.dispatcher,
	}, f.bindings, AudioGatewayConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AudioDir:         t.TempDir(),
		HandshakeTimeout: time.Second,
		PingInterval:     time.Hour,
	})

	f.srv = httptest.NewServer(gateway)
	t.Cleanup(f.srv.Close)
	f.url = "ws" + strings.TrimPrefix(f.srv.URL, "http")
	return f
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *gatewayFixture) bind(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	conn := f.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"session_id": sessionID}))
	return conn
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
		return closeErr
	}
}

func TestAudioGateway_Bind(t *testing.T) {
	t.Run("rejects unknown sessions", func(t *testing.T) {
		f := newGatewayFixture(t)

		conn := f.bind(t, "missing")

		closeErr := readClose(t, conn)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, "Session not found", closeErr.Text)
		assert.Zero(t, f.bindings.Len())
	})

	t.Run("rejects a binary first frame", func(t *testing.T) {
		f := newGatewayFixture(t)

		conn := f.dial(t)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

		closeErr := readClose(t, conn)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	})

	t.Run("rejects a second connection for a bound session", func(t *testing.T) {
		f := newGatewayFixture(t)

		f.bind(t, "s-1")
		require.Eventually(t, func() bool { return f.bindings.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

		second := f.bind(t, "s-1")
		closeErr := readClose(t, second)
		assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)
		assert.Equal(t, 1, f.bindings.Len())
	})

	t.Run("rejects disallowed origins", func(t *testing.T) {
		f := newGatewayFixture(t)

		header := http.Header{}
		header.Set("Origin", "http://evil.example")
		_, resp, err := websocket.DefaultDialer.Dial(f.url, header)

		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestAudioGateway_Interview(t *testing.T) {
	f := newGatewayFixture(t)
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			data, err := os.ReadFile(args.String(1))
			assert.NoError(t, err)
			assert.Equal(t, []byte("frame-1frame-2"), data)
		}).
		Return("I like Python", nil)
	f.generator.On("Next", mock.Anything, mock.Anything, "I like Python").Return("Why Python?", nil)
	f.synthesizer.On("Synthesize", mock.Anything, "Why Python?").Return([]byte("speech"), nil)

	conn := f.bind(t, "s-1")
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("frame-1")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("frame-2")))
	require.NoError(t, conn.WriteJSON(map[string]bool{"endOfMessage": true}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte("speech"), data)

	session, err := f.store.Get(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, session.History, 3)
	assert.Equal(t, "I like Python", session.History[1].Text)
	assert.Equal(t, "Why Python?", session.History[2].Text)

	require.NoError(t, conn.WriteJSON(map[string]bool{"end_interview": true}))

	msgType, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, interview.TerminationAck, string(data))

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	require.Eventually(t, func() bool { return f.bindings.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.store.Len())

	dispatched := f.dispatcher.dispatched()
	require.Len(t, dispatched, 1)
	assert.Len(t, dispatched[0].History, 3)
	assert.Equal(t, model.SessionStatusEnded, dispatched[0].Status)
}

func TestAudioGateway_Disconnect(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.bind(t, "s-1")
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("partial")))
	require.Eventually(t, func() bool { return f.bindings.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return f.bindings.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.dispatcher.dispatched())
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestAudioGateway_Shutdown(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.bind(t, "s-1")
	require.Eventually(t, func() bool { return f.bindings.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.bindings.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.bindings.Wait(ctx))

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestAudioGateway_ControlMessages(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.bind(t, "s-1")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]bool{"somethingElse": true}))
	// Ending the interview with an empty utterance still acknowledges.
	require.NoError(t, conn.WriteJSON(map[string]bool{"end_interview": true}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, interview.TerminationAck, string(data))
	require.Len(t, f.dispatcher.dispatched(), 1)
}
