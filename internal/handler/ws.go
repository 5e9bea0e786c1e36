package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audio"
	"github.com/openclaw/interview-server-go/internal/audit"
	"github.com/openclaw/interview-server-go/internal/config"
	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/interview"
	"github.com/openclaw/interview-server-go/internal/model"
)

var errConnClosed = errors.New("connection closed")

type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.InterviewSession, error)
}

type AudioGatewayConfig struct {
	AllowedOrigins      []string
	AudioDir            string
	AudioLimits         audio.Limits
	CollaboratorTimeout time.Duration
	HandshakeTimeout    time.Duration
	WriteTimeout        time.Duration
	PingInterval        time.Duration
	PongWait            time.Duration
	MaxFrameSize        int64
}

func (c *AudioGatewayConfig) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = config.WSHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = config.WSWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = config.WSPingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = config.WSPongWait
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = config.WSMaxFrameSize
	}
}

// AudioGateway serves /ws/audio. The first text frame binds the connection to
// a started session; after that binary frames carry candidate audio and text
// frames carry control messages.
type AudioGateway struct {
	sessions SessionResolver
	deps     interview.Deps
	bindings *BindingTracker
	cfg      AudioGatewayConfig
	upgrader websocket.Upgrader
}

func NewAudioGateway(sessions SessionResolver, deps interview.Deps, bindings *BindingTracker, cfg AudioGatewayConfig) *AudioGateway {
	cfg.applyDefaults()
	g := &AudioGateway{
		sessions: sessions,
		deps:     deps,
		bindings: bindings,
		cfg:      cfg,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

type bindRequest struct {
	SessionID string `json:"session_id"`
}

type controlMessage struct {
	EndOfMessage bool `json:"endOfMessage"`
	EndInterview bool `json:"end_interview"`
}

func (g *AudioGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(g.cfg.MaxFrameSize)

	session, err := g.bind(r.Context(), conn)
	if err != nil {
		log.Info().Err(err).Str("ip", audit.ClientIP(r)).Msg("rejected audio connection")
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventSessionBindReject,
			Details: map[string]any{"reason": err.Error()},
		})
		reject(conn, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	release, err := g.bindings.Acquire(session.ID, cancel)
	if err != nil {
		log.Warn().Str("sessionId", session.ID).Msg("rejected duplicate audio connection")
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventSessionBindReject,
			SessionID: session.ID,
			Details:   map[string]any{"reason": err.Error()},
		})
		reject(conn, err)
		return
	}
	defer release()

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionBind,
		SessionID: session.ID,
		Role:      session.Role,
	})

	ws := newWSConn(conn, g.cfg.WriteTimeout)
	defer ws.Close()

	ctrl := interview.NewController(session, ws, g.deps, interview.ControllerConfig{
		AudioDir:            g.cfg.AudioDir,
		AudioLimits:         g.cfg.AudioLimits,
		CollaboratorTimeout: g.cfg.CollaboratorTimeout,
	})

	go g.keepalive(ctx, ws)

	g.readLoop(ctx, conn, ctrl, func() {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventInterviewEnd,
			SessionID: session.ID,
			Role:      session.Role,
		})
	})

	ctrl.HandleDisconnect(context.WithoutCancel(ctx))
	cancel()
	ctrl.Wait()
}

func (g *AudioGateway) bind(ctx context.Context, conn *websocket.Conn) (*model.InterviewSession, error) {
	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, apperrors.Transport(err)
	}
	if msgType != websocket.TextMessage {
		return nil, apperrors.ValidationError("First frame must be a text bind message")
	}

	var req bindRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperrors.ValidationError("Invalid bind message")
	}

	session, err := g.sessions.ResolveSession(ctx, strings.TrimSpace(req.SessionID))
	if err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait)); err != nil {
		return nil, err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})
	return session, nil
}

// readLoop dispatches inbound frames until the connection fails or the
// controller ends. onEnd runs when the client ends the interview.
func (g *AudioGateway) readLoop(ctx context.Context, conn *websocket.Conn, ctrl *interview.Controller, onEnd func()) {
	logger := log.With().Str("sessionId", ctrl.Session().ID).Logger()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("audio connection read failed")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			ctrl.HandleAudio(data)

		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Warn().Err(err).Msg("ignoring malformed control message")
				continue
			}
			if msg.EndOfMessage {
				ctrl.HandleEndOfMessage(ctx)
			}
			if msg.EndInterview {
				ctrl.HandleEndInterview(ctx)
				onEnd()
				return
			}
			if !msg.EndOfMessage {
				logger.Warn().Str("message", string(data)).Msg("ignoring unknown control message")
			}
		}

		select {
		case <-ctrl.Done():
			return
		default:
		}
	}
}

// keepalive pings the client and closes the connection once ctx is done so a
// blocked read returns.
func (g *AudioGateway) keepalive(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ws.Close()
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				log.Debug().Err(err).Msg("audio connection ping failed")
				ws.Close()
				return
			}
		}
	}
}

func (g *AudioGateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func reject(conn *websocket.Conn, cause error) {
	code := websocket.ClosePolicyViolation
	reason := "Session binding failed"
	if appErr, ok := apperrors.AsAppError(cause); ok {
		reason = appErr.Message
	}
	if errors.Is(cause, ErrAlreadyBound) {
		code = websocket.CloseTryAgainLater
		reason = "Session already has an active connection"
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}

// wsConn implements interview.Conn over a gorilla connection. gorilla allows
// one concurrent writer, so data frames go through mu.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) SendAudio(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *wsConn) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

func (c *wsConn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *wsConn) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(msgType, data)
}

func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a normal close frame and closes the socket. Safe to call more
// than once.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.conn.Close()
	})
	return err
}
