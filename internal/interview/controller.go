package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audio"
	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/store"
)

const (
	storeCleanupTimeout = 5 * time.Second
	// maxQueuedTurns bounds the answers sealed while a turn is in flight.
	maxQueuedTurns = 2
)

var ErrCollaboratorTimeout = errors.New("collaborator call timed out")

// Conn is the bound client connection. Implementations serialize writes.
type Conn interface {
	SendAudio(data []byte) error
	SendText(text string) error
	SendJSON(v any) error
	Close() error
}

type Deps struct {
	Store       store.Store
	Transcriber Transcriber
	Generator   QuestionGenerator
	Synthesizer Synthesizer
	Finalizer   Dispatcher
}

type ControllerConfig struct {
	AudioDir            string
	AudioLimits         audio.Limits
	CollaboratorTimeout time.Duration
}

// Controller drives one bound connection through its turns. Inbound frames
// arrive on the gateway's reader goroutine; each turn runs on its own worker
// goroutine so end_interview and disconnects are seen while it is in flight.
type Controller struct {
	deps      Deps
	conn      Conn
	sessionID string
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	session    *model.InterviewSession
	acc        *audio.Accumulator
	cancelTurn context.CancelFunc
	queued     []string

	turns sync.WaitGroup
	done  chan struct{}
}

func NewController(session *model.InterviewSession, conn Conn, deps Deps, cfg ControllerConfig) *Controller {
	return &Controller{
		deps:      deps,
		conn:      conn,
		sessionID: session.ID,
		timeout:   cfg.CollaboratorTimeout,
		logger:    log.With().Str("sessionId", session.ID).Logger(),
		now:       time.Now,
		state:     StateAwaitingInput,
		session:   session.Clone(),
		acc:       audio.NewAccumulator(cfg.AudioDir, cfg.AudioLimits),
		done:      make(chan struct{}),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the live session.
func (c *Controller) Session() *model.InterviewSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Done is closed once the controller reaches StateEnded.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until no turn worker is running.
func (c *Controller) Wait() {
	c.turns.Wait()
}

// HandleAudio appends a frame to the open utterance. Frames that arrive while
// a turn is in flight start the next utterance.
func (c *Controller) HandleAudio(frame []byte) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	err := c.acc.Write(frame)
	if err != nil {
		c.acc.Reset()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("audio buffer limit reached, utterance dropped")
		c.notify(Notice{Type: NoticeTurnFailed, Stage: StageAudio, Message: "Utterance too long, please try again"})
	}
}

// HandleEndOfMessage closes the open utterance and starts a turn on a worker
// goroutine. ctx is the connection context; cancelling it aborts the turn.
// An utterance closed while a turn is in flight is queued and runs as its
// own turn once the worker is free.
func (c *Controller) HandleEndOfMessage(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	queue := c.state.Busy() || len(c.queued) > 0
	if queue && len(c.queued) >= maxQueuedTurns {
		state := c.state
		c.acc.Reset()
		c.mu.Unlock()
		c.logger.Warn().Str("state", state.String()).Msg("turn queue full, utterance dropped")
		c.notify(Notice{Type: NoticeTurnBusy, Message: "Previous answers are still being processed, please repeat"})
		return
	}

	path, err := c.acc.Flush()
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("failed to flush utterance")
		c.notify(Notice{Type: NoticeTurnFailed, Stage: StageAudio, Message: "Could not store audio, please try again"})
		return
	}

	if queue {
		c.queued = append(c.queued, path)
		depth := len(c.queued)
		c.mu.Unlock()
		c.logger.Debug().Int("queued", depth).Msg("utterance queued behind in-flight turn")
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancelTurn = cancel
	c.state = StateTranscribing
	c.turns.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.turns.Done()
		for {
			c.runTurn(turnCtx, path)
			cancel()

			var ok bool
			turnCtx, cancel, path, ok = c.dequeue(ctx)
			if !ok {
				return
			}
		}
	}()
}

// dequeue starts the next queued utterance if the controller is idle.
func (c *Controller) dequeue(ctx context.Context) (context.Context, context.CancelFunc, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingInput || len(c.queued) == 0 {
		return nil, nil, "", false
	}
	path := c.queued[0]
	c.queued = c.queued[1:]

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancelTurn = cancel
	c.state = StateTranscribing
	return turnCtx, cancel, path, true
}

// HandleEndInterview preempts any running turn, removes the session from the
// store, dispatches finalization, acknowledges and closes the connection.
// Later calls are no-ops.
func (c *Controller) HandleEndInterview(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	preempted := c.state
	c.state = StateEnded
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	dropped := len(c.queued)
	c.queued = nil
	c.session.Status = model.SessionStatusEnded
	snapshot := c.session.Clone()
	releaseErr := c.acc.Release()
	c.mu.Unlock()

	if releaseErr != nil {
		c.logger.Warn().Err(releaseErr).Msg("failed to release audio artifacts")
	}
	// A turn that reached Transmitting is already committed to the snapshot.
	if preempted.Busy() && preempted != StateTransmitting {
		c.logger.Info().Str("state", preempted.String()).Msg("in-flight turn dropped by end of interview")
	}
	if dropped > 0 {
		c.logger.Info().Int("queued", dropped).Msg("queued answers dropped by end of interview")
	}

	// Removal precedes dispatch so a new bind can never see a session that is
	// already being finalized.
	c.removeSession(ctx)
	c.deps.Finalizer.Dispatch(ctx, snapshot)

	if err := c.conn.SendText(TerminationAck); err != nil {
		c.logger.Debug().Err(err).Msg("failed to send termination ack")
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("failed to close connection")
	}
	close(c.done)

	c.logger.Info().Int("turns", len(snapshot.History)).Msg("interview ended")
}

// HandleDisconnect releases everything the connection owns without
// finalizing the interview.
func (c *Controller) HandleDisconnect(ctx context.Context) {
	c.terminate(ctx, nil)
}

func (c *Controller) terminate(ctx context.Context, cause error) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	state := c.state
	c.state = StateEnded
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	c.queued = nil
	releaseErr := c.acc.Release()
	c.mu.Unlock()

	if releaseErr != nil {
		c.logger.Warn().Err(releaseErr).Msg("failed to release audio artifacts")
	}

	c.removeSession(ctx)
	if cause != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("failed to close connection")
		}
	}
	close(c.done)

	event := c.logger.Info()
	if cause != nil {
		event = c.logger.Warn().Err(cause)
	}
	event.Str("state", state.String()).Msg("connection terminated")
}

func (c *Controller) runTurn(ctx context.Context, path string) {
	text, err := c.transcribe(ctx, path)
	c.removeArtifact(path)
	if err != nil {
		c.fail(ctx, StageTranscription, apperrors.Transcription(err))
		return
	}

	if !c.advance(StateTranscribing, StateGeneratingResponse) {
		return
	}

	snapshot := c.Session()
	var question string
	err = c.invoke(ctx, func(callCtx context.Context) error {
		var err error
		question, err = c.deps.Generator.Next(callCtx, snapshot, text)
		return err
	})
	if err != nil {
		c.fail(ctx, StageGeneration, apperrors.Generation(err))
		return
	}

	if !c.advance(StateGeneratingResponse, StateSynthesizing) {
		return
	}

	var speech []byte
	err = c.invoke(ctx, func(callCtx context.Context) error {
		var err error
		speech, err = c.deps.Synthesizer.Synthesize(callCtx, question)
		return err
	})
	if err != nil {
		c.fail(ctx, StageSynthesis, apperrors.Synthesis(err))
		return
	}

	committed, err := c.commit(ctx, text, question)
	if errors.Is(err, store.ErrSessionNotFound) {
		c.terminate(ctx, apperrors.SessionNotFound(c.sessionID))
		return
	}
	if err != nil {
		c.fail(ctx, StageSessionStore, err)
		return
	}
	if !committed {
		return
	}

	if err := c.conn.SendAudio(speech); err != nil {
		if ctx.Err() == nil {
			c.terminate(ctx, apperrors.Transport(err))
		}
		return
	}
	c.advance(StateTransmitting, StateAwaitingInput)
}

func (c *Controller) transcribe(ctx context.Context, path string) (string, error) {
	var text string
	err := c.invoke(ctx, func(callCtx context.Context) error {
		var err error
		text, err = c.deps.Transcriber.Transcribe(callCtx, path)
		return err
	})
	return text, err
}

// commit appends the candidate and assistant turns once the reply audio is
// ready and writes the session back, moving the turn to Transmitting. It
// holds the lock across the store write so an end_interview cannot remove the
// session between the state check and the write. A turn that never reaches
// commit leaves no trace in the history.
func (c *Controller) commit(ctx context.Context, answer, question string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSynthesizing {
		return false, nil
	}

	now := c.now()
	updated := c.session.Clone()
	updated.History = c.session.AppendTurns(
		model.CandidateTurn(answer, now),
		model.AssistantTurn(question, now),
	)
	if err := c.deps.Store.Update(ctx, updated); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return false, err
		}
		return false, apperrors.Internal("Failed to save interview progress").WithCause(err)
	}

	c.session = updated
	c.state = StateTransmitting
	return true, nil
}

func (c *Controller) advance(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// invoke bounds one collaborator call with the configured timeout.
func (c *Controller) invoke(ctx context.Context, fn func(context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrCollaboratorTimeout, c.timeout, err)
	}
	return err
}

func (c *Controller) fail(ctx context.Context, stage Stage, err error) {
	if ctx.Err() != nil {
		c.logger.Debug().Err(err).Str("stage", string(stage)).Msg("turn cancelled")
		return
	}
	if errors.Is(err, ErrCollaboratorTimeout) {
		c.terminate(ctx, apperrors.Transport(err))
		return
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.state = StateAwaitingInput
	c.mu.Unlock()

	event := c.logger.Error()
	if apperrors.IsTurnLocal(err) {
		event = c.logger.Warn()
	}
	event.Err(err).Str("stage", string(stage)).Msg("turn failed")

	message := "Turn failed, please try again"
	if appErr, ok := apperrors.AsAppError(err); ok {
		message = appErr.Message
	}
	c.notify(Notice{Type: NoticeTurnFailed, Stage: stage, Message: message})
}

func (c *Controller) removeArtifact(path string) {
	c.mu.Lock()
	err := c.acc.Remove(path)
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("failed to remove audio artifact")
	}
}

func (c *Controller) removeSession(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCleanupTimeout)
	defer cancel()
	if err := c.deps.Store.Remove(ctx, c.sessionID); err != nil {
		c.logger.Error().Err(err).Msg("failed to remove session from store")
	}
}

func (c *Controller) notify(n Notice) {
	if err := c.conn.SendJSON(n); err != nil {
		c.logger.Debug().Err(err).Str("type", n.Type).Msg("failed to send notice")
	}
}
