package interview

type State int

const (
	StateAwaitingInput State = iota
	StateTranscribing
	StateGeneratingResponse
	StateSynthesizing
	StateTransmitting
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateTranscribing:
		return "transcribing"
	case StateGeneratingResponse:
		return "generating_response"
	case StateSynthesizing:
		return "synthesizing"
	case StateTransmitting:
		return "transmitting"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight.
func (s State) Busy() bool {
	return s != StateAwaitingInput && s != StateEnded
}

type Stage string

const (
	StageAudio         Stage = "audio"
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSessionStore  Stage = "session_store"
	StageSynthesis     Stage = "synthesis"
)

const (
	NoticeTurnFailed = "turn_failed"
	NoticeTurnBusy   = "turn_busy"
)

// Notice is a JSON text frame telling the client about a turn it should retry.
type Notice struct {
	Type    string `json:"type"`
	Stage   Stage  `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

const TerminationAck = "Interview ended successfully."
