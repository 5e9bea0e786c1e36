package model

import (
	"fmt"
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerAssistant Speaker = "assistant"
	SpeakerCandidate Speaker = "candidate"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// InterviewSession is the flat record kept in the session store. It carries no
// live model handles so any process can rebuild an interviewer from it.
type InterviewSession struct {
	ID                string        `json:"session_id"`
	Role              string        `json:"role"`
	RoleDescription   string        `json:"role_description"`
	Resume            string        `json:"resume,omitempty"`
	Guidelines        string        `json:"guidelines"`
	MustHaveQuestions []string      `json:"must_have_questions,omitempty"`
	History           []Turn        `json:"history"`
	Status            SessionStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

func (s *InterviewSession) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(s.Guidelines) == "" {
		return fmt.Errorf("session %s has no guidelines", s.ID)
	}
	return nil
}

func (s *InterviewSession) IsEnded() bool {
	return s.Status == SessionStatusEnded
}

// Clone returns a deep copy that shares no slices with s.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.MustHaveQuestions != nil {
		c.MustHaveQuestions = append([]string(nil), s.MustHaveQuestions...)
	}
	if s.History != nil {
		c.History = append([]Turn(nil), s.History...)
	}
	return &c
}

// AppendTurns returns a new history with turns added; s.History is not touched.
func (s *InterviewSession) AppendTurns(turns ...Turn) []Turn {
	out := make([]Turn, 0, len(s.History)+len(turns))
	out = append(out, s.History...)
	return append(out, turns...)
}

func CandidateTurn(text string, at time.Time) Turn {
	return Turn{Speaker: SpeakerCandidate, Text: text, Timestamp: at.UTC()}
}

func AssistantTurn(text string, at time.Time) Turn {
	return Turn{Speaker: SpeakerAssistant, Text: text, Timestamp: at.UTC()}
}
