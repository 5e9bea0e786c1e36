package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterviewSessionClone(t *testing.T) {
	now := time.Now()
	original := &InterviewSession{
		ID:                "s1",
		Guidelines:        "ask about python",
		MustHaveQuestions: []string{"Why us?"},
		History:           []Turn{AssistantTurn("Hello", now)},
		Status:            SessionStatusActive,
	}

	clone := original.Clone()
	clone.History[0].Text = "mutated"
	clone.MustHaveQuestions[0] = "mutated"
	clone.History = append(clone.History, CandidateTurn("hi", now))

	assert.Equal(t, "Hello", original.History[0].Text)
	assert.Equal(t, "Why us?", original.MustHaveQuestions[0])
	assert.Len(t, original.History, 1)
	assert.Nil(t, (*InterviewSession)(nil).Clone())
}

func TestAppendTurnsDoesNotAlias(t *testing.T) {
	now := time.Now()
	s := &InterviewSession{History: make([]Turn, 1, 8)}
	s.History[0] = AssistantTurn("Q1", now)

	next := s.AppendTurns(CandidateTurn("A1", now), AssistantTurn("Q2", now))

	require.Len(t, next, 3)
	assert.Len(t, s.History, 1)
	assert.Equal(t, SpeakerCandidate, next[1].Speaker)
	assert.Equal(t, SpeakerAssistant, next[2].Speaker)

	next[0].Text = "changed"
	assert.Equal(t, "Q1", s.History[0].Text)
}

func TestInterviewSessionValidate(t *testing.T) {
	assert.Error(t, (&InterviewSession{Guidelines: "g"}).Validate())
	assert.Error(t, (&InterviewSession{ID: "s1"}).Validate())
	assert.NoError(t, (&InterviewSession{ID: "s1", Guidelines: "g"}).Validate())
}

func TestTranscriptScanValue(t *testing.T) {
	t.Run("nil transcript stores empty array", func(t *testing.T) {
		v, err := Transcript(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("[]"), v)
	})

	t.Run("scans bytes and strings", func(t *testing.T) {
		var tr Transcript
		require.NoError(t, tr.Scan([]byte(`[{"speaker":"candidate","text":"hi","timestamp":"2024-01-01T00:00:00Z"}]`)))
		require.Len(t, tr, 1)
		assert.Equal(t, SpeakerCandidate, tr[0].Speaker)

		require.NoError(t, tr.Scan(`[]`))
		assert.Empty(t, tr)
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		var tr Transcript
		assert.Error(t, tr.Scan(42))
	})
}

func TestRoleSettingsMustHaveQuestions(t *testing.T) {
	r := &RoleSettings{CustomQuestions: "Why Go?\n\n  Describe a hard bug.  \n"}
	assert.Equal(t, []string{"Why Go?", "Describe a hard bug."}, r.MustHaveQuestions())
	assert.Nil(t, (*RoleSettings)(nil).MustHaveQuestions())
}
