package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Transcript is a history stored as a JSONB column.
type Transcript []Turn

func (t Transcript) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Turn(t))
}

func (t *Transcript) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = Transcript{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("transcript: unsupported scan type %T", src)
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	*t = turns
	return nil
}

// PersistedInterview is the durable record written once per session.
type PersistedInterview struct {
	SessionID       string     `db:"session_id" json:"session_id"`
	Role            string     `db:"role" json:"role"`
	RoleDescription string     `db:"role_description" json:"role_description"`
	Messages        Transcript `db:"messages" json:"messages"`
	Evaluation      *string    `db:"evaluation" json:"evaluation"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

type InterviewSummary struct {
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Preview   string    `db:"preview" json:"preview"`
	Evaluated bool      `db:"evaluated" json:"evaluated"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
