package model

import (
	"strings"
	"time"
)

type RoleSettings struct {
	Role            string    `db:"role" json:"role"`
	CustomQuestions string    `db:"custom_questions" json:"custom_questions"`
	JobDescription  string    `db:"job_description" json:"job_description"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// MustHaveQuestions splits the newline separated custom questions.
func (r *RoleSettings) MustHaveQuestions() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(r.CustomQuestions, "\n") {
		if q := strings.TrimSpace(line); q != "" {
			out = append(out, q)
		}
	}
	return out
}

type CreateRoleParams struct {
	Role            string
	CustomQuestions string
	JobDescription  string
}

type UpdateRoleParams struct {
	CustomQuestions string
	JobDescription  string
}
