package handler

import (
	"net/http"
	"time"

	"github.com/openclaw/interview-server-go/internal/httputil"
	"github.com/openclaw/interview-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatRole(role model.RoleSettings) map[string]any {
	return map[string]any{
		"role":             role.Role,
		"custom_questions": role.CustomQuestions,
		"job_description":  role.JobDescription,
		"created_at":       role.CreatedAt.Format(time.RFC3339),
		"updated_at":       role.UpdatedAt.Format(time.RFC3339),
	}
}
