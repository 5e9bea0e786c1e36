package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audit"
	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/model"
	"github.com/openclaw/interview-server-go/internal/service"
)

type RoleHandler struct {
	roleService *service.RoleService
}

func NewRoleHandler(roleService *service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{role}", h.Get)
	r.Put("/{role}", h.Update)

	return r
}

type roleRequest struct {
	Role            string `json:"role"`
	CustomQuestions string `json:"custom_questions"`
	JobDescription  string `json:"job_description"`
}

// POST /v1/roles
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	role, err := h.roleService.Create(r.Context(), model.CreateRoleParams{
		Role:            req.Role,
		CustomQuestions: req.CustomQuestions,
		JobDescription:  req.JobDescription,
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeDatabase {
			log.Error().Err(err).Msg("failed to create role")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventRoleCreate, Role: role.Role})

	writeJSON(w, http.StatusCreated, formatRole(*role))
}

// GET /v1/roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list roles")
		writeError(w, err)
		return
	}

	result := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		result = append(result, formatRole(role))
	}

	writeJSON(w, http.StatusOK, map[string]any{"roles": result})
}

// GET /v1/roles/{role}
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.Get(r.Context(), chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatRole(*role))
}

// PUT /v1/roles/{role}
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	name := chi.URLParam(r, "role")
	role, err := h.roleService.Update(r.Context(), name, model.UpdateRoleParams{
		CustomQuestions: req.CustomQuestions,
		JobDescription:  req.JobDescription,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventRoleUpdate, Role: name})

	writeJSON(w, http.StatusOK, formatRole(*role))
}
