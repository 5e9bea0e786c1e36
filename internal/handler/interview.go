package handler

import (
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audit"
	apperrors "github.com/openclaw/interview-server-go/internal/errors"
	"github.com/openclaw/interview-server-go/internal/service"
)

type InterviewHandler struct {
	interviewService *service.InterviewService
}

func NewInterviewHandler(interviewService *service.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviewService: interviewService}
}

// Routes mounts the interview API. startMiddleware wraps only the start
// endpoint, which is the one that spends model calls.
func (h *InterviewHandler) Routes(startMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(startMiddleware...).Post("/start", h.Start)
	r.Get("/", h.List)
	r.Get("/{sessionId}", h.Get)

	return r
}

func (h *InterviewHandler) SessionRoutes() chi.Router {
	r := chi.NewRouter()

	r.Delete("/{sessionId}", h.DeleteSession)

	return r
}

type startRequest struct {
	Role            string `json:"role"`
	RoleDescription string `json:"role_description"`
	PortfolioText   string `json:"portfolio_text"`
}

type startResponse struct {
	SessionID   string `json:"session_id"`
	AudioBase64 string `json:"audio_base64"`
	Question    string `json:"question"`
}

// POST /v1/interviews/start
// Accepts JSON or form fields.
func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRequest(r)
	if err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.interviewService.Start(r.Context(), service.StartInterviewParams{
		Role:            req.Role,
		RoleDescription: req.RoleDescription,
		PortfolioText:   req.PortfolioText,
	})
	if err != nil {
		log.Error().Err(err).Str("role", req.Role).Msg("failed to start interview")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventInterviewStart,
		SessionID: result.Session.ID,
		Role:      result.Session.Role,
	})

	writeJSON(w, http.StatusOK, startResponse{
		SessionID:   result.Session.ID,
		AudioBase64: base64.StdEncoding.EncodeToString(result.Audio),
		Question:    result.Question,
	})
}

func decodeStartRequest(r *http.Request) (startRequest, error) {
	var req startRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 10); err != nil && err != http.ErrNotMultipart {
			return req, err
		}
		req.Role = r.FormValue("role")
		req.RoleDescription = r.FormValue("role_description")
		req.PortfolioText = r.FormValue("portfolio_text")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// GET /v1/interviews
func (h *InterviewHandler) List(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)

	summaries, total, err := h.interviewService.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list interviews")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"interviews": summaries,
		"total":      total,
		"limit":      page.Limit,
		"offset":     page.Offset,
		"has_more":   page.HasMore(total),
	})
}

// GET /v1/interviews/{sessionId}
func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	record, err := h.interviewService.Get(r.Context(), sessionID)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to get interview")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DELETE /v1/sessions/{sessionId}
func (h *InterviewHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if err := h.interviewService.DeleteSession(r.Context(), sessionID); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to delete session")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionDelete, SessionID: sessionID})

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Session " + sessionID + " deleted successfully.",
	})
}
