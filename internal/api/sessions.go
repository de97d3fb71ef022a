package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Pathwise-Labs/Elicit/internal/engine"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

type SessionsHandler struct {
	engine *engine.Engine
}

func NewSessionsHandler(e *engine.Engine) *SessionsHandler {
	return &SessionsHandler{engine: e}
}

type CreateSessionRequest struct {
	SessionID   string               `json:"session_id,omitempty"`
	UserContext vignette.UserContext `json:"user_context,omitempty"`
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	st, err := h.engine.StartSession(r.Context(), req.SessionID, req.UserContext)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st.Snapshot())
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (h *SessionsHandler) Next(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.NextVignette(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ChoiceRequest struct {
	VignetteID string `json:"vignette_id"`
	OptionID   string `json:"option_id"`
}

type ChoiceResponse struct {
	SessionID        string         `json:"session_id"`
	Status           session.Status `json:"status"`
	ChoiceCount      int            `json:"choice_count"`
	AdaptiveShown    int            `json:"adaptive_vignettes_shown"`
	AdaptiveComplete bool           `json:"adaptive_phase_complete"`
	StopReason       string         `json:"stop_reason,omitempty"`
}

func (h *SessionsHandler) Choose(w http.ResponseWriter, r *http.Request) {
	var req ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.VignetteID == "" || req.OptionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vignette_id and option_id required"})
		return
	}

	st, err := h.engine.RecordChoice(r.Context(), chi.URLParam(r, "id"), req.VignetteID, req.OptionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChoiceResponse{
		SessionID:        st.ID,
		Status:           st.Status,
		ChoiceCount:      len(st.Choices),
		AdaptiveShown:    st.AdaptiveShown,
		AdaptiveComplete: st.AdaptiveComplete,
		StopReason:       st.StopReason,
	})
}

func (h *SessionsHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	est, err := h.engine.Estimate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (h *SessionsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	ex, err := h.engine.Explain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, engine.ErrSessionExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already exists"})
	case errors.Is(err, engine.ErrSessionNotActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session not active"})
	case errors.Is(err, engine.ErrUnknownVignette):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown vignette"})
	case errors.Is(err, engine.ErrUnknownOption):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown option"})
	case errors.Is(err, engine.ErrAlreadyAnswered):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "vignette already answered"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
