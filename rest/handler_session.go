package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fleetops/dispatchflow/flow"
	"github.com/fleetops/dispatchflow/logger"
)

// MessageRequest is the body of POST /sessions/{id}/messages.
type MessageRequest struct {
	OrgID          string `json:"org_id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ApprovalRequest is the body of POST /sessions/{id}/approval.
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

// HandleAdvance feeds a user message into a session's workflow.
func (s *Server) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	defer r.Body.Close()
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required", nil)
		return
	}

	result, err := s.executor.Advance(r.Context(), sessionID, flow.Input{
		OrgID:          req.OrgID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		logger.Error("advance failed",
			zap.String("session_id", sessionID), zap.Error(err))
		respondWithError(w, statusFor(err), err.Error(), &result)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// HandleResume supplies the approval decision for a suspended session.
func (s *Server) HandleResume(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	defer r.Body.Close()
	if req.Approved == nil {
		respondWithError(w, http.StatusBadRequest, "approved is required", nil)
		return
	}

	result, err := s.executor.Resume(r.Context(), sessionID, *req.Approved)
	if err != nil {
		logger.Error("resume failed",
			zap.String("session_id", sessionID), zap.Error(err))
		respondWithError(w, statusFor(err), err.Error(), &result)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// HandleGraph reports the topology for diagnostics.
func (s *Server) HandleGraph(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.executor.GraphInfo())
}

// HandleHealth probes the storage backend when one is wired.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			respondWithError(w, http.StatusServiceUnavailable, err.Error(), nil)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps engine errors onto HTTP statuses. Contention and
// protocol misuse are 409, unknown sessions 404, closed sessions 410.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrAwaitingApproval),
		errors.Is(err, flow.ErrConflict),
		errors.Is(err, flow.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, flow.ErrNoSuchSession),
		errors.Is(err, flow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrSessionTerminal):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
