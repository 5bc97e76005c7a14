package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sketchvote/sketchvote/go/internal/auth"
	"github.com/sketchvote/sketchvote/go/internal/game"
	"github.com/sketchvote/sketchvote/go/internal/orchestrator"
	"github.com/sketchvote/sketchvote/go/internal/timersync"
)

// advanceTimersResponse is the body returned to the external scheduler.
type advanceTimersResponse struct {
	Processed     int       `json:"processed"`
	Errors        int       `json:"errors"`
	Skipped       int       `json:"skipped"`
	ExecutionTime string    `json:"executionTime"`
	Timestamp     time.Time `json:"timestamp"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// AdvanceTimersHandler is the scheduler-invoked orchestrator entrypoint.
// Authentication is a shared secret header; the body is ignored.
type AdvanceTimersHandler struct {
	orch   *orchestrator.Orchestrator
	secret string
}

func NewAdvanceTimersHandler(orch *orchestrator.Orchestrator, secret string) *AdvanceTimersHandler {
	return &AdvanceTimersHandler{orch: orch, secret: secret}
}

func (h *AdvanceTimersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Timer-Secret")), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, advanceTimersResponse{Error: "invalid secret"})
		return
	}

	report, err := h.orch.RunTick(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("orchestrator tick failed")
		writeJSON(w, http.StatusInternalServerError, advanceTimersResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, advanceTimersResponse{
		Processed:     report.Processed,
		Errors:        report.Errors,
		Skipped:       report.Skipped,
		ExecutionTime: report.ExecutionTime.String(),
		Timestamp:     report.Timestamp,
		Message:       report.Message,
	})
}

type timerRequest struct {
	GameID string `json:"gameId"`
}

// TimerHandler is the client-facing timer sync entrypoint.
type TimerHandler struct {
	service *timersync.Service
	tokens  *auth.TokenManager
}

func NewTimerHandler(service *timersync.Service, tokens *auth.TokenManager) *TimerHandler {
	return &TimerHandler{service: service, tokens: tokens}
}

func (h *TimerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	playerID, err := h.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req timerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid gameId")
		return
	}

	state, err := h.service.GetTimer(r.Context(), gameID, playerID)
	switch {
	case errors.Is(err, timersync.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not a participant of this game")
		return
	case errors.Is(err, game.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
		return
	case err != nil:
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("timer sync failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
