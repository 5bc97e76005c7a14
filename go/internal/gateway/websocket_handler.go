package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/auth"
)

// ParticipantChecker authorizes a player against a game before the socket is
// upgraded. The game repository implements it.
type ParticipantChecker interface {
	IsActiveParticipant(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (bool, error)
}

// WebSocketHandler handles upgrade requests for the per-game nudge stream.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	tokens            *auth.TokenManager
	participants      ParticipantChecker
}

func NewWebSocketHandler(cm *ConnectionManager, tokens *auth.TokenManager, participants ParticipantChecker) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		tokens:            tokens,
		participants:      participants,
	}
}

// HandleGameConnection upgrades `GET /ws/game?game_id=...&token=...`.
// Browsers cannot set headers on WebSocket dials, so the player token rides
// in the query string.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameIDStr := r.URL.Query().Get("game_id")
	if gameIDStr == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}

	playerID, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ok, err := h.participants.IsActiveParticipant(r.Context(), gameID, playerID)
	if err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("player_id", playerID.String()).
			Msg("failed to check participant before upgrade")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not a participant of this game", http.StatusForbidden)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, playerID, gameID); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("player_id", playerID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	connections, games := h.connectionManager.ConnectionCounts()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"total_connections":%d,"active_games":%d}`, connections, games)
}

// RegisterRoutes registers the gateway routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", h.HandleGameConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
