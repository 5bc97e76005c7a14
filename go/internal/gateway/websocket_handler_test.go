package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sketchvote/sketchvote/go/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParticipants struct {
	active map[uuid.UUID]uuid.UUID // game -> allowed player
	err    error
}

func (f *fakeParticipants) IsActiveParticipant(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[gameID] == playerID, nil
}

func newTestHandler(t *testing.T, participants *fakeParticipants) (*WebSocketHandler, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	cm := NewConnectionManager(DefaultConnectionConfig())
	return NewWebSocketHandler(cm, tokens, participants), tokens
}

func gameRequest(gameID uuid.UUID, token string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/ws/game?game_id="+gameID.String()+"&token="+token, nil)
}

func TestHandleGameConnectionRequiresGameID(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeParticipants{})

	req := httptest.NewRequest(http.MethodGet, "/ws/game", nil)
	rec := httptest.NewRecorder()

	handler.HandleGameConnection(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGameConnectionRejectsBadToken(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeParticipants{})

	rec := httptest.NewRecorder()
	handler.HandleGameConnection(rec, gameRequest(uuid.New(), "not-a-token"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGameConnectionDeniesNonParticipants(t *testing.T) {
	gameID := uuid.New()
	participants := &fakeParticipants{active: map[uuid.UUID]uuid.UUID{gameID: uuid.New()}}
	handler, tokens := newTestHandler(t, participants)

	// Valid token for a player who never joined this game.
	token, err := tokens.Generate(uuid.New(), time.Now())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.HandleGameConnection(rec, gameRequest(gameID, token))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleGameConnectionCheckFailure(t *testing.T) {
	handler, tokens := newTestHandler(t, &fakeParticipants{err: errors.New("connection reset")})

	token, err := tokens.Generate(uuid.New(), time.Now())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.HandleGameConnection(rec, gameRequest(uuid.New(), token))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
