package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sketchvote/sketchvote/go/internal/auth"
	"github.com/sketchvote/sketchvote/go/internal/game"
	"github.com/sketchvote/sketchvote/go/internal/lock"
	"github.com/sketchvote/sketchvote/go/internal/models"
	"github.com/sketchvote/sketchvote/go/internal/orchestrator"
	"github.com/sketchvote/sketchvote/go/internal/timersync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyStore satisfies both the orchestrator and timer sync store interfaces
// with a single always-empty backend.
type emptyStore struct{}

func (emptyStore) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return nil, game.ErrGameNotFound
}

func (emptyStore) FindExpired(ctx context.Context, limit int32) ([]models.ExpiredGame, error) {
	return nil, nil
}

func (emptyStore) TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus models.GameStatus, phaseDuration int, expiresAt *time.Time) (bool, error) {
	return false, nil
}

func (emptyStore) StartGrace(ctx context.Context, id uuid.UUID, startedAt time.Time, extendSec int) (bool, error) {
	return false, nil
}

func (emptyStore) CountActiveParticipants(ctx context.Context, gameID uuid.UUID) (int, error) {
	return 0, nil
}

func (emptyStore) CountSubmissions(ctx context.Context, gameID uuid.UUID) (int, error) {
	return 0, nil
}

func (emptyStore) IsActiveParticipant(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (bool, error) {
	return false, nil
}

type nopNotifier struct{}

func (nopNotifier) PhaseChanged(ctx context.Context, gameID uuid.UUID, previous, next models.GameStatus, executionID string) {
}

func newTestAdvanceHandler(secret string) *AdvanceTimersHandler {
	clock := clockwork.NewRealClock()
	store := emptyStore{}
	grace := orchestrator.NewGraceController(store, clock, 0)
	engine := orchestrator.NewEngine(store, nopNotifier{}, grace, clock)
	orch := orchestrator.New(store, engine, lock.NoopLock{}, clock, orchestrator.Config{})
	return NewAdvanceTimersHandler(orch, secret)
}

func TestAdvanceTimersRejectsBadSecret(t *testing.T) {
	handler := newTestAdvanceHandler("correct-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/advance-timers", nil)
	req.Header.Set("X-Timer-Secret", "wrong-secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body advanceTimersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid secret", body.Error)
}

func TestAdvanceTimersZeroWorkRun(t *testing.T) {
	handler := newTestAdvanceHandler("correct-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/advance-timers", nil)
	req.Header.Set("X-Timer-Secret", "correct-secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body advanceTimersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Zero(t, body.Processed)
	assert.Zero(t, body.Errors)
	assert.Zero(t, body.Skipped)
	assert.Equal(t, "no expired games", body.Message)
	assert.Empty(t, body.Error)
}

func newTestTimerHandler(t *testing.T) (*TimerHandler, string) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Generate(uuid.New(), time.Now())
	require.NoError(t, err)
	svc := timersync.NewService(emptyStore{}, clockwork.NewRealClock())
	return NewTimerHandler(svc, tokens), token
}

func TestTimerHandlerRejectsMissingToken(t *testing.T) {
	handler, _ := newTestTimerHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/games/timer", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTimerHandlerRejectsBadGameID(t *testing.T) {
	handler, token := newTestTimerHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/games/timer", bytes.NewBufferString(`{"gameId":"not-a-uuid"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimerHandlerDeniesNonParticipants(t *testing.T) {
	handler, token := newTestTimerHandler(t)

	body, err := json.Marshal(timerRequest{GameID: uuid.New().String()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/games/timer", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
