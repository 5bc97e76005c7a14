package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// GameStore defines what the engine needs from the durable store.
type GameStore interface {
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	FindExpired(ctx context.Context, limit int32) ([]models.ExpiredGame, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus models.GameStatus, phaseDuration int, expiresAt *time.Time) (bool, error)
	StartGrace(ctx context.Context, id uuid.UUID, startedAt time.Time, extendSec int) (bool, error)
	CountActiveParticipants(ctx context.Context, gameID uuid.UUID) (int, error)
	CountSubmissions(ctx context.Context, gameID uuid.UUID) (int, error)
}

// Notifier receives successful transitions for broadcast. Implementations
// must be best-effort; the engine does not look at any outcome.
type Notifier interface {
	PhaseChanged(ctx context.Context, gameID uuid.UUID, previous, next models.GameStatus, executionID string)
}

// Outcome classifies a single per-game attempt.
type Outcome int

const (
	OutcomeTransitioned Outcome = iota
	OutcomeSkipped
	OutcomeError
)

// Skip reasons, recorded on TaskResult for logging and tests.
const (
	SkipTerminal      = "terminal"
	SkipRaceLost      = "already transitioned"
	SkipTimerExtended = "timer extended"
	SkipGracePending  = "grace pending"
)

// TaskResult is the per-game result of one attempt. Results are aggregated
// by the orchestrator after all workers finish; nothing in the engine mutates
// shared counters.
type TaskResult struct {
	GameID  uuid.UUID
	Outcome Outcome
	Reason  string
	From    models.GameStatus
	To      models.GameStatus
	Err     error
}

func skipped(gameID uuid.UUID, from models.GameStatus, reason string) TaskResult {
	return TaskResult{GameID: gameID, Outcome: OutcomeSkipped, Reason: reason, From: from}
}

func failed(gameID uuid.UUID, from models.GameStatus, err error) TaskResult {
	return TaskResult{GameID: gameID, Outcome: OutcomeError, From: from, Err: err}
}

// Engine executes the next-step edge of the phase state machine. The
// conditional write in the store is the sole correctness mechanism under
// concurrent ticks; everything before it is there to lose races early and
// cheaply.
type Engine struct {
	store    GameStore
	notifier Notifier
	grace    *GraceController
	clock    clockwork.Clock
}

func NewEngine(store GameStore, notifier Notifier, grace *GraceController, clock clockwork.Clock) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		grace:    grace,
		clock:    clock,
	}
}

// AttemptTransition advances a single game from fromStatus to its successor
// phase. A lost race, an externally extended timer, a terminal phase, and a
// pending grace window all end as skips, never as errors.
func (e *Engine) AttemptTransition(ctx context.Context, gameID uuid.UUID, fromStatus models.GameStatus, executionID string) TaskResult {
	toStatus, ok := fromStatus.Next()
	if !ok {
		return skipped(gameID, fromStatus, SkipTerminal)
	}

	// Re-read state right before the write. The batch scan is stale by the
	// time a worker gets here, and duplicate ticks can interleave.
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return failed(gameID, fromStatus, err)
	}
	if g.Status != fromStatus {
		return skipped(gameID, fromStatus, SkipRaceLost)
	}

	now := e.clock.Now().UTC()
	if g.PhaseExpiresAt != nil && g.PhaseExpiresAt.After(now) {
		return skipped(gameID, fromStatus, SkipTimerExtended)
	}

	if fromStatus == models.GameStatusDrawing && toStatus == models.GameStatusVoting {
		decision, err := e.grace.Decide(ctx, g)
		if err != nil {
			return failed(gameID, fromStatus, err)
		}
		if decision == GraceDelay {
			return skipped(gameID, fromStatus, SkipGracePending)
		}
	}

	duration := g.Settings.PhaseDuration(toStatus)
	var expiresAt *time.Time
	if toStatus.Timed() {
		t := now.Add(duration)
		expiresAt = &t
	}

	transitioned, err := e.store.TransitionStatus(ctx, gameID, fromStatus, toStatus, int(duration/time.Second), expiresAt)
	if err != nil {
		return failed(gameID, fromStatus, err)
	}
	if !transitioned {
		// Zero rows matched the conditional update: same as losing the race
		// at the re-read, just later.
		return skipped(gameID, fromStatus, SkipRaceLost)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("from", string(fromStatus)).
		Str("to", string(toStatus)).
		Str("execution_id", executionID).
		Msg("phase transitioned")

	e.notifier.PhaseChanged(ctx, gameID, fromStatus, toStatus, executionID)

	return TaskResult{
		GameID:  gameID,
		Outcome: OutcomeTransitioned,
		From:    fromStatus,
		To:      toStatus,
	}
}
