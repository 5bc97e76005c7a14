package events

import (
	"time"

	"github.com/sketchvote/sketchvote/go/internal/models"
)

// Event payload types shared between the broadcaster and the gateway.

// EventTypePhaseChanged is the only event type the timer subsystem emits.
const EventTypePhaseChanged = "phase_changed"

// GameChannel returns the per-game NATS subject for client nudges.
func GameChannel(gameID string) string {
	return "game." + gameID
}

// PhaseChangedEvent is the wire envelope published to a game's channel after
// a successful phase transition. Delivery is at most once; the store stays
// authoritative and clients reconcile via timer sync polling.
type PhaseChangedEvent struct {
	Type        string           `json:"type"` // always "phase_changed"
	GameID      string           `json:"gameId"`
	Timestamp   time.Time        `json:"timestamp"`
	TriggeredBy string           `json:"triggeredBy"`
	Data        PhaseChangedData `json:"data"`
}

// PhaseChangedData carries the transition itself. Game is the full snapshot
// variant; it is nil when the snapshot fetch failed and subscribers get the
// minimal event instead.
type PhaseChangedData struct {
	NewPhase       models.GameStatus `json:"newPhase"`
	PreviousPhase  models.GameStatus `json:"previousPhase"`
	PhaseStartedAt time.Time         `json:"phaseStartedAt"`
	ExecutionID    string            `json:"executionId"`
	Game           *models.Game      `json:"game,omitempty"`
}
