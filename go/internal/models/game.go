package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the lifecycle phase of a game.
type GameStatus string

const (
	GameStatusWaiting   GameStatus = "waiting"
	GameStatusBriefing  GameStatus = "briefing"
	GameStatusDrawing   GameStatus = "drawing"
	GameStatusVoting    GameStatus = "voting"
	GameStatusResults   GameStatus = "results"
	GameStatusCompleted GameStatus = "completed"
	GameStatusCancelled GameStatus = "cancelled"
)

// Next returns the successor phase in the fixed lifecycle. Terminal phases
// (completed, cancelled) and unknown values return ok=false. Cancelled is a
// sink written by external actors; the timer subsystem never produces it.
func (s GameStatus) Next() (GameStatus, bool) {
	switch s {
	case GameStatusWaiting:
		return GameStatusBriefing, true
	case GameStatusBriefing:
		return GameStatusDrawing, true
	case GameStatusDrawing:
		return GameStatusVoting, true
	case GameStatusVoting:
		return GameStatusResults, true
	case GameStatusResults:
		return GameStatusCompleted, true
	case GameStatusCompleted, GameStatusCancelled:
		return "", false
	default:
		return "", false
	}
}

// Timed reports whether the phase runs on a countdown. Untimed phases carry a
// null phase_expires_at.
func (s GameStatus) Timed() bool {
	switch s {
	case GameStatusBriefing, GameStatusDrawing, GameStatusVoting, GameStatusResults:
		return true
	default:
		return false
	}
}

// GameSettings holds JSONB per-game phase durations in seconds. Zero values
// fall back to the defaults below.
type GameSettings struct {
	BriefingSec int `json:"briefing_sec,omitempty"`
	DrawingSec  int `json:"drawing_sec,omitempty"`
	VotingSec   int `json:"voting_sec,omitempty"`
	ResultsSec  int `json:"results_sec,omitempty"`
}

// Default phase durations, used when a game's settings leave them unset.
const (
	DefaultBriefingSec = 15
	DefaultDrawingSec  = 90
	DefaultVotingSec   = 60
	DefaultResultsSec  = 20
)

// PhaseDuration returns the configured duration for a phase, falling back to
// defaults. Untimed phases return 0.
func (gs GameSettings) PhaseDuration(status GameStatus) time.Duration {
	pick := func(configured, fallback int) time.Duration {
		if configured > 0 {
			return time.Duration(configured) * time.Second
		}
		return time.Duration(fallback) * time.Second
	}
	switch status {
	case GameStatusBriefing:
		return pick(gs.BriefingSec, DefaultBriefingSec)
	case GameStatusDrawing:
		return pick(gs.DrawingSec, DefaultDrawingSec)
	case GameStatusVoting:
		return pick(gs.VotingSec, DefaultVotingSec)
	case GameStatusResults:
		return pick(gs.ResultsSec, DefaultResultsSec)
	default:
		return 0
	}
}

// Game represents a game instance as stored in Postgres.
type Game struct {
	ID             uuid.UUID    `json:"id"`
	Status         GameStatus   `json:"status"`
	Settings       GameSettings `json:"settings"`
	PhaseDuration  int          `json:"phase_duration"`              // seconds allotted to the current phase
	PhaseExpiresAt *time.Time   `json:"phase_expires_at,omitempty"`  // nil means no active timer
	GraceStartedAt *time.Time   `json:"grace_started_at,omitempty"`  // nil unless a drawing grace window is running
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ExpiredGame is a row returned by the expired-game scan.
type ExpiredGame struct {
	ID             uuid.UUID  `json:"id"`
	Status         GameStatus `json:"status"`
	PhaseExpiresAt time.Time  `json:"phase_expires_at"`
}
