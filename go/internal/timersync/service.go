package timersync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// ErrNotParticipant is returned when the caller is not an active participant
// of the requested game.
var ErrNotParticipant = errors.New("caller is not an active participant")

// Store defines what timer sync needs from the durable store.
type Store interface {
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	IsActiveParticipant(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (bool, error)
}

// TimerState is the authoritative countdown snapshot returned to clients.
// TimeRemaining is always computed server-side and clamped at zero; clients
// interpolate between polls and must accept jumps (grace extensions move the
// expiry forward).
type TimerState struct {
	TimeRemaining  float64           `json:"timeRemaining"` // seconds
	PhaseDuration  int               `json:"phaseDuration"` // seconds
	PhaseExpiresAt *time.Time        `json:"phaseExpiresAt"`
	ServerTime     time.Time         `json:"serverTime"`
	Phase          models.GameStatus `json:"phase"`
}

// Service is the lock-free read path for game clients. It never touches
// status or expiry; it only reports them.
type Service struct {
	store Store
	clock clockwork.Clock
}

func NewService(store Store, clock clockwork.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// GetTimer returns the remaining time for a game. The caller must be an
// active participant; anyone else is denied before the game row is read.
func (s *Service) GetTimer(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (*TimerState, error) {
	ok, err := s.store.IsActiveParticipant(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	state := &TimerState{
		PhaseDuration:  g.PhaseDuration,
		PhaseExpiresAt: g.PhaseExpiresAt,
		ServerTime:     now,
		Phase:          g.Status,
	}
	if g.PhaseExpiresAt != nil {
		if remaining := g.PhaseExpiresAt.Sub(now).Seconds(); remaining > 0 {
			state.TimeRemaining = remaining
		}
	}
	return state, nil
}
