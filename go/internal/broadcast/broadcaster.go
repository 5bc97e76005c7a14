package broadcast

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/events"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// GameFetcher loads the current game record for the full-snapshot event.
type GameFetcher interface {
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

// Broadcaster turns committed phase transitions into phase_changed events on
// the per-game channel. Publishing is advisory: every failure path here is a
// log line, never an error surfaced to the transition engine.
type Broadcaster struct {
	publisher Publisher
	fetcher   GameFetcher
	clock     clockwork.Clock
}

func NewBroadcaster(publisher Publisher, fetcher GameFetcher) *Broadcaster {
	return &Broadcaster{
		publisher: publisher,
		fetcher:   fetcher,
		clock:     clockwork.NewRealClock(),
	}
}

// NewBroadcasterWithClock is for tests that need a fake clock.
func NewBroadcasterWithClock(publisher Publisher, fetcher GameFetcher, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{publisher: publisher, fetcher: fetcher, clock: clock}
}

// PhaseChanged publishes the transition to game.<gameId>. It prefers the
// full-snapshot payload and degrades to the minimal event when the snapshot
// cannot be fetched.
func (b *Broadcaster) PhaseChanged(ctx context.Context, gameID uuid.UUID, previous, next models.GameStatus, executionID string) {
	now := b.clock.Now().UTC()
	event := events.PhaseChangedEvent{
		Type:        events.EventTypePhaseChanged,
		GameID:      gameID.String(),
		Timestamp:   now,
		TriggeredBy: "timer",
		Data: events.PhaseChangedData{
			NewPhase:       next,
			PreviousPhase:  previous,
			PhaseStartedAt: now,
			ExecutionID:    executionID,
		},
	}

	snapshot, err := b.fetcher.GetGame(ctx, gameID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("game_id", gameID.String()).
			Msg("snapshot fetch failed, broadcasting minimal event")
	} else {
		event.Data.Game = snapshot
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to marshal phase_changed event")
		return
	}

	subject := events.GameChannel(gameID.String())
	if err := b.publisher.Publish(ctx, subject, data); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("subject", subject).
			Msg("failed to broadcast phase change")
		return
	}

	log.Debug().
		Str("game_id", gameID.String()).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("phase change broadcasted")
}
