package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sketchvote/sketchvote/go/internal/events"
	"github.com/sketchvote/sketchvote/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	subject string
	data    []byte
	err     error
	calls   int
}

func (p *capturingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.calls++
	p.subject = subject
	p.data = data
	return p.err
}

func (p *capturingPublisher) Close() {}

type fakeFetcher struct {
	game *models.Game
	err  error
}

func (f *fakeFetcher) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.game, nil
}

func TestPhaseChangedPublishesFullSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gameID := uuid.New()
	pub := &capturingPublisher{}
	fetcher := &fakeFetcher{game: &models.Game{
		ID:            gameID,
		Status:        models.GameStatusVoting,
		PhaseDuration: models.DefaultVotingSec,
	}}
	b := NewBroadcasterWithClock(pub, fetcher, clock)

	b.PhaseChanged(context.Background(), gameID, models.GameStatusDrawing, models.GameStatusVoting, "exec-1")

	require.Equal(t, 1, pub.calls)
	assert.Equal(t, "game."+gameID.String(), pub.subject)

	var event events.PhaseChangedEvent
	require.NoError(t, json.Unmarshal(pub.data, &event))
	assert.Equal(t, events.EventTypePhaseChanged, event.Type)
	assert.Equal(t, gameID.String(), event.GameID)
	assert.Equal(t, "timer", event.TriggeredBy)
	assert.Equal(t, models.GameStatusVoting, event.Data.NewPhase)
	assert.Equal(t, models.GameStatusDrawing, event.Data.PreviousPhase)
	assert.Equal(t, "exec-1", event.Data.ExecutionID)
	require.NotNil(t, event.Data.Game)
	assert.Equal(t, gameID, event.Data.Game.ID)
	assert.True(t, event.Timestamp.Equal(clock.Now().UTC()))
}

func TestPhaseChangedDegradesToMinimalEvent(t *testing.T) {
	gameID := uuid.New()
	pub := &capturingPublisher{}
	fetcher := &fakeFetcher{err: errors.New("connection reset")}
	b := NewBroadcasterWithClock(pub, fetcher, clockwork.NewFakeClock())

	b.PhaseChanged(context.Background(), gameID, models.GameStatusDrawing, models.GameStatusVoting, "exec-1")

	require.Equal(t, 1, pub.calls, "snapshot failure still publishes the minimal event")

	var event events.PhaseChangedEvent
	require.NoError(t, json.Unmarshal(pub.data, &event))
	assert.Nil(t, event.Data.Game)
	assert.Equal(t, models.GameStatusVoting, event.Data.NewPhase)
}

func TestPhaseChangedSwallowsPublishFailure(t *testing.T) {
	gameID := uuid.New()
	pub := &capturingPublisher{err: errors.New("nats down")}
	fetcher := &fakeFetcher{game: &models.Game{ID: gameID}}
	b := NewBroadcasterWithClock(pub, fetcher, clockwork.NewFakeClock())

	// Must not panic or surface the error; the transition already committed.
	b.PhaseChanged(context.Background(), gameID, models.GameStatusVoting, models.GameStatusResults, "exec-1")

	assert.Equal(t, 1, pub.calls)
}
