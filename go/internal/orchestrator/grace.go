package orchestrator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// GraceDecision is the outcome of the drawing-phase grace check.
type GraceDecision int

const (
	// GraceProceed lets the drawing→voting transition happen this tick.
	GraceProceed GraceDecision = iota
	// GraceDelay holds the transition; the game is retried on a later tick.
	GraceDelay
)

// DefaultGraceWindow is how long the drawing phase is stretched past its
// expiry so last-second submissions can land.
const DefaultGraceWindow = 15 * time.Second

// GraceController decides whether an expired drawing phase may end. The
// window is granted at most once per drawing phase: the conditional
// StartGrace write refuses a second extension, and entering voting clears
// the marker.
type GraceController struct {
	store  GameStore
	clock  clockwork.Clock
	window time.Duration
}

func NewGraceController(store GameStore, clock clockwork.Clock, window time.Duration) *GraceController {
	if window <= 0 {
		window = DefaultGraceWindow
	}
	return &GraceController{
		store:  store,
		clock:  clock,
		window: window,
	}
}

// Decide applies the grace procedure to a drawing-phase game whose timer has
// expired. Submission counts short-circuit everything: once every active
// participant has submitted there is nothing left to wait for.
func (c *GraceController) Decide(ctx context.Context, g *models.Game) (GraceDecision, error) {
	participants, err := c.store.CountActiveParticipants(ctx, g.ID)
	if err != nil {
		return GraceDelay, err
	}
	submissions, err := c.store.CountSubmissions(ctx, g.ID)
	if err != nil {
		return GraceDelay, err
	}
	if submissions >= participants {
		return GraceProceed, nil
	}

	now := c.clock.Now().UTC()

	if g.GraceStartedAt == nil {
		started, err := c.store.StartGrace(ctx, g.ID, now, int(c.window/time.Second))
		if err != nil {
			return GraceDelay, err
		}
		if started {
			log.Info().
				Str("game_id", g.ID.String()).
				Int("participants", participants).
				Int("submissions", submissions).
				Dur("window", c.window).
				Msg("grace window started, drawing phase extended")
		}
		// Either we granted the window or a concurrent tick beat us to it.
		// Both cases wait it out.
		return GraceDelay, nil
	}

	if now.Before(g.GraceStartedAt.Add(c.window)) {
		return GraceDelay, nil
	}

	// Window elapsed with submissions still missing; the phase ends now. The
	// transition write clears the grace marker.
	return GraceProceed, nil
}
