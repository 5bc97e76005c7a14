package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sketchvote/sketchvote/go/internal/dbconfig"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// Dev seeding tool: inserts demo games in known phases so the orchestrator
// and timer sync endpoints can be exercised locally.

type seedGame struct {
	Status      models.GameStatus
	Players     int
	Submissions int
	ExpiresIn   time.Duration // negative means already expired
	DurationSec int
}

func main() {
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	seeds := []seedGame{
		{Status: models.GameStatusBriefing, Players: 3, ExpiresIn: -30 * time.Second, DurationSec: models.DefaultBriefingSec},
		{Status: models.GameStatusDrawing, Players: 3, Submissions: 1, ExpiresIn: -5 * time.Second, DurationSec: models.DefaultDrawingSec},
		{Status: models.GameStatusDrawing, Players: 2, Submissions: 2, ExpiresIn: -5 * time.Second, DurationSec: models.DefaultDrawingSec},
		{Status: models.GameStatusVoting, Players: 4, ExpiresIn: 2 * time.Minute, DurationSec: models.DefaultVotingSec},
		{Status: models.GameStatusCompleted, Players: 2},
	}

	var inserted, errs int
	for _, s := range seeds {
		gameID := uuid.New()

		settings, err := json.Marshal(models.GameSettings{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal settings: %v\n", err)
			errs++
			continue
		}

		var expiresAt *time.Time
		if s.Status.Timed() {
			t := time.Now().UTC().Add(s.ExpiresIn)
			expiresAt = &t
		}

		_, err = pool.Exec(context.Background(), `
            INSERT INTO games (id, status, settings, phase_duration, phase_expires_at, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, now(), now())
        `, gameID, s.Status, settings, s.DurationSec, expiresAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting game %s: %v\n", gameID, err)
			errs++
			continue
		}

		for i := 0; i < s.Players; i++ {
			playerID := uuid.New()
			if _, err := pool.Exec(context.Background(), `
                INSERT INTO game_participants (game_id, player_id, active)
                VALUES ($1, $2, true)
            `, gameID, playerID); err != nil {
				fmt.Fprintf(os.Stderr, "error inserting participant: %v\n", err)
				errs++
				continue
			}
			if i < s.Submissions {
				if _, err := pool.Exec(context.Background(), `
                    INSERT INTO submissions (game_id, player_id, created_at)
                    VALUES ($1, $2, now())
                `, gameID, playerID); err != nil {
					fmt.Fprintf(os.Stderr, "error inserting submission: %v\n", err)
					errs++
				}
			}
		}

		fmt.Printf("seeded game %s status=%s players=%d submissions=%d\n", gameID, s.Status, s.Players, s.Submissions)
		inserted++
	}

	fmt.Printf("done: %d games inserted, %d errors\n", inserted, errs)
	if errs > 0 {
		os.Exit(1)
	}
}
