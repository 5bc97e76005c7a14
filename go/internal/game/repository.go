package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sketchvote/sketchvote/go/internal/models"
	"github.com/sketchvote/sketchvote/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// ErrGameNotFound is returned when a game id does not exist.
var ErrGameNotFound = errors.New("game not found")

// Repository is the durable store for game timer state. All status and
// phase_expires_at writes in the timer subsystem go through the conditional
// update in TransitionStatus; nothing else mutates those columns here.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const getGameQuery = `
SELECT id, status, settings, phase_duration, phase_expires_at, grace_started_at, created_at, updated_at
FROM games
WHERE id = $1`

func (r *Repository) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	row := r.db.QueryRowContext(ctx, getGameQuery, id)

	var (
		game       models.Game
		settings   pqtype.NullRawMessage
		expiresAt  sql.NullTime
		graceStart sql.NullTime
	)
	err := row.Scan(&game.ID, &game.Status, &settings, &game.PhaseDuration, &expiresAt, &graceStart, &game.CreatedAt, &game.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if settings.Valid {
		if err := json.Unmarshal(settings.RawMessage, &game.Settings); err != nil {
			game.Settings = models.GameSettings{}
		}
	}
	game.PhaseExpiresAt = sqlutil.FromSqlTime(expiresAt)
	game.GraceStartedAt = sqlutil.FromSqlTime(graceStart)
	return &game, nil
}

const findExpiredQuery = `
SELECT id, status, phase_expires_at
FROM games
WHERE phase_expires_at IS NOT NULL
  AND phase_expires_at <= now()
  AND status NOT IN ('completed', 'cancelled')
ORDER BY phase_expires_at ASC
LIMIT $1`

// FindExpired returns up to limit games whose phase timer has elapsed,
// oldest expiry first. Terminal games are never returned even if a stale
// expiry timestamp survives on the row.
func (r *Repository) FindExpired(ctx context.Context, limit int32) ([]models.ExpiredGame, error) {
	rows, err := r.db.QueryContext(ctx, findExpiredQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired games: %w", err)
	}
	defer rows.Close()

	var expired []models.ExpiredGame
	for rows.Next() {
		var g models.ExpiredGame
		if err := rows.Scan(&g.ID, &g.Status, &g.PhaseExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan expired game: %w", err)
		}
		expired = append(expired, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired games: %w", err)
	}
	return expired, nil
}

const transitionStatusQuery = `
UPDATE games
SET status = $3,
    phase_duration = $4,
    phase_expires_at = $5,
    grace_started_at = NULL,
    updated_at = now()
WHERE id = $1 AND status = $2`

// TransitionStatus performs the atomic conditional phase change. It returns
// false when zero rows matched, meaning another actor already moved the game
// off fromStatus and this attempt lost the race. The grace marker is always
// cleared: entering a new phase ends any running grace window.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus models.GameStatus, phaseDuration int, expiresAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, transitionStatusQuery, id, fromStatus, toStatus, phaseDuration, sqlutil.ToSqlTime(expiresAt))
	if err != nil {
		return false, fmt.Errorf("failed to transition game status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

const startGraceQuery = `
UPDATE games
SET grace_started_at = $2,
    phase_expires_at = phase_expires_at + $3 * interval '1 second',
    updated_at = now()
WHERE id = $1 AND status = 'drawing' AND grace_started_at IS NULL`

// StartGrace records the grace window start and pushes the drawing expiry
// forward by extendSec, but only if no grace window is already running. The
// guard on grace_started_at makes the extension happen at most once per
// drawing phase no matter how many ticks observe the expired timer.
func (r *Repository) StartGrace(ctx context.Context, id uuid.UUID, startedAt time.Time, extendSec int) (bool, error) {
	res, err := r.db.ExecContext(ctx, startGraceQuery, id, startedAt, extendSec)
	if err != nil {
		return false, fmt.Errorf("failed to start grace window: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

const countActiveParticipantsQuery = `
SELECT count(*) FROM game_participants
WHERE game_id = $1 AND active = true`

func (r *Repository) CountActiveParticipants(ctx context.Context, gameID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countActiveParticipantsQuery, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

const countSubmissionsQuery = `
SELECT count(*) FROM submissions
WHERE game_id = $1`

func (r *Repository) CountSubmissions(ctx context.Context, gameID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countSubmissionsQuery, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

const isActiveParticipantQuery = `
SELECT EXISTS (
	SELECT 1 FROM game_participants
	WHERE game_id = $1 AND player_id = $2 AND active = true
)`

func (r *Repository) IsActiveParticipant(ctx context.Context, gameID uuid.UUID, playerID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, isActiveParticipantQuery, gameID, playerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}
