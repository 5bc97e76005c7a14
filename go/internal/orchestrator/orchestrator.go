package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/lock"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// Config holds the orchestrator tuning knobs. Zero values fall back to the
// defaults below.
type Config struct {
	BatchLimit  int32
	Workers     int
	GraceWindow time.Duration
	LockTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchLimit:  50,
		Workers:     5,
		GraceWindow: DefaultGraceWindow,
		LockTimeout: 5 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BatchLimit <= 0 {
		c.BatchLimit = d.BatchLimit
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = d.GraceWindow
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	return c
}

// TickReport summarizes one orchestrator run. The HTTP layer owns the wire
// shape it derives from this.
type TickReport struct {
	Processed     int
	Errors        int
	Skipped       int
	ExecutionTime time.Duration
	Timestamp     time.Time
	ExecutionID   string
	Message       string
}

// Orchestrator drives one tick at a time: acquire the advisory lock, scan a
// bounded batch of expired games, fan them out across a small worker pool,
// and aggregate the per-game results. The lock only serializes whole ticks;
// per-game correctness rests on the engine's conditional write.
type Orchestrator struct {
	store      GameStore
	engine     *Engine
	lock       lock.AdvisoryLock
	clock      clockwork.Clock
	cfg        Config
	instanceID string // short ID for log correlation across replicas
}

func New(store GameStore, engine *Engine, adv lock.AdvisoryLock, clock clockwork.Clock, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		engine:     engine,
		lock:       adv,
		clock:      clock,
		cfg:        cfg.WithDefaults(),
		instanceID: uuid.New().String()[:8],
	}
}

// RunTick executes one orchestration pass. A failed lock acquisition is a
// clean skip, not an error; the next scheduler invocation retries.
func (o *Orchestrator) RunTick(ctx context.Context) (*TickReport, error) {
	start := o.clock.Now()
	executionID := uuid.New().String()

	report := &TickReport{
		Timestamp:   start.UTC(),
		ExecutionID: executionID,
	}

	acquired, err := o.lock.Acquire(ctx, o.cfg.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire orchestrator lock: %w", err)
	}
	if !acquired {
		log.Info().
			Str("instance", o.instanceID).
			Str("execution_id", executionID).
			Msg("orchestrator lock held elsewhere, skipping tick")
		report.Skipped = 1
		report.Message = "another run in progress"
		report.ExecutionTime = o.clock.Now().Sub(start)
		return report, nil
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("failed to release orchestrator lock")
		}
	}()

	expired, err := o.store.FindExpired(ctx, o.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired games: %w", err)
	}
	if len(expired) == 0 {
		report.Message = "no expired games"
		report.ExecutionTime = o.clock.Now().Sub(start)
		return report, nil
	}

	log.Info().
		Str("instance", o.instanceID).
		Str("execution_id", executionID).
		Int("count_due", len(expired)).
		Int32("batch_limit", o.cfg.BatchLimit).
		Msg("processing expired games")

	results := o.fanOut(ctx, expired, executionID)

	for _, res := range results {
		switch res.Outcome {
		case OutcomeTransitioned:
			report.Processed++
		case OutcomeSkipped:
			report.Skipped++
			log.Debug().
				Str("game_id", res.GameID.String()).
				Str("reason", res.Reason).
				Msg("game skipped")
		case OutcomeError:
			report.Errors++
			log.Error().
				Err(res.Err).
				Str("game_id", res.GameID.String()).
				Str("from", string(res.From)).
				Msg("per-game processing failed")
		}
	}

	report.ExecutionTime = o.clock.Now().Sub(start)
	log.Info().
		Str("instance", o.instanceID).
		Str("execution_id", executionID).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("errors", report.Errors).
		Dur("execution_time", report.ExecutionTime).
		Msg("tick complete")
	return report, nil
}

// fanOut runs per-game attempts on a bounded worker pool and collects every
// result. Workers never share counters; aggregation happens in RunTick after
// all of them finish.
func (o *Orchestrator) fanOut(ctx context.Context, expired []models.ExpiredGame, executionID string) []TaskResult {
	workers := o.cfg.Workers
	if workers > len(expired) {
		workers = len(expired)
	}

	workCh := make(chan models.ExpiredGame)
	resultCh := make(chan TaskResult, len(expired))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range workCh {
				resultCh <- o.engine.AttemptTransition(ctx, g.ID, g.Status, executionID)
			}
		}()
	}

	for _, g := range expired {
		workCh <- g
	}
	close(workCh)
	wg.Wait()
	close(resultCh)

	results := make([]TaskResult, 0, len(expired))
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}
