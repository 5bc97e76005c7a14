package main

import (
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sketchvote/sketchvote/go/internal/auth"
	"github.com/sketchvote/sketchvote/go/internal/broadcast"
	"github.com/sketchvote/sketchvote/go/internal/game"
	"github.com/sketchvote/sketchvote/go/internal/gateway"
	"github.com/sketchvote/sketchvote/go/internal/lock"
	"github.com/sketchvote/sketchvote/go/internal/orchestrator"
	"github.com/sketchvote/sketchvote/go/internal/timersync"
)

// Services holds the wired application graph.
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	TimerSync    *timersync.Service
	Tokens       *auth.TokenManager
	Gateway      *gateway.WebSocketHandler
	Subscriber   *gateway.Subscriber
	Publisher    broadcast.Publisher
}

func setupServices(database *sql.DB, cfg *Config) (*Services, error) {
	clock := clockwork.NewRealClock()
	repo := game.NewRepository(database)

	var adv lock.AdvisoryLock
	switch cfg.Lock.Mode {
	case "none":
		log.Warn().Msg("advisory lock disabled, relying on conditional writes only")
		adv = lock.NoopLock{}
	default:
		adv = lock.NewPostgresLock(database, cfg.Lock.Name)
	}

	var publisher broadcast.Publisher
	if cfg.NATS.Enabled {
		natsCfg := broadcast.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		p, err := broadcast.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, err
		}
		publisher = p
	} else {
		log.Warn().Msg("NATS disabled, game events are log-only")
		publisher = broadcast.LogPublisher{}
	}

	orchCfg := cfg.OrchestratorConfig().WithDefaults()
	broadcaster := broadcast.NewBroadcaster(publisher, repo)
	grace := orchestrator.NewGraceController(repo, clock, orchCfg.GraceWindow)
	engine := orchestrator.NewEngine(repo, broadcaster, grace, clock)
	orch := orchestrator.New(repo, engine, adv, clock, orchCfg)

	tokens := auth.NewTokenManager(getEnv("PLAYER_TOKEN_SECRET", "dev-secret"), 24*time.Hour)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	wsHandler := gateway.NewWebSocketHandler(cm, tokens, repo)

	var subscriber *gateway.Subscriber
	if cfg.NATS.Enabled {
		subCfg := gateway.DefaultSubscriberConfig()
		subCfg.URL = cfg.NATS.URL
		sub, err := gateway.NewSubscriber(cm, subCfg)
		if err != nil {
			return nil, err
		}
		if err := sub.Start(); err != nil {
			return nil, err
		}
		subscriber = sub
	}

	return &Services{
		Orchestrator: orch,
		TimerSync:    timersync.NewService(repo, clock),
		Tokens:       tokens,
		Gateway:      wsHandler,
		Subscriber:   subscriber,
		Publisher:    publisher,
	}, nil
}
