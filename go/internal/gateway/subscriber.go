package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/sketchvote/sketchvote/go/internal/events"
)

// SubscriberConfig holds NATS settings for the gateway side of the nudge
// channel.
type SubscriberConfig struct {
	URL           string
	SubjectFilter string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "game.>",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Subscriber bridges the per-game NATS subjects onto WebSocket connections.
// Core NATS subscriptions have no replay; a frame missed here is recovered
// by the client's timer sync poll, never by this bridge.
type Subscriber struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            SubscriberConfig
}

func NewSubscriber(cm *ConnectionManager, config SubscriberConfig) (*Subscriber, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Subscriber{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}, nil
}

// Start subscribes to the game subjects and forwards every event to the
// connections watching that game.
func (s *Subscriber) Start() error {
	sub, err := s.nc.Subscribe(s.config.SubjectFilter, s.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.config.SubjectFilter, err)
	}
	s.sub = sub

	log.Info().Str("subject", s.config.SubjectFilter).Msg("gateway subscribed to game events")
	return nil
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	var event events.PhaseChangedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode game event")
		return
	}

	gameID, err := uuid.Parse(event.GameID)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("game event carries invalid game id")
		return
	}

	s.connectionManager.Forward(gameID, msg.Data)
}

func (s *Subscriber) Stop() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe gateway")
		}
	}
	s.nc.Close()
}
