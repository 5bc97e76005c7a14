package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sketchvote/sketchvote/go/internal/orchestrator"
)

// Config is the optional YAML tuning file. Everything in it has a sane
// default; deployments that never ship the file get the stock values
// (batch 50, 5 workers, 15s grace). Durations are plain seconds in YAML.
type Config struct {
	Orchestrator struct {
		BatchLimit     int32 `yaml:"batch_limit"`
		Workers        int   `yaml:"workers"`
		GraceWindowSec int   `yaml:"grace_window_sec"`
		LockTimeoutSec int   `yaml:"lock_timeout_sec"`
	} `yaml:"orchestrator"`
	Lock struct {
		// Mode selects the advisory lock implementation: "postgres"
		// (default) or "none" for single-instance deployments.
		Mode string `yaml:"mode"`
		Name string `yaml:"name"`
	} `yaml:"lock"`
	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"nats"`
}

// OrchestratorConfig converts the YAML knobs into the orchestrator's config.
// Unset values stay zero; the orchestrator applies its own defaults.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		BatchLimit:  c.Orchestrator.BatchLimit,
		Workers:     c.Orchestrator.Workers,
		GraceWindow: time.Duration(c.Orchestrator.GraceWindowSec) * time.Second,
		LockTimeout: time.Duration(c.Orchestrator.LockTimeoutSec) * time.Second,
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Lock.Mode = "postgres"
	cfg.Lock.Name = "phase_timer_orchestrator"
	cfg.NATS.Enabled = true
	cfg.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Lock.Name == "" {
		cfg.Lock.Name = "phase_timer_orchestrator"
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
