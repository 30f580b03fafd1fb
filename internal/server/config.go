package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lox/traitorsforbots/internal/game"
)

// Config holds the host's tunables. Every field reads from a TRAITORS_
// environment variable so containerised deployments need no flags.
type Config struct {
	Addr string `env:"TRAITORS_ADDR" envDefault:":8080"`

	Players         int           `env:"TRAITORS_PLAYERS"          envDefault:"10"`
	Adversaries     int           `env:"TRAITORS_ADVERSARIES"      envDefault:"2"`
	MaxDays         int           `env:"TRAITORS_MAX_DAYS"         envDefault:"12"`
	TieBreak        string        `env:"TRAITORS_TIE_BREAK"        envDefault:"revote"`
	DecisionTimeout time.Duration `env:"TRAITORS_DECISION_TIMEOUT" envDefault:"10s"`

	// MinAgents is how many connected agents a game waits for. The
	// remaining seats are cast from scripted house personalities when
	// FillScripted is on.
	MinAgents    int  `env:"TRAITORS_MIN_AGENTS"    envDefault:"1"`
	FillScripted bool `env:"TRAITORS_FILL_SCRIPTED" envDefault:"true"`

	// GameLimit stops hosting after this many completed games. Zero hosts
	// forever.
	GameLimit int `env:"TRAITORS_GAME_LIMIT" envDefault:"0"`

	// Seed makes the whole hosting session deterministic. Zero derives
	// from the clock.
	Seed int64 `env:"TRAITORS_SEED" envDefault:"0"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Players:         10,
		Adversaries:     2,
		MaxDays:         12,
		TieBreak:        string(game.TieBreakRevote),
		DecisionTimeout: 10 * time.Second,
		MinAgents:       1,
		FillScripted:    true,
	}
}

// LoadConfig reads the environment on top of the defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks host-level settings. Game-level settings are validated
// again by the engine at game start.
func (c Config) Validate() error {
	if c.MinAgents < 1 {
		return fmt.Errorf("min agents must be at least 1, got %d", c.MinAgents)
	}
	if c.MinAgents > c.Players {
		return fmt.Errorf("min agents %d exceeds players %d", c.MinAgents, c.Players)
	}
	if !c.FillScripted && c.MinAgents < c.Players {
		return fmt.Errorf("without scripted fill every seat needs an agent: set min agents to %d", c.Players)
	}
	if c.GameLimit < 0 {
		return fmt.Errorf("game limit must not be negative, got %d", c.GameLimit)
	}
	return c.GameConfig().Validate()
}

// GameConfig projects the host settings onto an engine config.
func (c Config) GameConfig() game.Config {
	gcfg := game.DefaultConfig()
	gcfg.Players = c.Players
	gcfg.Adversaries = c.Adversaries
	gcfg.MaxDays = c.MaxDays
	gcfg.TieBreak = game.TieBreak(c.TieBreak)
	gcfg.DecisionTimeout = c.DecisionTimeout
	return gcfg
}

// seatCount reports how many waiting agents the next game should seat, or
// zero when the lobby cannot start one yet. A full house starts
// immediately; a partial one starts once MinAgents have gathered and
// scripted fill is on.
func (c Config) seatCount(waiting int) int {
	switch {
	case waiting >= c.Players:
		return c.Players
	case c.FillScripted && waiting >= c.MinAgents:
		return waiting
	default:
		return 0
	}
}
