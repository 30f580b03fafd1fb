package agent

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/randutil"
)

type runConfig struct {
	logger zerolog.Logger
	rng    *rand.Rand
	prefix string
	game   string
	useEnv bool
}

// RunOption adjusts how Run sets an agent up.
type RunOption func(*runConfig)

// WithLogger replaces the default stderr console logger.
func WithLogger(logger zerolog.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// WithRNG replaces the generator used for generated agent names.
func WithRNG(rng *rand.Rand) RunOption {
	return func(c *runConfig) { c.rng = rng }
}

// WithPrefix sets the prefix for generated agent names.
func WithPrefix(prefix string) RunOption {
	return func(c *runConfig) { c.prefix = prefix }
}

// WithGame asks the host to seat the agent in a named game.
func WithGame(game string) RunOption {
	return func(c *runConfig) { c.game = game }
}

// WithEnvConfig lets the environment override the server URL, agent name,
// game and seed. See envOverrides for the variable names.
func WithEnvConfig() RunOption {
	return func(c *runConfig) { c.useEnv = true }
}

type envOverrides struct {
	Server string `env:"TRAITORS_SERVER"`
	Name   string `env:"TRAITORS_AGENT_NAME"`
	Game   string `env:"TRAITORS_GAME"`
	Seed   int64  `env:"TRAITORS_SEED"`
}

// Run connects handler to a host and plays games until the context is
// cancelled, the connection drops, or OnGameEnd returns io.EOF. An empty
// name gets a generated one like "agent-0413".
func Run(ctx context.Context, handler Handler, serverURL, name string, opts ...RunOption) error {
	cfg := runConfig{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger(),
		prefix: "agent",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.useEnv {
		var overrides envOverrides
		if err := env.Parse(&overrides); err != nil {
			return fmt.Errorf("parse environment: %w", err)
		}
		if overrides.Server != "" {
			serverURL = overrides.Server
		}
		if overrides.Name != "" {
			name = overrides.Name
		}
		if overrides.Game != "" {
			cfg.game = overrides.Game
		}
		if overrides.Seed != 0 && cfg.rng == nil {
			cfg.rng = randutil.New(overrides.Seed)
		}
	}
	if serverURL == "" {
		return errors.New("server URL is required")
	}
	if cfg.rng == nil {
		cfg.rng = randutil.New(time.Now().UnixNano())
	}
	if name == "" {
		name = fmt.Sprintf("%s-%04d", cfg.prefix, cfg.rng.IntN(10000))
	}

	a := New(name, handler, cfg.logger)
	a.game = cfg.game
	if err := a.Connect(serverURL); err != nil {
		return err
	}
	return a.Run(ctx)
}
