package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/randutil"
	"github.com/lox/traitorsforbots/sdk/agent"
	"github.com/lox/traitorsforbots/sdk/bots/house"
)

// AgentCmd runs the built-in house agent against a server, mostly for
// smoke-testing hosts and filling lobbies.
type AgentCmd struct {
	URL      string `default:"ws://localhost:8080/ws" help:"Server websocket URL"`
	Name     string `help:"Agent name (generated if omitted)"`
	Game     string `default:"default" help:"Game lobby to join"`
	Seed     *int64 `help:"Deterministic RNG seed for the house strategy"`
	LogLevel string `default:"info" help:"Log level (debug|info|warn|error)"`
	LogJSON  bool   `help:"Output JSON logs instead of console format"`
}

func (c *AgentCmd) Run() error {
	logger := createAgentLogger(c.LogLevel, c.LogJSON)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	rng := randutil.New(seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- agent.Run(
			ctx,
			house.New(rng),
			c.URL,
			c.Name,
			agent.WithPrefix("house"),
			agent.WithGame(c.Game),
			agent.WithLogger(logger),
			agent.WithRNG(rng),
			agent.WithEnvConfig(),
		)
	}()

	select {
	case <-interrupt:
		cancel()
		return nil
	case err := <-runErr:
		return err
	}
}

func createAgentLogger(level string, jsonFormat bool) zerolog.Logger {
	var zLevel zerolog.Level
	switch level {
	case "debug":
		zLevel = zerolog.DebugLevel
	case "info":
		zLevel = zerolog.InfoLevel
	case "warn":
		zLevel = zerolog.WarnLevel
	case "error":
		zLevel = zerolog.ErrorLevel
	default:
		zLevel = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if jsonFormat {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger.Level(zLevel).With().Timestamp().Logger()
}
