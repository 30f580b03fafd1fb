package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lox/traitorsforbots/cmd/traitorsforbots/shared"
	"github.com/lox/traitorsforbots/internal/archive"
	"github.com/lox/traitorsforbots/internal/randutil"
	"github.com/lox/traitorsforbots/internal/server"
)

// ServeCmd hosts games for remote agents. Configuration reads from
// TRAITORS_* environment variables; flags override the environment.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides TRAITORS_ADDR)"`
	Archive string `help:"Persist completed games to this sqlite archive"`
	Seed    *int64 `help:"Deterministic seed for the whole hosting session"`
	LogJSON bool   `help:"Output JSON logs instead of console format"`
	Debug   bool   `help:"Enable debug logging"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)
	if c.LogJSON {
		logger = shared.SetupStructuredLogger(c.Debug)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}

	seed := cfg.Seed
	if seed != 0 {
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		seed = time.Now().UnixNano()
		logger.Info().Int64("seed", seed).Msg("Using random seed")
	}
	rng := randutil.New(seed)

	opts := []server.Option{server.WithConfig(cfg)}
	if c.Archive != "" {
		store, err := archive.Open(c.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithArchive(store))
		logger.Info().Str("path", c.Archive).Msg("Archiving completed games")
	}

	s := server.NewServer(logger, rng, opts...)

	logger.Info().
		Str("address", cfg.Addr).
		Int("players", cfg.Players).
		Int("adversaries", cfg.Adversaries).
		Int("max_days", cfg.MaxDays).
		Int("min_agents", cfg.MinAgents).
		Bool("fill_scripted", cfg.FillScripted).
		Dur("decision_timeout", cfg.DecisionTimeout).
		Int("game_limit", cfg.GameLimit).
		Msg("Starting TraitorsForBots server")

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
	case <-s.GameLimitReached():
		logger.Info().Int64("games", s.GamesCompleted()).Msg("Game limit reached, shutting down")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
