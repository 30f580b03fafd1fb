package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/traitorsforbots/cmd/traitorsforbots/shared"
	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/sim"
)

// SimulateCmd plays a batch of all-scripted games in parallel and prints
// aggregate statistics. Game i is seeded base+i, so a seeded batch
// reproduces exactly.
type SimulateCmd struct {
	Games       int           `default:"1000" help:"Number of games to play"`
	Workers     int           `help:"Parallel workers (default GOMAXPROCS)"`
	Players     *int          `help:"Number of contestants"`
	Adversaries *int          `help:"Number of starting adversaries"`
	MaxDays     *int          `help:"Day cap before a game ends in a split"`
	TieBreak    *string       `help:"Tie-break policy (random|revote|countback)"`
	Seed        int64         `default:"0" help:"Base RNG seed (0 for random)"`
	Timeout     time.Duration `default:"30s" help:"Per-game hang guard (0 disables)"`
	Verbose     bool          `help:"Log per-batch progress at debug level"`
}

func (c *SimulateCmd) Run() error {
	level := log.InfoLevel
	if c.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, ReportTimestamp: true})

	cfg := game.DefaultConfig()
	if c.Players != nil {
		cfg.Players = *c.Players
	}
	if c.Adversaries != nil {
		cfg.Adversaries = *c.Adversaries
	}
	if c.MaxDays != nil {
		cfg.MaxDays = *c.MaxDays
	}
	if c.TieBreak != nil {
		cfg.TieBreak = game.TieBreak(*c.TieBreak)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("Using random base seed", "seed", seed)
	} else {
		logger.Info("Using deterministic base seed", "seed", seed)
	}

	runner := sim.New(sim.Config{
		Games:   c.Games,
		Workers: c.Workers,
		Seed:    seed,
		Timeout: c.Timeout,
		Game:    cfg,
		Logger:  logger,
	})

	ctx := shared.SetupSignalHandler()
	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	sim.PrintSummary(os.Stdout, stats)
	return nil
}
