// Package sim plays many games in parallel and aggregates their outcomes.
// Game i in a batch is seeded base+i, so a batch reproduces exactly for a
// given base seed while every game inside it still plays differently.
package sim

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/persona"
	"github.com/lox/traitorsforbots/internal/provider/scripted"
	"github.com/lox/traitorsforbots/internal/randutil"
)

// Config holds configuration for a simulation batch.
type Config struct {
	Games   int
	Workers int           // 0 means GOMAXPROCS
	Seed    int64         // base seed; game i plays with Seed+i
	Timeout time.Duration // per-game hang protection, 0 disables
	Game    game.Config
	Logger  *log.Logger
}

// Result is the outcome of one simulated game.
type Result struct {
	Seed      int64
	Outcome   game.Outcome
	Fallbacks map[game.FallbackReason]int
	Anomalies int
}

// Runner plays simulation batches.
type Runner struct {
	cfg    Config
	logger *log.Logger
}

// New creates a runner for the given configuration.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run plays the whole batch and returns aggregate statistics. The first
// failing game aborts the batch.
func (r *Runner) Run(ctx context.Context) (*Statistics, error) {
	if r.cfg.Games <= 0 {
		return nil, fmt.Errorf("games must be positive, got %d", r.cfg.Games)
	}

	start := time.Now()
	results := make([]Result, r.cfg.Games)
	var done atomic.Int64
	progressEvery := int64(r.cfg.Games / 10)
	if progressEvery == 0 {
		progressEvery = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Workers)
	for i := range r.cfg.Games {
		eg.Go(func() error {
			seed := r.cfg.Seed + int64(i)
			res, err := r.playGame(ctx, seed)
			if err != nil {
				return fmt.Errorf("game %d (seed %d): %w", i+1, seed, err)
			}
			results[i] = res
			if n := done.Add(1); n%progressEvery == 0 {
				r.logger.Info("simulation progress", "done", n, "games", r.cfg.Games)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats := NewStatistics()
	for _, res := range results {
		stats.Add(res)
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	r.logger.Info("simulation complete",
		"games", stats.Games,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

func (r *Runner) playGame(ctx context.Context, seed int64) (Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cfg := r.cfg.Game
	cfg.Seed = seed
	rng := randutil.New(seed)
	cast := persona.Generate(rng, cfg.Players)

	reg := game.NewRegistry()
	for _, c := range cast {
		reg.Bind(c.ID, scripted.New(c.Traits, randutil.New(rng.Int64())))
	}

	g, err := game.NewGame(cfg, cast,
		game.WithRNG(rng),
		game.WithProviders(reg),
		game.WithGameID(fmt.Sprintf("sim-%d", seed)),
	)
	if err != nil {
		return Result{}, err
	}

	outcome, err := g.Run(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("hang detected after %s: %w", r.cfg.Timeout, err)
		}
		return Result{}, err
	}

	export, err := g.Export()
	if err != nil {
		return Result{}, err
	}

	res := Result{Seed: seed, Outcome: *outcome, Fallbacks: map[game.FallbackReason]int{}}
	for _, ev := range export.Events {
		if ev.Type == game.EventTypeAnomaly {
			res.Anomalies++
		}
		if v, ok := ev.Data["fallback"]; ok {
			if reason, ok := v.(string); ok {
				res.Fallbacks[game.FallbackReason(reason)]++
			}
		}
	}
	return res, nil
}
