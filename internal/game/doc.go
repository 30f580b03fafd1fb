// Package game implements the engine for a hidden-role social deduction
// game played over a sequence of in-game days.
//
// The main type is Game, which owns all mutable state for one run: the
// roster, the suspicion ledger, tokens, the vote history and the event
// log. A single goroutine drives Run from casting to pot settlement;
// player decisions are fanned out to DecisionProvider implementations and
// joined before any state changes, so providers only ever see immutable
// snapshots.
//
// # Basic Usage
//
// Create and run a game with the default configuration:
//
//	reg := game.NewRegistry()
//	// Bind a DecisionProvider per contestant...
//	g, err := game.NewGame(game.DefaultConfig(), cast, game.WithProviders(reg))
//	if err != nil {
//	    return err
//	}
//	outcome, err := g.Run(ctx)
//
// # Deterministic Replay
//
// All randomness flows from a single seed. Fixing Config.Seed (or
// injecting a source with WithRNG) makes a run reproducible event for
// event, which the simulator relies on:
//
//	cfg := game.DefaultConfig()
//	cfg.Seed = 42
//
// Decision timeouts run on a quartz.Clock; tests inject a mock via
// WithClock and advance it manually.
//
// # Architecture
//
// Game delegates to specialized components:
//   - Roster: fixed casting-order player set, role and liveness queries
//   - Ledger: pairwise suspicion scores, clamped to [0, 1]
//   - TokenManager: the protection, double-vote and reveal rewards
//   - Log: the append-only event record fanned out to Sinks
//   - Registry: per-player DecisionProvider bindings
//
// Days run Reveal, Challenge, Social, Vote and Night phases in order;
// once the table shrinks to the endgame threshold the vote phase is
// replaced by the stop-vote sub-game. Every provider fault, timeout or
// illegal answer is replaced by a uniform random valid choice so a game,
// once started, always reaches an outcome.
package game
