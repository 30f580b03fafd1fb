package sim

import (
	"context"
	"reflect"
	"testing"

	"github.com/lox/traitorsforbots/internal/game"
)

func batchConfig(games int, seed int64) Config {
	gcfg := game.DefaultConfig()
	gcfg.Players = 6
	gcfg.Adversaries = 2
	gcfg.MaxDays = 4
	return Config{
		Games:   games,
		Workers: 3,
		Seed:    seed,
		Game:    gcfg,
	}
}

func TestRunnerPlaysBatch(t *testing.T) {
	t.Parallel()

	stats, err := New(batchConfig(6, 21)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if stats.Games != 6 {
		t.Fatalf("games = %d, want 6", stats.Games)
	}
	wins := stats.Wins[game.RoleInnocent] + stats.Wins[game.RoleAdversary]
	if wins != 6 {
		t.Errorf("wins = %v", stats.Wins)
	}
	for _, days := range stats.Days.Values {
		if days < 1 || days > 4 {
			t.Errorf("day count %f outside [1, 4]", days)
		}
	}
}

func TestRunnerIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	first, err := New(batchConfig(5, 99)).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := New(batchConfig(5, 99)).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same base seed diverged:\n%+v\n%+v", first, second)
	}
}

func TestRunnerDifferentSeedsDiverge(t *testing.T) {
	t.Parallel()

	first, err := New(batchConfig(5, 1)).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := New(batchConfig(5, 5000)).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if reflect.DeepEqual(first.Days.Values, second.Days.Values) &&
		reflect.DeepEqual(first.Wins, second.Wins) &&
		reflect.DeepEqual(first.Pot.Values, second.Pot.Values) {
		t.Error("different base seeds played identical batches")
	}
}

func TestRunnerRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	if _, err := New(batchConfig(0, 1)).Run(context.Background()); err == nil {
		t.Fatal("expected an error for zero games")
	}
}

func TestRunnerRejectsBadGameConfig(t *testing.T) {
	t.Parallel()

	cfg := batchConfig(2, 1)
	cfg.Game.Players = 2
	if _, err := New(cfg).Run(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid game config")
	}
}

func TestRunnerHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(batchConfig(4, 7)).Run(ctx); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
