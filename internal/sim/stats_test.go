package sim

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/lox/traitorsforbots/internal/game"
)

func TestSample_Empty(t *testing.T) {
	t.Parallel()

	var s Sample
	if s.Mean() != 0 || s.Variance() != 0 || s.StdDev() != 0 || s.StdError() != 0 {
		t.Errorf("empty sample moments: mean=%f var=%f", s.Mean(), s.Variance())
	}
	if s.Median() != 0 || s.Percentile(0.5) != 0 {
		t.Errorf("empty sample quantiles: median=%f", s.Median())
	}
}

func TestSample_SingleValue(t *testing.T) {
	t.Parallel()

	var s Sample
	s.Add(7)
	if s.N != 1 || s.Mean() != 7 || s.Median() != 7 {
		t.Errorf("sample = %+v", s)
	}
	if s.Variance() != 0 || s.StdDev() != 0 {
		t.Errorf("single value should have zero spread, got var=%f", s.Variance())
	}
}

func TestSample_MultipleValues(t *testing.T) {
	t.Parallel()

	var s Sample
	for _, v := range []float64{4, 6, 8, 10} {
		s.Add(v)
	}

	if s.Mean() != 7 {
		t.Errorf("mean = %f, want 7", s.Mean())
	}
	if s.Median() != 7 {
		t.Errorf("median = %f, want 7", s.Median())
	}
	wantVar := 20.0 / 3.0
	if math.Abs(s.Variance()-wantVar) > 1e-9 {
		t.Errorf("variance = %f, want %f", s.Variance(), wantVar)
	}
	low, high := s.ConfidenceInterval95()
	if low >= s.Mean() || high <= s.Mean() {
		t.Errorf("confidence interval [%f, %f] does not bracket the mean", low, high)
	}
}

func TestSample_PercentileInterpolates(t *testing.T) {
	t.Parallel()

	var s Sample
	for _, v := range []float64{1, 2, 3, 4, 5} {
		s.Add(v)
	}

	if got := s.Percentile(0); got != 1 {
		t.Errorf("P0 = %f, want 1", got)
	}
	if got := s.Percentile(1); got != 5 {
		t.Errorf("P100 = %f, want 5", got)
	}
	if got := s.Percentile(0.25); got != 2 {
		t.Errorf("P25 = %f, want 2", got)
	}
	if got := s.Percentile(0.1); math.Abs(got-1.4) > 1e-9 {
		t.Errorf("P10 = %f, want 1.4", got)
	}
}

func TestStatistics_Add(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	stats.Add(Result{
		Seed:    1,
		Outcome: game.Outcome{Winner: game.RoleInnocent, Reason: game.EndReasonAdversariesEliminated, Days: 5, Pot: 3000},
		Fallbacks: map[game.FallbackReason]int{
			game.FallbackTimeout: 2,
		},
		Anomalies: 1,
	})
	stats.Add(Result{
		Seed:    2,
		Outcome: game.Outcome{Winner: game.RoleAdversary, Reason: game.EndReasonAdversaryParity, Days: 7, Pot: 4200},
		Fallbacks: map[game.FallbackReason]int{
			game.FallbackTimeout:       1,
			game.FallbackProviderError: 3,
		},
	})

	if stats.Games != 2 {
		t.Fatalf("games = %d, want 2", stats.Games)
	}
	if stats.Wins[game.RoleInnocent] != 1 || stats.Wins[game.RoleAdversary] != 1 {
		t.Errorf("wins = %v", stats.Wins)
	}
	if stats.WinRate(game.RoleInnocent) != 0.5 {
		t.Errorf("innocent win rate = %f", stats.WinRate(game.RoleInnocent))
	}
	if stats.Days.Mean() != 6 {
		t.Errorf("mean days = %f, want 6", stats.Days.Mean())
	}
	if stats.Pot.Mean() != 3600 {
		t.Errorf("mean pot = %f, want 3600", stats.Pot.Mean())
	}
	if stats.Fallbacks[game.FallbackTimeout] != 3 || stats.FallbackTotal() != 6 {
		t.Errorf("fallbacks = %v", stats.Fallbacks)
	}
	if stats.Anomalies != 1 {
		t.Errorf("anomalies = %d", stats.Anomalies)
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestStatistics_ValidateCatchesDrift(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	if err := stats.Validate(); err == nil {
		t.Error("empty statistics should not validate")
	}

	stats.Add(Result{Outcome: game.Outcome{Winner: game.RoleInnocent, Reason: game.EndReasonMaxDays, Days: 3}})
	stats.Wins[game.RoleAdversary]++ // corrupt the ledger
	if err := stats.Validate(); err == nil {
		t.Error("expected a wins mismatch error")
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	stats.Add(Result{Outcome: game.Outcome{Winner: game.RoleInnocent, Reason: game.EndReasonAdversariesEliminated, Days: 5, Pot: 3000}})
	stats.Add(Result{Outcome: game.Outcome{Winner: game.RoleAdversary, Reason: game.EndReasonMaxDays, Days: 8, Pot: 5000}})

	var buf bytes.Buffer
	PrintSummary(&buf, stats)
	out := buf.String()

	for _, want := range []string{
		"Games played: 2",
		"Innocent wins: 1 (50.0%)",
		"Adversary wins: 1 (50.0%)",
		"adversaries_eliminated",
		"max_days",
		"Fallback decisions: 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
