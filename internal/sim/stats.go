package sim

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/lox/traitorsforbots/internal/game"
)

// Sample accumulates one scalar metric across games.
type Sample struct {
	N      int
	Sum    float64
	Sum2   float64
	Values []float64
}

// Add incorporates one observation.
func (s *Sample) Add(v float64) {
	s.N++
	s.Sum += v
	s.Sum2 += v * v
	s.Values = append(s.Values, v)
}

// Mean returns the arithmetic mean of all observations.
func (s *Sample) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// Variance returns the sample variance.
func (s *Sample) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.Sum2 - float64(s.N)*mean*mean) / float64(s.N-1)
}

// StdDev returns the sample standard deviation.
func (s *Sample) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean.
func (s *Sample) StdError() float64 {
	if s.N == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.N))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean.
func (s *Sample) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median observation.
func (s *Sample) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the observation at percentile p (0.0 to 1.0), linearly
// interpolated between neighbours.
func (s *Sample) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Statistics aggregates outcomes across a simulation batch.
type Statistics struct {
	Games int

	Wins    map[game.Role]int
	Reasons map[game.EndReason]int

	Days Sample
	Pot  Sample

	Fallbacks map[game.FallbackReason]int
	Anomalies int
}

// NewStatistics returns an empty aggregate.
func NewStatistics() *Statistics {
	return &Statistics{
		Wins:      make(map[game.Role]int),
		Reasons:   make(map[game.EndReason]int),
		Fallbacks: make(map[game.FallbackReason]int),
	}
}

// Add incorporates one game's result.
func (s *Statistics) Add(r Result) {
	s.Games++
	s.Wins[r.Outcome.Winner]++
	s.Reasons[r.Outcome.Reason]++
	s.Days.Add(float64(r.Outcome.Days))
	s.Pot.Add(float64(r.Outcome.Pot))
	for reason, n := range r.Fallbacks {
		s.Fallbacks[reason] += n
	}
	s.Anomalies += r.Anomalies
}

// WinRate returns the fraction of games won by role.
func (s *Statistics) WinRate(role game.Role) float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins[role]) / float64(s.Games)
}

// FallbackTotal returns the number of fallback decisions across the batch.
func (s *Statistics) FallbackTotal() int {
	total := 0
	for _, n := range s.Fallbacks {
		total += n
	}
	return total
}

// Validate checks the aggregate for internal consistency.
func (s *Statistics) Validate() error {
	if s.Games <= 0 {
		return fmt.Errorf("invalid games count: %d", s.Games)
	}
	wins := 0
	for _, n := range s.Wins {
		wins += n
	}
	if wins != s.Games {
		return fmt.Errorf("wins total (%d) does not match games (%d)", wins, s.Games)
	}
	reasons := 0
	for _, n := range s.Reasons {
		reasons += n
	}
	if reasons != s.Games {
		return fmt.Errorf("reasons total (%d) does not match games (%d)", reasons, s.Games)
	}
	if s.Days.N != s.Games || len(s.Days.Values) != s.Games {
		return fmt.Errorf("day samples (%d) do not match games (%d)", s.Days.N, s.Games)
	}
	if s.Pot.N != s.Games || len(s.Pot.Values) != s.Games {
		return fmt.Errorf("pot samples (%d) do not match games (%d)", s.Pot.N, s.Games)
	}
	return nil
}

// PrintSummary writes a human-readable report of the batch.
func PrintSummary(w io.Writer, s *Statistics) {
	fmt.Fprintf(w, "\n=== SIMULATION RESULTS ===\n")
	fmt.Fprintf(w, "Games played: %d\n", s.Games)
	fmt.Fprintf(w, "Innocent wins: %d (%.1f%%)\n",
		s.Wins[game.RoleInnocent], s.WinRate(game.RoleInnocent)*100)
	fmt.Fprintf(w, "Adversary wins: %d (%.1f%%)\n",
		s.Wins[game.RoleAdversary], s.WinRate(game.RoleAdversary)*100)

	fmt.Fprintf(w, "\n=== GAME LENGTH ===\n")
	low, high := s.Days.ConfidenceInterval95()
	fmt.Fprintf(w, "Mean: %.2f days (95%% CI [%.2f, %.2f])\n", s.Days.Mean(), low, high)
	fmt.Fprintf(w, "Median: %.1f days, std dev: %.2f\n", s.Days.Median(), s.Days.StdDev())
	fmt.Fprintf(w, "Percentiles: P5=%.0f, P95=%.0f\n",
		s.Days.Percentile(0.05), s.Days.Percentile(0.95))

	fmt.Fprintf(w, "\n=== PRIZE POT ===\n")
	fmt.Fprintf(w, "Mean final pot: %.0f (P5=%.0f, P95=%.0f)\n",
		s.Pot.Mean(), s.Pot.Percentile(0.05), s.Pot.Percentile(0.95))

	fmt.Fprintf(w, "\n=== END REASONS ===\n")
	for _, reason := range slices.Sorted(maps.Keys(s.Reasons)) {
		n := s.Reasons[reason]
		fmt.Fprintf(w, "%-24s %d (%.1f%%)\n", reason, n, float64(n)/float64(s.Games)*100)
	}

	fmt.Fprintf(w, "\n=== PROVIDER HEALTH ===\n")
	total := s.FallbackTotal()
	fmt.Fprintf(w, "Fallback decisions: %d (%.3f per game)\n",
		total, float64(total)/float64(s.Games))
	for _, reason := range slices.Sorted(maps.Keys(s.Fallbacks)) {
		fmt.Fprintf(w, "  %-22s %d\n", reason, s.Fallbacks[reason])
	}
	fmt.Fprintf(w, "Anomalies: %d\n", s.Anomalies)
}
