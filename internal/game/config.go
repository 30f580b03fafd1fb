package game

import (
	"fmt"
	"time"
)

// Config holds every tunable for one game. Validate is called by NewGame;
// a bad config is surfaced before any player decision runs.
type Config struct {
	Players     int `json:"players"`
	Adversaries int `json:"adversaries"`
	MaxDays     int `json:"max_days"`

	// TieBreak selects how deadlocked banishment votes resolve.
	TieBreak TieBreak `json:"tie_break"`

	// DecisionTimeout bounds every provider call. On expiry the engine
	// substitutes a uniformly random valid choice.
	DecisionTimeout time.Duration `json:"decision_timeout"`

	// Recruitment lets adversaries replace banished teammates.
	Recruitment bool `json:"recruitment"`

	// ProtectionToken enables the night-kill shield as a challenge reward.
	ProtectionToken bool `json:"protection_token"`

	// DoubleVoteDays lists the days whose challenge also offers the
	// double-vote token.
	DoubleVoteDays []int `json:"double_vote_days,omitempty"`

	// RevealToken enables the one-shot role investigation, offered to
	// challenge winners from RevealMinDay while no living player holds one.
	RevealToken  bool `json:"reveal_token"`
	RevealMinDay int  `json:"reveal_min_day"`

	// BiasedArrivals delays breakfast arrivals of players the adversaries
	// shortlisted overnight, feeding the table's paranoia.
	BiasedArrivals bool `json:"biased_arrivals"`

	// EndgameThreshold is the living-player count at or below which each
	// banishment vote is preceded by a unanimous stop vote. Zero disables.
	EndgameThreshold int `json:"endgame_threshold"`

	// RestrictedKillMargin switches night kills to a pre-selected
	// shortlist once murders outnumber banishments by this margin.
	// Zero disables the restriction.
	RestrictedKillMargin int `json:"restricted_kill_margin"`

	// ChallengePrize is the pot contribution of a perfect challenge day.
	ChallengePrize int `json:"challenge_prize"`

	// Seed drives all engine randomness. Zero means derive from the clock.
	Seed int64 `json:"seed"`
}

// DefaultConfig returns a playable baseline roughly matching a televised
// season compressed to ten players.
func DefaultConfig() Config {
	return Config{
		Players:              10,
		Adversaries:          2,
		MaxDays:              12,
		TieBreak:             TieBreakRevote,
		DecisionTimeout:      10 * time.Second,
		Recruitment:          true,
		ProtectionToken:      true,
		DoubleVoteDays:       []int{4},
		RevealToken:          true,
		RevealMinDay:         5,
		BiasedArrivals:       true,
		EndgameThreshold:     4,
		RestrictedKillMargin: 3,
		ChallengePrize:       1000,
	}
}

// Validate checks the config for contradictions. The first problem found is
// returned; a non-nil error means the game must not start.
func (c Config) Validate() error {
	if c.Players < 4 {
		return fmt.Errorf("players must be at least 4, got %d", c.Players)
	}
	if c.Adversaries < 1 {
		return fmt.Errorf("adversaries must be at least 1, got %d", c.Adversaries)
	}
	if c.Adversaries >= c.Players {
		return fmt.Errorf("adversaries (%d) must be fewer than players (%d)", c.Adversaries, c.Players)
	}
	if c.MaxDays < 1 {
		return fmt.Errorf("max_days must be at least 1, got %d", c.MaxDays)
	}
	if c.DecisionTimeout <= 0 {
		return fmt.Errorf("decision_timeout must be positive, got %s", c.DecisionTimeout)
	}
	switch c.TieBreak {
	case TieBreakRandom, TieBreakRevote, TieBreakCountback:
	default:
		return fmt.Errorf("unknown tie_break strategy %q", c.TieBreak)
	}
	for _, day := range c.DoubleVoteDays {
		if day < 1 {
			return fmt.Errorf("double_vote_days entries must be >= 1, got %d", day)
		}
	}
	if c.RevealToken && c.RevealMinDay < 1 {
		return fmt.Errorf("reveal_min_day must be >= 1 when the reveal token is enabled, got %d", c.RevealMinDay)
	}
	if c.EndgameThreshold < 0 {
		return fmt.Errorf("endgame_threshold must be >= 0, got %d", c.EndgameThreshold)
	}
	if c.RestrictedKillMargin < 0 {
		return fmt.Errorf("restricted_kill_margin must be >= 0, got %d", c.RestrictedKillMargin)
	}
	if c.ChallengePrize < 0 {
		return fmt.Errorf("challenge_prize must be >= 0, got %d", c.ChallengePrize)
	}
	return nil
}

// doubleVoteDay reports whether day's challenge offers the double-vote token.
func (c Config) doubleVoteDay(day int) bool {
	for _, d := range c.DoubleVoteDays {
		if d == day {
			return true
		}
	}
	return false
}
