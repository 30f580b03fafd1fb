package game

import (
	"context"
	rand "math/rand/v2"
)

// ChallengeScorer produces a player's performance in a daily challenge as a
// value in [0, 1]. Implementations must be deterministic given the RNG.
type ChallengeScorer interface {
	Score(p *Player, day int, difficulty float64, r *rand.Rand) float64
}

// skillScorer is the default scorer: a weighted blend of the day's featured
// skills plus noise, dampened as the difficulty ramps up.
type skillScorer struct{}

func (skillScorer) Score(p *Player, day int, difficulty float64, r *rand.Rand) float64 {
	primary := Skill(day % int(skillCount))
	secondary := Skill((day + 1) % int(skillCount))
	base := 0.45*p.Skills.Get(primary) +
		0.3*p.Skills.Get(secondary) +
		0.25*p.Skills.Get(SkillNerve)
	noise := (r.Float64() - 0.5) * 0.3
	return clampUnit(base*(1.15-0.3*difficulty) + noise)
}

// difficultyCurve ramps challenge difficulty from easy opener to hard
// finale across the scheduled days.
func difficultyCurve(day, maxDays int) float64 {
	if maxDays <= 1 {
		return 0.6
	}
	t := float64(day-1) / float64(maxDays-1)
	return clampUnit(0.35 + 0.5*t)
}

// runChallenge plays the day's challenge: scores everyone, banks the prize
// and settles token awards. Scoring draws from the engine RNG on the
// orchestrator goroutine, so runs replay exactly for a given seed.
func (g *Game) runChallenge(ctx context.Context) {
	g.phase = PhaseChallenge
	alive := g.roster.Alive()
	if len(alive) == 0 {
		return
	}

	difficulty := difficultyCurve(g.day, g.cfg.MaxDays)
	scores := make(map[string]float64, len(alive))
	winner := alive[0]
	best := -1.0
	total := 0.0
	for _, p := range alive {
		s := g.scorer.Score(p, g.day, difficulty, g.rng)
		scores[string(p.ID)] = s
		total += s
		if s > best {
			best = s
			winner = p
		}
	}

	prize := int(total / float64(len(alive)) * float64(g.cfg.ChallengePrize))
	g.pot += prize

	g.appendEvent(Event{
		Phase: PhaseChallenge,
		Type:  EventTypeChallengeResult,
		Actor: winner.ID,
		Data: map[string]any{
			"difficulty": difficulty,
			"scores":     scores,
			"prize":      prize,
			"pot":        g.pot,
		},
	})

	g.awardChallengeTokens(ctx, winner)
}

// awardChallengeTokens offers the day's available tokens to the challenge
// winner. With more than one on offer the winner's provider picks.
func (g *Game) awardChallengeTokens(ctx context.Context, winner *Player) {
	var options []TokenKind
	if g.cfg.ProtectionToken {
		options = append(options, TokenProtection)
	}
	if g.cfg.doubleVoteDay(g.day) {
		options = append(options, TokenDoubleVote)
	}
	if g.cfg.RevealToken && g.day >= g.cfg.RevealMinDay {
		if _, held := g.tokens.Holder(TokenReveal); !held && !winner.Reveal {
			options = append(options, TokenReveal)
		}
	}
	if len(options) == 0 {
		return
	}

	choice := options[0]
	if len(options) > 1 {
		view := g.viewFor(winner)
		res := decide(ctx, g, winner, "token_choice",
			func(ctx context.Context, dp DecisionProvider) (TokenKind, error) {
				return dp.DecideTokenChoice(ctx, view, options)
			},
			func(k TokenKind) bool {
				for _, o := range options {
					if o == k {
						return true
					}
				}
				return false
			},
		)
		if res.ok {
			choice = res.value
		} else {
			choice = options[g.rng.IntN(len(options))]
		}
	}

	displaced, moved := g.tokens.Award(winner, choice)
	data := map[string]any{"token": choice.String()}
	if moved {
		data["displaced"] = string(displaced)
	}

	// Protection and double-vote are mutually exclusive holdings; picking
	// one forfeits the other.
	switch {
	case choice == TokenDoubleVote && winner.Protection:
		g.tokens.Consume(winner, TokenProtection)
		data["forfeited"] = TokenProtection.String()
	case choice == TokenProtection && winner.DoubleVote:
		g.tokens.Consume(winner, TokenDoubleVote)
		data["forfeited"] = TokenDoubleVote.String()
	}
	g.appendEvent(Event{
		Phase:  PhaseChallenge,
		Type:   EventTypeTokenAwarded,
		Target: winner.ID,
		Data:   data,
	})
	g.logger.Debug().
		Int("day", g.day).
		Str("player", string(winner.ID)).
		Str("token", choice.String()).
		Msg("Token awarded")
}
