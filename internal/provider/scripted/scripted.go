// Package scripted implements an in-process decision provider driven by a
// contestant's trait profile. It plays a plausible social game from nothing
// but the player view: suspicion scores steer votes and kills, traits steer
// risk appetite, and a private RNG keeps two identical profiles from moving
// in lockstep.
package scripted

import (
	"context"
	rand "math/rand/v2"
	"sync"

	"github.com/lox/traitorsforbots/internal/game"
)

// Provider is one contestant's scripted brain. Each player gets their own
// instance; the mutex serialises calls because the engine may abandon a
// timed-out call whose goroutine is still holding the RNG.
type Provider struct {
	mu     sync.Mutex
	traits game.Traits
	rng    *rand.Rand
}

// New returns a provider for the given trait profile. The RNG must be
// dedicated to this provider; use randutil.Salted with the player ID to keep
// seeded games reproducible.
func New(traits game.Traits, rng *rand.Rand) *Provider {
	return &Provider{traits: traits.Sanitized(), rng: rng}
}

var _ game.DecisionProvider = (*Provider)(nil)

// DecideVote votes for the most suspicious candidate, with bold players
// trusting their read and cautious ones wavering. High-deceit adversaries
// occasionally pile onto the table's second choice to avoid looking
// coordinated.
func (p *Provider) DecideVote(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allies := allySet(view)
	boldness := p.traits.Get(game.TraitBoldness)
	noise := (1 - boldness) * 0.25

	best, second := "", ""
	bestScore, secondScore := -1.0, -1.0
	for _, c := range candidates {
		if allies[c] {
			continue
		}
		score := view.Suspicion[c] + p.rng.Float64()*noise
		if score > bestScore {
			second, secondScore = best, bestScore
			best, bestScore = string(c), score
		} else if score > secondScore {
			second, secondScore = string(c), score
		}
	}
	if best == "" {
		// Every candidate is an ally. Voting for one is still better than
		// a fallback the engine logs against us.
		return candidates[0], nil
	}
	if view.Role == game.RoleAdversary && second != "" &&
		p.rng.Float64() < p.traits.Get(game.TraitDeceit)*0.3 {
		return game.PlayerID(second), nil
	}
	return game.PlayerID(best), nil
}

// DecideKillTarget prefers victims the killer reads as clean: a murdered
// innocent nobody suspected leaves the table chasing shadows. Challenge
// winners attract the knife too, before their tokens matter.
func (p *Provider) DecideKillTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	winner := todaysChallengeWinner(view.Events)
	boldness := p.traits.Get(game.TraitBoldness)

	best := candidates[0]
	bestScore := -1.0
	for _, c := range candidates {
		score := 1 - view.Suspicion[c]
		if c == winner {
			score += 0.25 + boldness*0.25
		}
		if hasProtection(view.Players, c) {
			// A blocked kill burns the night and announces the attempt.
			score -= 0.6
		}
		score += p.rng.Float64() * 0.2
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// DecideRecruitTarget nominates the innocent this adversary suspects least;
// a nominee with conspicuous cover is worth more than a loud one.
func (p *Provider) DecideRecruitTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := candidates[0]
	bestScore := -1.0
	for _, c := range candidates {
		score := (1 - view.Suspicion[c]) + p.rng.Float64()*0.15
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// DecideRecruitment weighs the offer against the profile: deceitful and bold
// players turn, loyalists refuse. Under an ultimatum only the staunchest
// loyalty is worth dying for.
func (p *Provider) DecideRecruitment(ctx context.Context, view game.PlayerView, ultimatum bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	loyalty := p.traits.Get(game.TraitLoyalty)
	if ultimatum {
		return loyalty < 0.85, nil
	}
	accept := p.traits.Get(game.TraitDeceit)*0.55 +
		p.traits.Get(game.TraitBoldness)*0.25 +
		(1-loyalty)*0.20
	return p.rng.Float64() < accept, nil
}

// DecideEndgame votes to stop when nerves outweigh greed. Adversaries mostly
// push on; every extra night is another murder, but a paranoid one takes the
// guaranteed split.
func (p *Provider) DecideEndgame(ctx context.Context, view game.PlayerView) (game.EndgameChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	paranoia := p.traits.Get(game.TraitParanoia)
	boldness := p.traits.Get(game.TraitBoldness)

	var stop float64
	if view.Role == game.RoleAdversary {
		stop = 0.15 + paranoia*0.30
	} else {
		stop = 0.20 + paranoia*0.40 + (1-boldness)*0.25
	}
	if p.rng.Float64() < stop {
		return game.EndgameStop, nil
	}
	return game.EndgameContinue, nil
}

// DecideShareOrSteal resolves the final dilemma from deceit against loyalty.
func (p *Provider) DecideShareOrSteal(ctx context.Context, view game.PlayerView) (game.PayoffChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	steal := p.traits.Get(game.TraitDeceit)*0.70 +
		p.traits.Get(game.TraitBoldness)*0.20 -
		p.traits.Get(game.TraitLoyalty)*0.30
	steal = clampProb(steal)
	if p.rng.Float64() < steal {
		return game.PayoffSteal, nil
	}
	return game.PayoffShare, nil
}

// DecideTokenChoice takes protection when paranoid and the double vote when
// confident enough to spend influence instead of hiding behind a shield.
func (p *Provider) DecideTokenChoice(ctx context.Context, view game.PlayerView, options []game.TokenKind) (game.TokenKind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	paranoia := p.traits.Get(game.TraitParanoia)
	weight := func(k game.TokenKind) float64 {
		switch k {
		case game.TokenProtection:
			return paranoia + (1-p.traits.Get(game.TraitBoldness))*0.3
		case game.TokenDoubleVote:
			return p.traits.Get(game.TraitBoldness)*0.5 + p.traits.Get(game.TraitCharisma)*0.5
		default:
			return 0.5
		}
	}

	best := options[0]
	bestScore := -1.0
	for _, k := range options {
		if s := weight(k) + p.rng.Float64()*0.1; s > bestScore {
			best, bestScore = k, s
		}
	}
	return best, nil
}

// DecideInvestigateTarget spends the reveal on a strong read and otherwise
// holds it. An adversary never wastes it on an ally.
func (p *Provider) DecideInvestigateTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allies := allySet(view)
	var top game.PlayerID
	topScore := 0.0
	for _, c := range candidates {
		if allies[c] {
			continue
		}
		if s := view.Suspicion[c]; s > topScore {
			top, topScore = c, s
		}
	}
	threshold := 0.65 - p.traits.Get(game.TraitParanoia)*0.15
	if top == "" || topScore < threshold {
		return "", nil
	}
	return top, nil
}

// Reflect reads the day's public record and nudges suspicion: vote outcomes
// vindicate or indict the voters, and an exposed adversary clears everyone
// who called it. Shift sizes scale with paranoia.
func (p *Provider) Reflect(ctx context.Context, view game.PlayerView, events []game.Event) ([]game.SuspicionShift, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := 0.03 + p.traits.Get(game.TraitParanoia)*0.09

	var banished game.PlayerID
	banishedAdversary := false
	votedFor := make(map[game.PlayerID]game.PlayerID)
	for _, e := range events {
		switch e.Type {
		case game.EventTypeBallot:
			votedFor[e.Actor] = e.Target
		case game.EventTypeBanishment:
			banished = e.Target
			if role, ok := e.Data["role"].(string); ok {
				banishedAdversary = role == game.RoleAdversary.String()
			}
		}
	}

	var shifts []game.SuspicionShift
	if banished != "" {
		for voter, target := range votedFor {
			if voter == view.You.ID {
				continue
			}
			switch {
			case target == banished && banishedAdversary:
				shifts = append(shifts, game.SuspicionShift{Target: voter, Delta: -step})
			case target != banished && banishedAdversary:
				// Defended an exposed adversary.
				shifts = append(shifts, game.SuspicionShift{Target: voter, Delta: step})
			case target == banished && !banishedAdversary:
				// Led the charge against an innocent.
				shifts = append(shifts, game.SuspicionShift{Target: voter, Delta: step * 0.5})
			}
		}
	}

	// Surviving a murder night unsuspected is itself a little suspicious.
	for _, e := range events {
		if e.Type == game.EventTypeMurder {
			for _, pub := range view.Players {
				if pub.ID != view.You.ID && view.Suspicion[pub.ID] < 0.3 {
					shifts = append(shifts, game.SuspicionShift{Target: pub.ID, Delta: step * 0.3})
				}
			}
			break
		}
	}

	return capShifts(shifts, 6), nil
}

func allySet(view game.PlayerView) map[game.PlayerID]bool {
	if len(view.Allies) == 0 {
		return nil
	}
	m := make(map[game.PlayerID]bool, len(view.Allies))
	for _, a := range view.Allies {
		m[a] = true
	}
	return m
}

func todaysChallengeWinner(events []game.Event) game.PlayerID {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == game.EventTypeChallengeResult {
			return events[i].Actor
		}
	}
	return ""
}

func hasProtection(players []game.PublicPlayer, id game.PlayerID) bool {
	for _, pub := range players {
		if pub.ID == id {
			return pub.Protection
		}
	}
	return false
}

func clampProb(v float64) float64 {
	switch {
	case v < 0.05:
		return 0.05
	case v > 0.95:
		return 0.95
	default:
		return v
	}
}

func capShifts(shifts []game.SuspicionShift, n int) []game.SuspicionShift {
	if len(shifts) <= n {
		return shifts
	}
	return shifts[:n]
}
