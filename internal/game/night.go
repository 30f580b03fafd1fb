package game

import (
	"context"
)

// runNight has the surviving adversaries pick a victim. Their individual
// choices are hidden ballots; the plurality target dies unless protected.
func (g *Game) runNight(ctx context.Context) {
	g.phase = PhaseNight
	g.nightDiscussion = nil

	killers := g.roster.AliveByRole(RoleAdversary)
	if len(killers) == 0 {
		return
	}
	innocents := g.roster.AliveByRole(RoleInnocent)
	if len(innocents) == 0 {
		return
	}

	candidates := make([]PlayerID, len(innocents))
	for i, p := range innocents {
		candidates[i] = p.ID
	}

	restricted := false
	if g.restrictedNight() && len(candidates) > 2 {
		candidates = g.shortlist(candidates)
		restricted = true
	}

	ballots := g.collectKillBallots(ctx, killers, candidates)
	for _, b := range ballots {
		e := Event{
			Type:   EventTypeNightBallot,
			Actor:  b.Voter,
			Target: b.Target,
			Hidden: true,
		}
		if b.Fallback != "" {
			e.Data = map[string]any{"fallback": string(b.Fallback)}
		}
		g.appendEvent(e)
	}

	tied, _ := leaders(tallyBallots(ballots))
	if len(tied) == 0 {
		g.anomaly("night phase produced no kill ballots")
		return
	}
	victim := tied[0]
	if len(tied) > 1 {
		victim = g.pick(tied)
	}

	// The morning arrival bias keys off who was talked about overnight.
	if restricted {
		g.nightDiscussion = candidates
	} else {
		g.nightDiscussion = ballotTargets(ballots)
	}

	p, ok := g.roster.Get(victim)
	if !ok || !p.Alive || p.Role != RoleInnocent {
		g.anomaly("night kill selected an invalid victim")
		return
	}

	// Protection is checked before any death is applied.
	if g.tokens.BlockKill(p) {
		g.lastBlocked = p.ID
		g.appendEvent(Event{
			Type:   EventTypeKillBlocked,
			Target: p.ID,
			Data:   map[string]any{"token": TokenProtection.String()},
		})
		g.logger.Info().
			Int("day", g.day).
			Str("player", string(p.ID)).
			Msg("Night kill blocked by protection token")
		return
	}

	g.lastVictim = p.ID
	g.murders++
	g.eliminate(p, EventTypeMurder, nil)
}

// restrictedNight reports whether the adversaries have been efficient
// enough to trigger the pre-selected shortlist.
func (g *Game) restrictedNight() bool {
	return g.cfg.RestrictedKillMargin > 0 &&
		g.murders-g.banishments >= g.cfg.RestrictedKillMargin
}

// shortlist pre-selects three or four legal targets for a restricted night.
func (g *Game) shortlist(candidates []PlayerID) []PlayerID {
	n := 3 + g.rng.IntN(2)
	if n > len(candidates) {
		n = len(candidates)
	}
	picked := make([]PlayerID, 0, n)
	for _, i := range g.rng.Perm(len(candidates))[:n] {
		picked = append(picked, candidates[i])
	}
	return sortedIDs(picked)
}

// collectKillBallots fans the kill decision out to every adversary. Every
// killer sees the same candidate list; fallback targets are drawn serially
// after the join.
func (g *Game) collectKillBallots(ctx context.Context, killers []*Player, candidates []PlayerID) []Ballot {
	results := fanOut(ctx, killers, func(ctx context.Context, p *Player) decided[PlayerID] {
		view := g.viewFor(p)
		return decide(ctx, g, p, "night_kill",
			func(ctx context.Context, dp DecisionProvider) (PlayerID, error) {
				return dp.DecideKillTarget(ctx, view, candidates)
			},
			func(id PlayerID) bool { return containsID(candidates, id) },
		)
	})

	ballots := make([]Ballot, len(killers))
	for i, p := range killers {
		b := Ballot{Voter: p.ID, Weight: 1}
		if results[i].ok {
			b.Target = results[i].value
		} else {
			b.Target = g.pick(candidates)
			b.Fallback = results[i].reason
		}
		ballots[i] = b
	}
	return ballots
}

// ballotTargets returns the distinct targets in ballot order.
func ballotTargets(ballots []Ballot) []PlayerID {
	var out []PlayerID
	for _, b := range ballots {
		if !containsID(out, b.Target) {
			out = append(out, b.Target)
		}
	}
	return out
}
