package game

import (
	"context"
)

// runEndgameVote replaces the banishment vote once the table is small
// enough. Every living player openly declares STOP or CONTINUE; the game
// ends only on a unanimous STOP. Returns true when the game ended.
func (g *Game) runEndgameVote(ctx context.Context) bool {
	g.phase = PhaseEndgame
	alive := g.roster.Alive()
	if len(alive) == 0 {
		return false
	}

	results := fanOut(ctx, alive, func(ctx context.Context, p *Player) decided[EndgameChoice] {
		view := g.viewFor(p)
		return decide(ctx, g, p, "endgame",
			func(ctx context.Context, dp DecisionProvider) (EndgameChoice, error) {
				return dp.DecideEndgame(ctx, view)
			},
			func(c EndgameChoice) bool { return c == EndgameStop || c == EndgameContinue },
		)
	})

	stops := 0
	for i, p := range alive {
		choice := EndgameChoice("")
		var fallback FallbackReason
		if results[i].ok {
			choice = results[i].value
		} else {
			fallback = results[i].reason
			choice = EndgameContinue
			if g.rng.IntN(2) == 0 {
				choice = EndgameStop
			}
		}
		if choice == EndgameStop {
			stops++
		}
		data := map[string]any{"choice": string(choice)}
		if fallback != "" {
			data["fallback"] = string(fallback)
		}
		g.appendEvent(Event{
			Type:  EventTypeEndgameVote,
			Actor: p.ID,
			Data:  data,
		})
	}

	stopped := stops == len(alive)
	g.appendEvent(Event{
		Type: EventTypeEndgameResult,
		Data: map[string]any{
			"stop":     stops,
			"continue": len(alive) - stops,
			"stopped":  stopped,
		},
	})
	if !stopped {
		return false
	}

	winner := RoleInnocent
	if g.roster.CountAlive(RoleAdversary) > 0 {
		winner = RoleAdversary
	}
	g.setOutcome(winner, EndReasonUnanimousStop)
	return true
}

// settlePot distributes the prize pot into the outcome. An adversary win
// that comes down to exactly two of them with no innocents left is settled
// by the one-shot SHARE/STEAL dilemma; every other win splits the pot
// evenly among the surviving winners.
func (g *Game) settlePot(ctx context.Context) {
	if g.outcome == nil {
		return
	}
	g.outcome.Pot = g.pot
	if g.pot <= 0 {
		return
	}

	winners := g.roster.AliveByRole(g.outcome.Winner)
	if g.outcome.Winner == RoleAdversary &&
		len(winners) == 2 &&
		g.roster.CountAlive(RoleInnocent) == 0 {
		g.outcome.PotSplit = g.runShareSteal(ctx, winners[0], winners[1])
		return
	}

	if len(winners) == 0 {
		// Nobody left standing on the winning side; the pot goes unclaimed.
		return
	}
	split := make(map[PlayerID]int, len(winners))
	share := g.pot / len(winners)
	for _, p := range winners {
		split[p.ID] = share
	}
	g.outcome.PotSplit = split
	g.appendEvent(Event{
		Type: EventTypePotSplit,
		Data: map[string]any{
			"burned": false,
			"split":  splitData(split),
		},
	})
}

// runShareSteal plays the final dilemma between the last two adversaries.
// Mutual SHARE halves the pot, mutual STEAL burns it, and a lone stealer
// takes everything.
func (g *Game) runShareSteal(ctx context.Context, a, b *Player) map[PlayerID]int {
	g.phase = PhaseEndgame
	pair := []*Player{a, b}

	results := fanOut(ctx, pair, func(ctx context.Context, p *Player) decided[PayoffChoice] {
		view := g.viewFor(p)
		return decide(ctx, g, p, "share_steal",
			func(ctx context.Context, dp DecisionProvider) (PayoffChoice, error) {
				return dp.DecideShareOrSteal(ctx, view)
			},
			func(c PayoffChoice) bool { return c == PayoffShare || c == PayoffSteal },
		)
	})

	choices := make([]PayoffChoice, 2)
	for i, p := range pair {
		var fallback FallbackReason
		if results[i].ok {
			choices[i] = results[i].value
		} else {
			fallback = results[i].reason
			choices[i] = PayoffShare
			if g.rng.IntN(2) == 0 {
				choices[i] = PayoffSteal
			}
		}
		data := map[string]any{"choice": string(choices[i])}
		if fallback != "" {
			data["fallback"] = string(fallback)
		}
		g.appendEvent(Event{
			Type:  EventTypePayoffChoice,
			Actor: p.ID,
			Data:  data,
		})
	}

	split := make(map[PlayerID]int)
	switch {
	case choices[0] == PayoffShare && choices[1] == PayoffShare:
		split[a.ID] = g.pot / 2
		split[b.ID] = g.pot / 2
	case choices[0] == PayoffSteal && choices[1] == PayoffSteal:
		// Mutual steal burns the pot.
	case choices[0] == PayoffSteal:
		split[a.ID] = g.pot
	default:
		split[b.ID] = g.pot
	}

	g.appendEvent(Event{
		Type: EventTypePotSplit,
		Data: map[string]any{
			"burned": len(split) == 0,
			"split":  splitData(split),
		},
	})
	return split
}

func splitData(split map[PlayerID]int) map[string]int {
	out := make(map[string]int, len(split))
	for id, n := range split {
		out[string(id)] = n
	}
	return out
}
