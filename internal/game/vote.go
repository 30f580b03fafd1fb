package game

import (
	"context"
	"sort"
)

// TieBreak selects how a deadlocked banishment vote is resolved.
type TieBreak string

const (
	// TieBreakRandom banishes a uniformly random member of the tied set.
	TieBreakRandom TieBreak = "random"
	// TieBreakRevote runs one more round restricted to the tied
	// candidates, voted on by everyone else. A second deadlock, or a tie
	// involving every voter, falls back to random.
	TieBreakRevote TieBreak = "revote"
	// TieBreakCountback banishes the tied candidate with the most votes
	// received across all previous completed rounds, then random.
	TieBreakCountback TieBreak = "countback"
)

// Ballot is one cast vote. Weight is 2 when the voter held the double-vote
// token during the round, otherwise 1. Fallback is set when the engine
// substituted a random choice for the voter.
type Ballot struct {
	Voter    PlayerID       `json:"voter"`
	Target   PlayerID       `json:"target"`
	Weight   int            `json:"weight"`
	Fallback FallbackReason `json:"fallback,omitempty"`
}

// VoteRecord maps voter to target for one completed round.
type VoteRecord map[PlayerID]PlayerID

// voteRound is a completed round retained for countback and export.
type voteRound struct {
	Day     int
	Round   int
	Ballots []Ballot
}

func (r voteRound) record() VoteRecord {
	rec := make(VoteRecord, len(r.Ballots))
	for _, b := range r.Ballots {
		rec[b.Voter] = b.Target
	}
	return rec
}

// tallyBallots sums ballot weights per target.
func tallyBallots(ballots []Ballot) map[PlayerID]int {
	tally := make(map[PlayerID]int)
	for _, b := range ballots {
		if b.Target == "" {
			continue
		}
		tally[b.Target] += b.Weight
	}
	return tally
}

// leaders returns the targets holding the highest count, in lexical order,
// along with that count. An empty tally yields no leaders.
func leaders(tally map[PlayerID]int) ([]PlayerID, int) {
	max := 0
	for _, n := range tally {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return nil, 0
	}
	var tied []PlayerID
	for id, n := range tally {
		if n == max {
			tied = append(tied, id)
		}
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
	return tied, max
}

// countbackTotals sums the weighted votes each tied candidate received in
// every round before the current one.
func countbackTotals(history []voteRound, tied []PlayerID) map[PlayerID]int {
	totals := make(map[PlayerID]int, len(tied))
	for _, id := range tied {
		totals[id] = 0
	}
	for _, round := range history {
		for _, b := range round.Ballots {
			if _, ok := totals[b.Target]; ok {
				totals[b.Target] += b.Weight
			}
		}
	}
	return totals
}

// collectVotes fans the vote decision out to every voter and joins the
// ballots in casting order. Fallback targets are drawn serially afterwards
// so the engine RNG stays single-threaded.
func (g *Game) collectVotes(ctx context.Context, voters []*Player, candidatesFor func(*Player) []PlayerID) []Ballot {
	type asked struct {
		candidates []PlayerID
		res        decided[PlayerID]
	}
	results := fanOut(ctx, voters, func(ctx context.Context, p *Player) asked {
		candidates := candidatesFor(p)
		if len(candidates) == 0 {
			return asked{}
		}
		view := g.viewFor(p)
		return asked{
			candidates: candidates,
			res: decide(ctx, g, p, "vote",
				func(ctx context.Context, dp DecisionProvider) (PlayerID, error) {
					return dp.DecideVote(ctx, view, candidates)
				},
				func(id PlayerID) bool { return containsID(candidates, id) },
			),
		}
	})

	ballots := make([]Ballot, 0, len(voters))
	for i, p := range voters {
		r := results[i]
		if len(r.candidates) == 0 {
			continue
		}
		b := Ballot{Voter: p.ID, Weight: 1}
		if p.DoubleVote {
			b.Weight = 2
		}
		if r.res.ok {
			b.Target = r.res.value
		} else {
			b.Target = g.pick(r.candidates)
			b.Fallback = r.res.reason
		}
		ballots = append(ballots, b)
	}
	return ballots
}

// runBanishmentVote collects ballots from voters, applies the configured
// tie-break and returns the banished player's ID. The returned bool is
// false only when no one could be banished at all.
func (g *Game) runBanishmentVote(ctx context.Context, voters []*Player) (PlayerID, bool) {
	alive := g.roster.AliveIDs()
	if len(voters) == 0 {
		// Nobody to vote. The table still demands a banishment, so the
		// engine picks one at random and flags the anomaly.
		g.anomaly("empty electorate for banishment vote")
		if len(alive) == 0 {
			return "", false
		}
		return g.pick(alive), true
	}

	ballots := g.collectVotes(ctx, voters, func(p *Player) []PlayerID {
		return excludeID(alive, p.ID)
	})
	g.recordRound(ballots, 1)
	g.logBallots(ballots)

	tally := tallyBallots(ballots)
	tied, top := leaders(tally)
	if len(tied) == 0 {
		g.anomaly("banishment vote produced no ballots")
		return g.pick(alive), true
	}
	if len(tied) == 1 {
		g.appendEvent(Event{
			Phase: g.phase, Type: EventTypeVoteResult,
			Target: tied[0],
			Data:   map[string]any{"tally": tallyData(tally), "votes": top},
		})
		return tied[0], true
	}

	g.appendEvent(Event{
		Phase: g.phase, Type: EventTypeTieBreak,
		Data: map[string]any{
			"tied":     idStrings(tied),
			"strategy": string(g.cfg.TieBreak),
		},
	})

	winner := g.breakTie(ctx, tied)
	g.appendEvent(Event{
		Phase: g.phase, Type: EventTypeVoteResult,
		Target: winner,
		Data:   map[string]any{"tally": tallyData(tally), "tie_break": string(g.cfg.TieBreak)},
	})
	return winner, true
}

// breakTie resolves a deadlock among tied candidates using the configured
// strategy. Every path terminates in at most one extra round.
func (g *Game) breakTie(ctx context.Context, tied []PlayerID) PlayerID {
	switch g.cfg.TieBreak {
	case TieBreakRevote:
		return g.breakTieRevote(ctx, tied)
	case TieBreakCountback:
		return g.breakTieCountback(tied)
	default:
		return g.pick(tied)
	}
}

func (g *Game) breakTieRevote(ctx context.Context, tied []PlayerID) PlayerID {
	var voters []*Player
	for _, p := range g.roster.Alive() {
		if !containsID(tied, p.ID) {
			voters = append(voters, p)
		}
	}
	if len(voters) == 0 {
		// Everyone is tied with everyone; nothing left to revote with.
		return g.pick(tied)
	}

	ballots := g.collectVotes(ctx, voters, func(*Player) []PlayerID { return tied })
	g.recordRound(ballots, 2)
	g.logBallots(ballots)

	again, _ := leaders(tallyBallots(ballots))
	if len(again) == 1 {
		return again[0]
	}
	if len(again) == 0 {
		return g.pick(tied)
	}
	return g.pick(again)
}

func (g *Game) breakTieCountback(tied []PlayerID) PlayerID {
	// The current round is already recorded; countback only looks at the
	// rounds before it.
	history := g.voteRounds[:len(g.voteRounds)-1]
	totals := countbackTotals(history, tied)
	winners, top := leaders(totals)
	if len(winners) == 1 && top > 0 {
		return winners[0]
	}
	return g.pick(tied)
}

func (g *Game) recordRound(ballots []Ballot, round int) {
	g.voteRounds = append(g.voteRounds, voteRound{
		Day:     g.day,
		Round:   round,
		Ballots: ballots,
	})
}

func (g *Game) logBallots(ballots []Ballot) {
	for _, b := range ballots {
		e := Event{
			Phase:  g.phase,
			Type:   EventTypeBallot,
			Actor:  b.Voter,
			Target: b.Target,
		}
		if b.Weight != 1 || b.Fallback != "" {
			e.Data = map[string]any{}
			if b.Weight != 1 {
				e.Data["weight"] = b.Weight
			}
			if b.Fallback != "" {
				e.Data["fallback"] = string(b.Fallback)
			}
		}
		g.appendEvent(e)
	}
}

func excludeID(ids []PlayerID, drop PlayerID) []PlayerID {
	out := make([]PlayerID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func idStrings(ids []PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func tallyData(tally map[PlayerID]int) map[string]int {
	out := make(map[string]int, len(tally))
	for id, n := range tally {
		out[string(id)] = n
	}
	return out
}
