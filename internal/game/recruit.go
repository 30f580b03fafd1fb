package game

import (
	"context"
)

// runRecruitment runs after an adversary is banished: the senior surviving
// adversary nominates an innocent, who accepts or declines in secret. When
// the nominator is the last adversary standing the offer becomes an
// ultimatum and declining is fatal.
func (g *Game) runRecruitment(ctx context.Context) {
	if !g.cfg.Recruitment {
		return
	}
	adversaries := g.roster.AliveByRole(RoleAdversary)
	if len(adversaries) == 0 {
		// The banished adversary was the last; nothing left to rebuild.
		return
	}
	innocents := g.roster.AliveByRole(RoleInnocent)
	if len(innocents) == 0 {
		return
	}

	recruiter := adversaries[0]
	candidates := make([]PlayerID, len(innocents))
	for i, p := range innocents {
		candidates[i] = p.ID
	}

	view := g.viewFor(recruiter)
	res := decide(ctx, g, recruiter, "recruit_target",
		func(ctx context.Context, dp DecisionProvider) (PlayerID, error) {
			return dp.DecideRecruitTarget(ctx, view, candidates)
		},
		func(id PlayerID) bool { return containsID(candidates, id) },
	)
	targetID := g.pick(candidates)
	if res.ok {
		targetID = res.value
	}
	target, _ := g.roster.Get(targetID)

	ultimatum := len(adversaries) == 1
	g.appendEvent(Event{
		Type:   EventTypeRecruitmentOffer,
		Actor:  recruiter.ID,
		Target: target.ID,
		Data:   map[string]any{"ultimatum": ultimatum},
		Hidden: true,
	})

	tview := g.viewFor(target)
	ans := decide(ctx, g, target, "recruit_response",
		func(ctx context.Context, dp DecisionProvider) (bool, error) {
			return dp.DecideRecruitment(ctx, tview, ultimatum)
		},
		func(bool) bool { return true },
	)
	accepted := g.rng.IntN(2) == 0
	if ans.ok {
		accepted = ans.value
	}

	switch {
	case accepted:
		g.roster.convert(target.ID, RoleAdversary)
		g.appendEvent(Event{
			Type:   EventTypeRecruitmentAccepted,
			Actor:  recruiter.ID,
			Target: target.ID,
			Data:   map[string]any{"ultimatum": ultimatum},
			Hidden: true,
		})
		g.logger.Debug().
			Int("day", g.day).
			Str("player", string(target.ID)).
			Bool("ultimatum", ultimatum).
			Msg("Recruitment accepted")
	case ultimatum:
		// Refusing the ultimatum is refusing to leave the room alive.
		g.eliminate(target, EventTypeUltimatumDeath, nil)
	default:
		g.appendEvent(Event{
			Type:   EventTypeRecruitmentDeclined,
			Actor:  recruiter.ID,
			Target: target.ID,
			Hidden: true,
		})
	}
}
