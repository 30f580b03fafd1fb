package game

import (
	"context"
	"fmt"
	"time"
)

// testCast returns n contestants p1..pn with default profiles.
func testCast(n int) []Contestant {
	cast := make([]Contestant, n)
	for i := range cast {
		cast[i] = Contestant{
			ID:     PlayerID(fmt.Sprintf("p%d", i+1)),
			Name:   fmt.Sprintf("Player %d", i+1),
			Traits: DefaultTraits(),
			Skills: DefaultSkills(),
		}
	}
	return cast
}

// testConfig returns a valid config with every optional twist switched
// off, so each test enables exactly the mechanics it exercises.
func testConfig(players, adversaries int) Config {
	return Config{
		Players:         players,
		Adversaries:     adversaries,
		MaxDays:         12,
		TieBreak:        TieBreakRevote,
		DecisionTimeout: time.Second,
		ChallengePrize:  1000,
		Seed:            1,
	}
}

// rolesFor pins the first adversaries cast members to the adversary side
// and the rest to the innocent side.
func rolesFor(cast []Contestant, adversaries int) map[PlayerID]Role {
	roles := make(map[PlayerID]Role, len(cast))
	for i, c := range cast {
		if i < adversaries {
			roles[c.ID] = RoleAdversary
		} else {
			roles[c.ID] = RoleInnocent
		}
	}
	return roles
}

// bindAll binds one provider to every cast member.
func bindAll(reg *Registry, cast []Contestant, p DecisionProvider) {
	for _, c := range cast {
		reg.Bind(c.ID, p)
	}
}

// eventsOfType filters events down to a single type, preserving order.
func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// stubProvider implements DecisionProvider through optional per-decision
// hooks. Unset hooks answer with fixed deterministic choices (first
// candidate, accept, continue, share, first option, hold) so a partial
// stub still drives a full game, and a seeded replay of one stays
// byte-for-byte stable.
type stubProvider struct {
	vote        func(view PlayerView, candidates []PlayerID) (PlayerID, error)
	kill        func(view PlayerView, candidates []PlayerID) (PlayerID, error)
	recruitPick func(view PlayerView, candidates []PlayerID) (PlayerID, error)
	recruit     func(view PlayerView, ultimatum bool) (bool, error)
	endgame     func(view PlayerView) (EndgameChoice, error)
	shareSteal  func(view PlayerView) (PayoffChoice, error)
	tokenChoice func(view PlayerView, options []TokenKind) (TokenKind, error)
	investigate func(view PlayerView, candidates []PlayerID) (PlayerID, error)
	reflect     func(view PlayerView, events []Event) ([]SuspicionShift, error)
}

var _ DecisionProvider = (*stubProvider)(nil)

func firstOf(ids []PlayerID) PlayerID {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (s *stubProvider) DecideVote(_ context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error) {
	if s.vote != nil {
		return s.vote(view, candidates)
	}
	return firstOf(candidates), nil
}

func (s *stubProvider) DecideKillTarget(_ context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error) {
	if s.kill != nil {
		return s.kill(view, candidates)
	}
	return firstOf(candidates), nil
}

func (s *stubProvider) DecideRecruitTarget(_ context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error) {
	if s.recruitPick != nil {
		return s.recruitPick(view, candidates)
	}
	return firstOf(candidates), nil
}

func (s *stubProvider) DecideRecruitment(_ context.Context, view PlayerView, ultimatum bool) (bool, error) {
	if s.recruit != nil {
		return s.recruit(view, ultimatum)
	}
	return true, nil
}

func (s *stubProvider) DecideEndgame(_ context.Context, view PlayerView) (EndgameChoice, error) {
	if s.endgame != nil {
		return s.endgame(view)
	}
	return EndgameContinue, nil
}

func (s *stubProvider) DecideShareOrSteal(_ context.Context, view PlayerView) (PayoffChoice, error) {
	if s.shareSteal != nil {
		return s.shareSteal(view)
	}
	return PayoffShare, nil
}

func (s *stubProvider) DecideTokenChoice(_ context.Context, view PlayerView, options []TokenKind) (TokenKind, error) {
	if s.tokenChoice != nil {
		return s.tokenChoice(view, options)
	}
	if len(options) == 0 {
		return "", nil
	}
	return options[0], nil
}

func (s *stubProvider) DecideInvestigateTarget(_ context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error) {
	if s.investigate != nil {
		return s.investigate(view, candidates)
	}
	return "", nil
}

func (s *stubProvider) Reflect(_ context.Context, view PlayerView, events []Event) ([]SuspicionShift, error) {
	if s.reflect != nil {
		return s.reflect(view, events)
	}
	return nil, nil
}

// blockingProvider parks every call until its context is cancelled,
// standing in for an agent that never answers.
type blockingProvider struct{}

var _ DecisionProvider = blockingProvider{}

func (blockingProvider) DecideVote(ctx context.Context, _ PlayerView, _ []PlayerID) (PlayerID, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideKillTarget(ctx context.Context, _ PlayerView, _ []PlayerID) (PlayerID, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideRecruitTarget(ctx context.Context, _ PlayerView, _ []PlayerID) (PlayerID, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideRecruitment(ctx context.Context, _ PlayerView, _ bool) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (blockingProvider) DecideEndgame(ctx context.Context, _ PlayerView) (EndgameChoice, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideShareOrSteal(ctx context.Context, _ PlayerView) (PayoffChoice, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideTokenChoice(ctx context.Context, _ PlayerView, _ []TokenKind) (TokenKind, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) DecideInvestigateTarget(ctx context.Context, _ PlayerView, _ []PlayerID) (PlayerID, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) Reflect(ctx context.Context, _ PlayerView, _ []Event) ([]SuspicionShift, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
