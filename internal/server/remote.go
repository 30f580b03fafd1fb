package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/wire"
	"github.com/lox/traitorsforbots/protocol"
)

// remoteProvider adapts one connected agent to game.DecisionProvider.
// The engine owns the decision deadline; this side just relays and waits.
type remoteProvider struct {
	agent *Agent
}

func newRemoteProvider(agent *Agent) *remoteProvider {
	return &remoteProvider{agent: agent}
}

var _ game.DecisionProvider = (*remoteProvider)(nil)

func (r *remoteProvider) request(ctx context.Context, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	req.RequestID = uuid.NewString()
	if deadline, ok := ctx.Deadline(); ok {
		if ms := time.Until(deadline).Milliseconds(); ms > 0 {
			req.DeadlineMS = ms
		}
	}

	ch := r.agent.expect(req.RequestID)
	defer r.agent.forget(req.RequestID)

	if err := r.agent.SendMessage(protocol.TypeDecisionRequest, req); err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("send %s to %s: %w", req.Kind, r.agent.Name, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return protocol.DecisionResponse{}, ctx.Err()
	case <-r.agent.Done():
		return protocol.DecisionResponse{}, fmt.Errorf("agent %s disconnected", r.agent.Name)
	}
}

func (r *remoteProvider) newRequest(kind protocol.DecisionKind, view game.PlayerView) protocol.DecisionRequest {
	return protocol.DecisionRequest{Kind: kind, View: wire.ViewFromGame(view)}
}

func (r *remoteProvider) pickTarget(ctx context.Context, kind protocol.DecisionKind, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	req := r.newRequest(kind, view)
	req.Candidates = wire.IDStrings(candidates)
	resp, err := r.request(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Target == "" {
		return "", fmt.Errorf("agent %s returned no target for %s", r.agent.Name, kind)
	}
	return game.PlayerID(resp.Target), nil
}

func (r *remoteProvider) DecideVote(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return r.pickTarget(ctx, protocol.KindVote, view, candidates)
}

func (r *remoteProvider) DecideKillTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return r.pickTarget(ctx, protocol.KindKill, view, candidates)
}

func (r *remoteProvider) DecideRecruitTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return r.pickTarget(ctx, protocol.KindRecruitTarget, view, candidates)
}

func (r *remoteProvider) DecideRecruitment(ctx context.Context, view game.PlayerView, ultimatum bool) (bool, error) {
	req := r.newRequest(protocol.KindRecruitment, view)
	req.Ultimatum = ultimatum
	resp, err := r.request(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Accept, nil
}

func (r *remoteProvider) DecideEndgame(ctx context.Context, view game.PlayerView) (game.EndgameChoice, error) {
	resp, err := r.request(ctx, r.newRequest(protocol.KindEndgame, view))
	if err != nil {
		return "", err
	}
	switch choice := game.EndgameChoice(resp.Choice); choice {
	case game.EndgameStop, game.EndgameContinue:
		return choice, nil
	}
	return "", fmt.Errorf("agent %s sent unknown endgame choice %q", r.agent.Name, resp.Choice)
}

func (r *remoteProvider) DecideShareOrSteal(ctx context.Context, view game.PlayerView) (game.PayoffChoice, error) {
	resp, err := r.request(ctx, r.newRequest(protocol.KindShareSteal, view))
	if err != nil {
		return "", err
	}
	switch choice := game.PayoffChoice(resp.Choice); choice {
	case game.PayoffShare, game.PayoffSteal:
		return choice, nil
	}
	return "", fmt.Errorf("agent %s sent unknown payoff choice %q", r.agent.Name, resp.Choice)
}

func (r *remoteProvider) DecideTokenChoice(ctx context.Context, view game.PlayerView, options []game.TokenKind) (game.TokenKind, error) {
	req := r.newRequest(protocol.KindTokenChoice, view)
	req.Options = wire.TokenStrings(options)
	resp, err := r.request(ctx, req)
	if err != nil {
		return "", err
	}
	return wire.ParseTokenKind(resp.Choice)
}

func (r *remoteProvider) DecideInvestigateTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	req := r.newRequest(protocol.KindInvestigate, view)
	req.Candidates = wire.IDStrings(candidates)
	resp, err := r.request(ctx, req)
	if err != nil {
		return "", err
	}
	return game.PlayerID(resp.Target), nil
}

func (r *remoteProvider) Reflect(ctx context.Context, view game.PlayerView, events []game.Event) ([]game.SuspicionShift, error) {
	req := r.newRequest(protocol.KindReflect, view)
	req.Events = wire.EventsFromGame(events)
	resp, err := r.request(ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.ShiftsToGame(resp.Shifts), nil
}
