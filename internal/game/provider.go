package game

import (
	"context"
	"sync"
)

// DecisionProvider supplies every judgement call the engine cannot make for
// a player. Implementations range from in-process scripted personalities to
// remote processes on the far side of a websocket; the engine treats them
// all identically.
//
// Calls must honour ctx: the engine cancels it on timeout or game abort and
// abandons the call. Any error, late reply or out-of-range answer is
// replaced by a uniformly random valid choice, so the game always advances.
type DecisionProvider interface {
	// DecideVote picks a banishment target from candidates.
	DecideVote(ctx context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error)

	// DecideKillTarget picks tonight's murder victim from candidates.
	// Only adversaries are asked.
	DecideKillTarget(ctx context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error)

	// DecideRecruitTarget nominates an innocent to receive a recruitment
	// offer. Only the senior living adversary is asked.
	DecideRecruitTarget(ctx context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error)

	// DecideRecruitment answers a recruitment offer. When ultimatum is
	// true, declining is fatal and the player knows it.
	DecideRecruitment(ctx context.Context, view PlayerView, ultimatum bool) (bool, error)

	// DecideEndgame votes to stop the game and share the pot, or to push
	// on to another banishment.
	DecideEndgame(ctx context.Context, view PlayerView) (EndgameChoice, error)

	// DecideShareOrSteal is the final dilemma between the last two
	// adversaries when no innocents remain.
	DecideShareOrSteal(ctx context.Context, view PlayerView) (PayoffChoice, error)

	// DecideTokenChoice picks one reward when a challenge win offers
	// several.
	DecideTokenChoice(ctx context.Context, view PlayerView, options []TokenKind) (TokenKind, error)

	// DecideInvestigateTarget spends the reveal token on a target, or
	// returns an empty ID to keep holding it.
	DecideInvestigateTarget(ctx context.Context, view PlayerView, candidates []PlayerID) (PlayerID, error)

	// Reflect reviews recent events and returns suspicion adjustments.
	// The engine clamps whatever comes back; an empty slice is fine.
	Reflect(ctx context.Context, view PlayerView, events []Event) ([]SuspicionShift, error)
}

// EndgameChoice is a player's answer to the daily stop vote.
type EndgameChoice string

const (
	EndgameStop     EndgameChoice = "stop"
	EndgameContinue EndgameChoice = "continue"
)

// PayoffChoice is one side of the final share-or-steal dilemma.
type PayoffChoice string

const (
	PayoffShare PayoffChoice = "share"
	PayoffSteal PayoffChoice = "steal"
)

// PlayerView is the read-only game state handed to a provider alongside
// each decision. It contains exactly what the player could know: public
// state, their own role and profile, their suspicion row, and any hidden
// events they took part in. Views are value copies; mutating one changes
// nothing.
type PlayerView struct {
	GameID  string `json:"game_id"`
	Day     int    `json:"day"`
	MaxDays int    `json:"max_days"`
	Phase   Phase  `json:"phase"`
	Pot     int    `json:"pot"`

	You    PublicPlayer `json:"you"`
	Role   Role         `json:"role"`
	Traits Traits       `json:"traits"`
	Skills Skills       `json:"skills"`

	// Players lists the living contestants in casting order, viewer
	// included.
	Players []PublicPlayer `json:"players"`

	// Allies names the viewer's fellow living adversaries. Empty for
	// innocents.
	Allies []PlayerID `json:"allies,omitempty"`

	// Suspicion is the viewer's row of the ledger.
	Suspicion map[PlayerID]float64 `json:"suspicion,omitempty"`

	// Events holds today's log entries visible to the viewer.
	Events []Event `json:"events,omitempty"`
}

// Registry maps players to their decision providers for a single game.
// Registries are plain values injected into NewGame; nothing here is
// process-global, so concurrent games never share provider state.
type Registry struct {
	m map[PlayerID]DecisionProvider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[PlayerID]DecisionProvider)}
}

// Bind assigns a provider to a player, replacing any previous binding.
func (r *Registry) Bind(id PlayerID, p DecisionProvider) {
	r.m[id] = p
}

// Provider returns the provider bound to id.
func (r *Registry) Provider(id PlayerID) (DecisionProvider, bool) {
	p, ok := r.m[id]
	return p, ok
}

// Bound reports whether id has a provider.
func (r *Registry) Bound(id PlayerID) bool {
	_, ok := r.m[id]
	return ok
}

// FallbackReason explains why the engine substituted a random choice for a
// provider's answer.
type FallbackReason string

const (
	FallbackTimeout       FallbackReason = "timeout"
	FallbackProviderError FallbackReason = "provider_error"
	FallbackInvalidChoice FallbackReason = "invalid_choice"
	FallbackNoProvider    FallbackReason = "no_provider"
)

// decided carries a provider answer or the reason it needs replacing.
// Fallback values are drawn later on the orchestrator goroutine, keeping
// the RNG single-threaded.
type decided[T any] struct {
	value  T
	ok     bool
	reason FallbackReason
}

// decide runs one provider call under the game's decision timeout. The call
// runs on its own goroutine; if the timer fires first the context is
// cancelled and the straggler's eventual answer is discarded.
func decide[T any](ctx context.Context, g *Game, p *Player, kind string,
	call func(context.Context, DecisionProvider) (T, error),
	valid func(T) bool,
) decided[T] {
	prov, bound := g.providers.Provider(p.ID)
	if !bound {
		return decided[T]{reason: FallbackNoProvider}
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := g.clock.AfterFunc(g.cfg.DecisionTimeout, cancel)
	defer timer.Stop()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := call(cctx, prov)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			g.logger.Warn().
				Str("player", string(p.ID)).
				Str("decision", kind).
				Err(res.err).
				Msg("Provider error, falling back")
			return decided[T]{reason: FallbackProviderError}
		}
		if !valid(res.v) {
			g.logger.Warn().
				Str("player", string(p.ID)).
				Str("decision", kind).
				Msg("Provider returned invalid choice, falling back")
			return decided[T]{reason: FallbackInvalidChoice}
		}
		return decided[T]{value: res.v, ok: true}
	case <-cctx.Done():
		g.logger.Warn().
			Str("player", string(p.ID)).
			Str("decision", kind).
			Dur("timeout", g.cfg.DecisionTimeout).
			Msg("Provider timed out, falling back")
		return decided[T]{reason: FallbackTimeout}
	}
}

// fanOut issues f for every player concurrently and joins the results in
// player order. Each worker writes only its own slot; nothing else is
// shared, so results are race-free without locks.
func fanOut[T any](ctx context.Context, players []*Player, f func(ctx context.Context, p *Player) T) []T {
	out := make([]T, len(players))
	var wg sync.WaitGroup
	for i, p := range players {
		wg.Add(1)
		go func(i int, p *Player) {
			defer wg.Done()
			out[i] = f(ctx, p)
		}(i, p)
	}
	wg.Wait()
	return out
}

// containsID reports whether ids includes id. Candidate sets are small
// enough that linear scans beat building maps.
func containsID(ids []PlayerID, id PlayerID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}
