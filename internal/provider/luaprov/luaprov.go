// Package luaprov drives decisions from a Lua script. A script defines
// global functions named after the decisions it wants to play:
//
//	function decide_vote(view, candidates)       -- return a candidate id
//	function decide_kill(view, candidates)       -- return a candidate id
//	function decide_recruit_target(view, candidates)
//	function decide_recruitment(view, ultimatum) -- return true or false
//	function decide_endgame(view)                -- return "stop" or "continue"
//	function decide_share_steal(view)            -- return "share" or "steal"
//	function decide_token(view, options)         -- return an option name
//	function decide_investigate(view, candidates) -- return an id, or nil to hold
//	function reflect(view, events)               -- return {{target=..., delta=...}, ...}
//
// view is a table carrying day, phase, pot, role, allies, suspicion,
// players and recent events. Functions the script leaves out get quiet
// deterministic defaults, so a script can override a single decision and
// still play whole games.
package luaprov

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/game"
)

// viewEventWindow caps how much of the log rides along on each view table.
const viewEventWindow = 30

// Provider implements game.DecisionProvider on top of a single Lua state.
type Provider struct {
	// One state serves all calls; the engine may abandon a timed-out call
	// whose goroutine is still inside the interpreter.
	mu     sync.Mutex
	state  *lua.State
	source string
	logger zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New loads a script from disk.
func New(path string, opts ...Option) (*Provider, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.DoFile(state, path); err != nil {
		return nil, fmt.Errorf("load lua script %s: %w", path, err)
	}
	return newProvider(state, path, opts...), nil
}

// NewString loads a script from source, for embedding and tests.
func NewString(source string, opts ...Option) (*Provider, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.DoString(state, source); err != nil {
		return nil, fmt.Errorf("load lua script: %w", err)
	}
	return newProvider(state, "<string>", opts...), nil
}

func newProvider(state *lua.State, source string, opts ...Option) *Provider {
	p := &Provider{state: state, source: source, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "luaprov").Str("script", source).Logger()
	return p
}

var _ game.DecisionProvider = (*Provider)(nil)

// hasFunction reports whether the script defines fn, leaving the stack
// clean.
func (p *Provider) hasFunction(fn string) bool {
	p.state.Global(fn)
	defined := p.state.TypeOf(-1) == lua.TypeFunction
	p.state.Pop(1)
	return defined
}

// callString invokes fn and returns its single string result. An empty
// string comes back for nil results.
func (p *Provider) callString(fn string, push func(l *lua.State) int) (string, error) {
	l := p.state
	l.Global(fn)
	nargs := push(l)
	if err := l.ProtectedCall(nargs, 1, 0); err != nil {
		return "", fmt.Errorf("lua %s: %w", fn, err)
	}
	defer l.Pop(1)
	if l.TypeOf(-1) == lua.TypeNil {
		return "", nil
	}
	s, ok := l.ToString(-1)
	if !ok {
		return "", fmt.Errorf("lua %s: expected a string result", fn)
	}
	return s, nil
}

// callBool invokes fn and returns its single boolean result.
func (p *Provider) callBool(fn string, push func(l *lua.State) int) (bool, error) {
	l := p.state
	l.Global(fn)
	nargs := push(l)
	if err := l.ProtectedCall(nargs, 1, 0); err != nil {
		return false, fmt.Errorf("lua %s: %w", fn, err)
	}
	b := l.ToBoolean(-1)
	l.Pop(1)
	return b, nil
}

func pushView(l *lua.State, view game.PlayerView) {
	l.NewTable()
	l.PushString(view.GameID)
	l.SetField(-2, "game_id")
	l.PushInteger(view.Day)
	l.SetField(-2, "day")
	l.PushInteger(view.MaxDays)
	l.SetField(-2, "max_days")
	l.PushString(string(view.Phase))
	l.SetField(-2, "phase")
	l.PushInteger(view.Pot)
	l.SetField(-2, "pot")
	l.PushString(string(view.You.ID))
	l.SetField(-2, "you")
	l.PushString(string(view.Role))
	l.SetField(-2, "role")

	pushNumberMap(l, view.Traits.Map())
	l.SetField(-2, "traits")
	pushNumberMap(l, view.Skills.Map())
	l.SetField(-2, "skills")

	pushIDs(l, view.Allies)
	l.SetField(-2, "allies")

	l.NewTable()
	for id, v := range view.Suspicion {
		l.PushNumber(v)
		l.SetField(-2, string(id))
	}
	l.SetField(-2, "suspicion")

	l.NewTable()
	for i, pl := range view.Players {
		l.NewTable()
		l.PushString(string(pl.ID))
		l.SetField(-2, "id")
		l.PushString(pl.Name)
		l.SetField(-2, "name")
		l.PushBoolean(pl.Alive)
		l.SetField(-2, "alive")
		l.PushBoolean(pl.Protection)
		l.SetField(-2, "protection")
		l.PushBoolean(pl.DoubleVote)
		l.SetField(-2, "double_vote")
		l.PushBoolean(pl.Reveal)
		l.SetField(-2, "reveal")
		l.RawSetInt(-2, i+1)
	}
	l.SetField(-2, "players")

	events := view.Events
	if len(events) > viewEventWindow {
		events = events[len(events)-viewEventWindow:]
	}
	pushEvents(l, events)
	l.SetField(-2, "events")
}

func pushNumberMap(l *lua.State, m map[string]float64) {
	l.NewTable()
	for k, v := range m {
		l.PushNumber(v)
		l.SetField(-2, k)
	}
}

func pushIDs(l *lua.State, ids []game.PlayerID) {
	l.NewTable()
	for i, id := range ids {
		l.PushString(string(id))
		l.RawSetInt(-2, i+1)
	}
}

func pushEvents(l *lua.State, events []game.Event) {
	l.NewTable()
	for i, e := range events {
		l.NewTable()
		l.PushInteger(e.Seq)
		l.SetField(-2, "seq")
		l.PushInteger(e.Day)
		l.SetField(-2, "day")
		l.PushString(string(e.Phase))
		l.SetField(-2, "phase")
		l.PushString(string(e.Type))
		l.SetField(-2, "type")
		l.PushString(string(e.Actor))
		l.SetField(-2, "actor")
		l.PushString(string(e.Target))
		l.SetField(-2, "target")
		l.PushString(e.Narrative)
		l.SetField(-2, "narrative")
		l.RawSetInt(-2, i+1)
	}
}

func pushStrings(l *lua.State, ss []string) {
	l.NewTable()
	for i, s := range ss {
		l.PushString(s)
		l.RawSetInt(-2, i+1)
	}
}

// topSuspect returns the candidate the viewer distrusts most, skipping
// allies.
func topSuspect(view game.PlayerView, candidates []game.PlayerID) game.PlayerID {
	allies := make(map[game.PlayerID]bool, len(view.Allies))
	for _, id := range view.Allies {
		allies[id] = true
	}
	var best game.PlayerID
	bestScore := -1.0
	for _, c := range candidates {
		if allies[c] {
			continue
		}
		if s := view.Suspicion[c]; s > bestScore {
			best, bestScore = c, s
		}
	}
	if best == "" && len(candidates) > 0 {
		best = candidates[0]
	}
	return best
}

// leastSuspect returns the candidate the viewer distrusts least.
func leastSuspect(view game.PlayerView, candidates []game.PlayerID) game.PlayerID {
	var best game.PlayerID
	bestScore := 2.0
	for _, c := range candidates {
		if s := view.Suspicion[c]; s < bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func (p *Provider) pickTarget(fn string, view game.PlayerView, candidates []game.PlayerID, fallback func() game.PlayerID) (game.PlayerID, error) {
	if !p.hasFunction(fn) {
		return fallback(), nil
	}
	s, err := p.callString(fn, func(l *lua.State) int {
		pushView(l, view)
		pushIDs(l, candidates)
		return 2
	})
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("lua %s: returned no target", fn)
	}
	return game.PlayerID(s), nil
}

// DecideVote asks the script to pick a banishment target. Default: the
// top suspect.
func (p *Provider) DecideVote(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)
	return p.pickTarget("decide_vote", view, candidates, func() game.PlayerID { return topSuspect(view, candidates) })
}

// DecideKillTarget asks the script to pick tonight's victim. Default: the
// least suspicious candidate, the one nobody would see coming.
func (p *Provider) DecideKillTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)
	return p.pickTarget("decide_kill", view, candidates, func() game.PlayerID { return leastSuspect(view, candidates) })
}

// DecideRecruitTarget asks the script to pick a recruit. Default: the
// least suspicious candidate.
func (p *Provider) DecideRecruitTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)
	return p.pickTarget("decide_recruit_target", view, candidates, func() game.PlayerID { return leastSuspect(view, candidates) })
}

// DecideRecruitment asks the script to accept or decline. Default:
// accept only at knifepoint.
func (p *Provider) DecideRecruitment(ctx context.Context, view game.PlayerView, ultimatum bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if !p.hasFunction("decide_recruitment") {
		return ultimatum, nil
	}
	return p.callBool("decide_recruitment", func(l *lua.State) int {
		pushView(l, view)
		l.PushBoolean(ultimatum)
		return 2
	})
}

// DecideEndgame asks the script for its declaration. Default: continue.
func (p *Provider) DecideEndgame(ctx context.Context, view game.PlayerView) (game.EndgameChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if !p.hasFunction("decide_endgame") {
		return game.EndgameContinue, nil
	}
	s, err := p.callString("decide_endgame", func(l *lua.State) int {
		pushView(l, view)
		return 1
	})
	if err != nil {
		return "", err
	}
	switch choice := game.EndgameChoice(s); choice {
	case game.EndgameStop, game.EndgameContinue:
		return choice, nil
	}
	return "", fmt.Errorf("lua decide_endgame: unknown choice %q", s)
}

// DecideShareOrSteal asks the script for its final play. Default: share.
func (p *Provider) DecideShareOrSteal(ctx context.Context, view game.PlayerView) (game.PayoffChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if !p.hasFunction("decide_share_steal") {
		return game.PayoffShare, nil
	}
	s, err := p.callString("decide_share_steal", func(l *lua.State) int {
		pushView(l, view)
		return 1
	})
	if err != nil {
		return "", err
	}
	switch choice := game.PayoffChoice(s); choice {
	case game.PayoffShare, game.PayoffSteal:
		return choice, nil
	}
	return "", fmt.Errorf("lua decide_share_steal: unknown choice %q", s)
}

// DecideTokenChoice asks the script to pick a challenge token. Default:
// the first on offer.
func (p *Provider) DecideTokenChoice(ctx context.Context, view game.PlayerView, options []game.TokenKind) (game.TokenKind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if len(options) == 0 {
		return "", fmt.Errorf("no token options")
	}
	if !p.hasFunction("decide_token") {
		return options[0], nil
	}
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.String()
	}
	s, err := p.callString("decide_token", func(l *lua.State) int {
		pushView(l, view)
		pushStrings(l, names)
		return 2
	})
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if o.String() == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("lua decide_token: %q not on offer", s)
}

// DecideInvestigateTarget asks the script whether to spend the reveal
// token. Default: hold.
func (p *Provider) DecideInvestigateTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if !p.hasFunction("decide_investigate") {
		return "", nil
	}
	s, err := p.callString("decide_investigate", func(l *lua.State) int {
		pushView(l, view)
		pushIDs(l, candidates)
		return 2
	})
	if err != nil {
		return "", err
	}
	return game.PlayerID(s), nil
}

// Reflect asks the script for suspicion shifts. Default: none.
func (p *Provider) Reflect(ctx context.Context, view game.PlayerView, events []game.Event) ([]game.SuspicionShift, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.state.SetTop(0)

	if !p.hasFunction("reflect") {
		return nil, nil
	}

	l := p.state
	l.Global("reflect")
	pushView(l, view)
	pushEvents(l, events)
	if err := l.ProtectedCall(2, 1, 0); err != nil {
		return nil, fmt.Errorf("lua reflect: %w", err)
	}
	defer l.Pop(1)

	if l.TypeOf(-1) != lua.TypeTable {
		return nil, nil
	}
	var shifts []game.SuspicionShift
	for i := 1; ; i++ {
		l.RawGetInt(-1, i)
		if l.TypeOf(-1) == lua.TypeNil {
			l.Pop(1)
			break
		}
		if shift, ok := shiftFromTable(l, -1); ok {
			shifts = append(shifts, shift)
		}
		l.Pop(1)
	}
	return shifts, nil
}

func shiftFromTable(l *lua.State, index int) (game.SuspicionShift, bool) {
	var s game.SuspicionShift
	if l.TypeOf(index) != lua.TypeTable {
		return s, false
	}
	index = l.AbsIndex(index)
	ok := false
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			switch key {
			case "target":
				if t, tok := l.ToString(-1); tok && t != "" {
					s.Target = game.PlayerID(t)
					ok = true
				}
			case "delta":
				if d, dok := l.ToNumber(-1); dok {
					s.Delta = d
				}
			}
		}
		l.Pop(1)
	}
	return s, ok
}
