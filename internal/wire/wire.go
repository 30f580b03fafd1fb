// Package wire converts engine types to and from their protocol
// representations. The protocol package stays free of engine imports so
// external agents can depend on it; every process that speaks both sides
// (server, HTTP transport) goes through these helpers instead.
package wire

import (
	"fmt"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/protocol"
)

// ViewFromGame flattens a player view for the wire.
func ViewFromGame(v game.PlayerView) protocol.View {
	return protocol.View{
		GameID:    v.GameID,
		Day:       v.Day,
		MaxDays:   v.MaxDays,
		Phase:     string(v.Phase),
		Pot:       v.Pot,
		You:       PlayerFromGame(v.You),
		Role:      string(v.Role),
		Traits:    v.Traits.Map(),
		Skills:    v.Skills.Map(),
		Players:   PlayersFromGame(v.Players),
		Allies:    IDStrings(v.Allies),
		Suspicion: SuspicionFromGame(v.Suspicion),
		Events:    EventsFromGame(v.Events),
	}
}

// ViewToGame rebuilds an engine view from its wire form. Used on the far
// side of a transport to hand in-process providers the view they expect.
func ViewToGame(v protocol.View) game.PlayerView {
	return game.PlayerView{
		GameID:    v.GameID,
		Day:       v.Day,
		MaxDays:   v.MaxDays,
		Phase:     game.Phase(v.Phase),
		Pot:       v.Pot,
		You:       PlayerToGame(v.You),
		Role:      game.Role(v.Role),
		Traits:    traitsToGame(v.Traits),
		Skills:    skillsToGame(v.Skills),
		Players:   PlayersToGame(v.Players),
		Allies:    PlayerIDs(v.Allies),
		Suspicion: SuspicionToGame(v.Suspicion),
		Events:    EventsToGame(v.Events),
	}
}

// PlayerFromGame converts one public roster entry.
func PlayerFromGame(p game.PublicPlayer) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:         string(p.ID),
		Name:       p.Name,
		Alive:      p.Alive,
		Protection: p.Protection,
		DoubleVote: p.DoubleVote,
		Reveal:     p.Reveal,
	}
}

// PlayerToGame is the inverse of PlayerFromGame.
func PlayerToGame(p protocol.PlayerInfo) game.PublicPlayer {
	return game.PublicPlayer{
		ID:         game.PlayerID(p.ID),
		Name:       p.Name,
		Alive:      p.Alive,
		Protection: p.Protection,
		DoubleVote: p.DoubleVote,
		Reveal:     p.Reveal,
	}
}

// PlayersFromGame converts a roster slice, preserving order.
func PlayersFromGame(ps []game.PublicPlayer) []protocol.PlayerInfo {
	if ps == nil {
		return nil
	}
	out := make([]protocol.PlayerInfo, len(ps))
	for i, p := range ps {
		out[i] = PlayerFromGame(p)
	}
	return out
}

// PlayersToGame is the inverse of PlayersFromGame.
func PlayersToGame(ps []protocol.PlayerInfo) []game.PublicPlayer {
	if ps == nil {
		return nil
	}
	out := make([]game.PublicPlayer, len(ps))
	for i, p := range ps {
		out[i] = PlayerToGame(p)
	}
	return out
}

// EventFromGame converts a log entry. Timestamps stay engine-side; agents
// order by sequence number.
func EventFromGame(e game.Event) protocol.EventInfo {
	return protocol.EventInfo{
		Seq:       e.Seq,
		Day:       e.Day,
		Phase:     string(e.Phase),
		Type:      string(e.Type),
		Actor:     string(e.Actor),
		Target:    string(e.Target),
		Data:      e.Data,
		Narrative: e.Narrative,
		Hidden:    e.Hidden,
	}
}

// EventToGame is the inverse of EventFromGame.
func EventToGame(e protocol.EventInfo) game.Event {
	return game.Event{
		Seq:       e.Seq,
		Day:       e.Day,
		Phase:     game.Phase(e.Phase),
		Type:      game.EventType(e.Type),
		Actor:     game.PlayerID(e.Actor),
		Target:    game.PlayerID(e.Target),
		Data:      e.Data,
		Narrative: e.Narrative,
		Hidden:    e.Hidden,
	}
}

// EventsFromGame converts a slice of log entries.
func EventsFromGame(es []game.Event) []protocol.EventInfo {
	if es == nil {
		return nil
	}
	out := make([]protocol.EventInfo, len(es))
	for i, e := range es {
		out[i] = EventFromGame(e)
	}
	return out
}

// EventsToGame is the inverse of EventsFromGame.
func EventsToGame(es []protocol.EventInfo) []game.Event {
	if es == nil {
		return nil
	}
	out := make([]game.Event, len(es))
	for i, e := range es {
		out[i] = EventToGame(e)
	}
	return out
}

// IDStrings converts player IDs to their wire strings.
func IDStrings(ids []game.PlayerID) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// PlayerIDs converts wire strings back to player IDs.
func PlayerIDs(ss []string) []game.PlayerID {
	if ss == nil {
		return nil
	}
	out := make([]game.PlayerID, len(ss))
	for i, s := range ss {
		out[i] = game.PlayerID(s)
	}
	return out
}

// SuspicionFromGame converts a ledger row.
func SuspicionFromGame(m map[game.PlayerID]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for id, v := range m {
		out[string(id)] = v
	}
	return out
}

// SuspicionToGame is the inverse of SuspicionFromGame.
func SuspicionToGame(m map[string]float64) map[game.PlayerID]float64 {
	if m == nil {
		return nil
	}
	out := make(map[game.PlayerID]float64, len(m))
	for id, v := range m {
		out[game.PlayerID(id)] = v
	}
	return out
}

// TokenStrings converts token kinds to their wire names.
func TokenStrings(ks []game.TokenKind) []string {
	if ks == nil {
		return nil
	}
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.String()
	}
	return out
}

// ParseTokenKind maps a wire name back to a token kind.
func ParseTokenKind(s string) (game.TokenKind, error) {
	switch game.TokenKind(s) {
	case game.TokenProtection, game.TokenDoubleVote, game.TokenReveal:
		return game.TokenKind(s), nil
	}
	return "", fmt.Errorf("unknown token kind %q", s)
}

// ShiftsFromGame converts suspicion shifts for the wire.
func ShiftsFromGame(ss []game.SuspicionShift) []protocol.Shift {
	if ss == nil {
		return nil
	}
	out := make([]protocol.Shift, len(ss))
	for i, s := range ss {
		out[i] = protocol.Shift{Target: string(s.Target), Delta: s.Delta}
	}
	return out
}

// ShiftsToGame is the inverse of ShiftsFromGame.
func ShiftsToGame(ss []protocol.Shift) []game.SuspicionShift {
	if ss == nil {
		return nil
	}
	out := make([]game.SuspicionShift, len(ss))
	for i, s := range ss {
		out[i] = game.SuspicionShift{Target: game.PlayerID(s.Target), Delta: s.Delta}
	}
	return out
}

func traitsToGame(m map[string]float64) game.Traits {
	var t game.Traits
	if m == nil {
		return game.DefaultTraits()
	}
	for i := range t {
		t[i] = m[game.Trait(i).String()]
	}
	return t.Sanitized()
}

func skillsToGame(m map[string]float64) game.Skills {
	var s game.Skills
	if m == nil {
		return game.DefaultSkills()
	}
	for i := range s {
		s[i] = m[game.Skill(i).String()]
	}
	return s.Sanitized()
}
