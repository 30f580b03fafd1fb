package game

import (
	"fmt"
	"sort"
)

// Roster is the fixed set of players for one game, in casting order. No
// players join after the game starts; elimination only flips Alive.
type Roster struct {
	players []*Player
	byID    map[PlayerID]*Player
}

// NewRoster builds a roster from players. IDs must be unique and non-empty.
func NewRoster(players []*Player) (*Roster, error) {
	r := &Roster{
		players: make([]*Player, 0, len(players)),
		byID:    make(map[PlayerID]*Player, len(players)),
	}
	for _, p := range players {
		if p.ID == "" {
			return nil, fmt.Errorf("player %q has empty ID", p.Name)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate player ID %q", p.ID)
		}
		r.players = append(r.players, p)
		r.byID[p.ID] = p
	}
	return r, nil
}

// Get returns the player with the given ID.
func (r *Roster) Get(id PlayerID) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Len returns the total number of players, dead or alive.
func (r *Roster) Len() int {
	return len(r.players)
}

// All returns every player in casting order.
func (r *Roster) All() []*Player {
	out := make([]*Player, len(r.players))
	copy(out, r.players)
	return out
}

// Alive returns the living players in casting order.
func (r *Roster) Alive() []*Player {
	var out []*Player
	for _, p := range r.players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// AliveIDs returns the IDs of living players in casting order.
func (r *Roster) AliveIDs() []PlayerID {
	var out []PlayerID
	for _, p := range r.players {
		if p.Alive {
			out = append(out, p.ID)
		}
	}
	return out
}

// AliveByRole returns the living players holding the given role.
func (r *Roster) AliveByRole(role Role) []*Player {
	var out []*Player
	for _, p := range r.players {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// CountAlive returns how many players with the given role remain alive.
func (r *Roster) CountAlive(role Role) int {
	n := 0
	for _, p := range r.players {
		if p.Alive && p.Role == role {
			n++
		}
	}
	return n
}

// IDs returns every player ID in casting order.
func (r *Roster) IDs() []PlayerID {
	out := make([]PlayerID, len(r.players))
	for i, p := range r.players {
		out[i] = p.ID
	}
	return out
}

// Publics returns the public projection of every player in casting order.
func (r *Roster) Publics() []PublicPlayer {
	out := make([]PublicPlayer, len(r.players))
	for i, p := range r.players {
		out[i] = p.Public()
	}
	return out
}

// kill marks the player dead. Returns false if the player was already dead
// or unknown, which callers treat as an invariant breach.
func (r *Roster) kill(id PlayerID) bool {
	p, ok := r.byID[id]
	if !ok || !p.Alive {
		return false
	}
	p.Alive = false
	return true
}

// convert flips a living player to the given role.
func (r *Roster) convert(id PlayerID, role Role) bool {
	p, ok := r.byID[id]
	if !ok || !p.Alive {
		return false
	}
	p.Role = role
	return true
}

// sortedIDs returns IDs in lexical order, used wherever map iteration order
// would otherwise leak into random draws.
func sortedIDs(ids []PlayerID) []PlayerID {
	out := make([]PlayerID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
