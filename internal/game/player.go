package game

import (
	"fmt"
	"math"
)

// PlayerID uniquely identifies a player within one game.
type PlayerID string

// Role is a player's hidden allegiance.
type Role string

const (
	RoleInnocent  Role = "innocent"
	RoleAdversary Role = "adversary"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Trait indexes a personality dimension. Traits never drive engine rules
// directly; they are handed to decision providers to bias behaviour.
type Trait int

const (
	TraitBoldness Trait = iota
	TraitParanoia
	TraitLoyalty
	TraitDeceit
	TraitCharisma
	traitCount
)

var traitNames = [traitCount]string{"boldness", "paranoia", "loyalty", "deceit", "charisma"}

// String returns the trait's wire name.
func (t Trait) String() string {
	if t < 0 || t >= traitCount {
		return fmt.Sprintf("trait(%d)", int(t))
	}
	return traitNames[t]
}

// AllTraits lists every trait in index order.
func AllTraits() []Trait {
	out := make([]Trait, traitCount)
	for i := range out {
		out[i] = Trait(i)
	}
	return out
}

// Traits holds one value per Trait, each in [0, 1].
type Traits [traitCount]float64

// DefaultTraits returns a neutral profile with every trait at 0.5.
func DefaultTraits() Traits {
	var t Traits
	for i := range t {
		t[i] = 0.5
	}
	return t
}

// Get returns the value for trait k, or 0.5 for an out-of-range key.
func (t Traits) Get(k Trait) float64 {
	if k < 0 || k >= traitCount {
		return 0.5
	}
	return t[k]
}

// Sanitized returns a copy with every value clamped to [0, 1] and NaNs
// replaced by the 0.5 default.
func (t Traits) Sanitized() Traits {
	for i, v := range t {
		t[i] = sanitizeUnit(v)
	}
	return t
}

// Map renders the profile as a name-keyed map for export and wire payloads.
func (t Traits) Map() map[string]float64 {
	m := make(map[string]float64, traitCount)
	for i, v := range t {
		m[Trait(i).String()] = v
	}
	return m
}

// TraitsFromMap is the inverse of Map, for profiles written by hand in
// config files. Omitted traits sit at the 0.5 default; unknown names and
// out-of-range values are errors so typos surface instead of clamping.
func TraitsFromMap(m map[string]float64) (Traits, error) {
	t := DefaultTraits()
	for name, v := range m {
		idx := -1
		for i, n := range traitNames {
			if n == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return t, fmt.Errorf("unknown trait %q", name)
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return t, fmt.Errorf("trait %s = %v is outside [0, 1]", name, v)
		}
		t[idx] = v
	}
	return t, nil
}

// Skill indexes a physical or mental aptitude used to score challenges.
type Skill int

const (
	SkillStrength Skill = iota
	SkillAgility
	SkillWits
	SkillNerve
	skillCount
)

var skillNames = [skillCount]string{"strength", "agility", "wits", "nerve"}

// String returns the skill's wire name.
func (s Skill) String() string {
	if s < 0 || s >= skillCount {
		return fmt.Sprintf("skill(%d)", int(s))
	}
	return skillNames[s]
}

// Skills holds one value per Skill, each in [0, 1].
type Skills [skillCount]float64

// DefaultSkills returns an average profile with every skill at 0.5.
func DefaultSkills() Skills {
	var s Skills
	for i := range s {
		s[i] = 0.5
	}
	return s
}

// Get returns the value for skill k, or 0.5 for an out-of-range key.
func (s Skills) Get(k Skill) float64 {
	if k < 0 || k >= skillCount {
		return 0.5
	}
	return s[k]
}

// Sanitized returns a copy with every value clamped to [0, 1] and NaNs
// replaced by the 0.5 default.
func (s Skills) Sanitized() Skills {
	for i, v := range s {
		s[i] = sanitizeUnit(v)
	}
	return s
}

// Map renders the profile as a name-keyed map for export and wire payloads.
func (s Skills) Map() map[string]float64 {
	m := make(map[string]float64, skillCount)
	for i, v := range s {
		m[Skill(i).String()] = v
	}
	return m
}

// SkillsFromMap is the inverse of Map, with the same strictness as
// TraitsFromMap.
func SkillsFromMap(m map[string]float64) (Skills, error) {
	s := DefaultSkills()
	for name, v := range m {
		idx := -1
		for i, n := range skillNames {
			if n == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s, fmt.Errorf("unknown skill %q", name)
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return s, fmt.Errorf("skill %s = %v is outside [0, 1]", name, v)
		}
		s[idx] = v
	}
	return s, nil
}

// Player is one contestant. Role and token flags are mutated only by the
// game orchestrator; everything handed to decision providers is a copy.
type Player struct {
	ID    PlayerID
	Name  string
	Role  Role
	Alive bool

	// Token flags. The TokenManager keeps the single-holder invariant.
	Protection bool
	DoubleVote bool
	Reveal     bool

	Traits Traits
	Skills Skills
}

// IsAdversary reports whether the player is currently on the adversary team.
func (p *Player) IsAdversary() bool {
	return p.Role == RoleAdversary
}

// Public returns the externally visible view of the player. Token holdings
// are public knowledge at the table; roles are not.
func (p *Player) Public() PublicPlayer {
	return PublicPlayer{
		ID:         p.ID,
		Name:       p.Name,
		Alive:      p.Alive,
		Protection: p.Protection,
		DoubleVote: p.DoubleVote,
		Reveal:     p.Reveal,
	}
}

// PublicPlayer is the role-free projection of a Player shared with every
// decision provider and event consumer.
type PublicPlayer struct {
	ID         PlayerID `json:"id"`
	Name       string   `json:"name"`
	Alive      bool     `json:"alive"`
	Protection bool     `json:"protection,omitempty"`
	DoubleVote bool     `json:"double_vote,omitempty"`
	Reveal     bool     `json:"reveal,omitempty"`
}

func sanitizeUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return clampUnit(v)
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
