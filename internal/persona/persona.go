// Package persona supplies contestant casts: stable IDs, display names and
// trait/skill profiles. The generator is deterministic for a given RNG, so a
// seeded game always casts the same table.
package persona

import (
	"fmt"
	rand "math/rand/v2"
	"strings"

	"github.com/lox/traitorsforbots/internal/game"
)

// namePool is the casting sheet the generator draws from. Names repeat with
// a numeric suffix once the pool runs dry.
var namePool = []string{
	"Alba", "Bram", "Cleo", "Darragh", "Esme", "Fintan", "Greta", "Harlan",
	"Imogen", "Joss", "Kerensa", "Lachlan", "Maeve", "Niall", "Orla", "Piers",
	"Quinn", "Romilly", "Sorcha", "Tobias", "Una", "Vaughn", "Wren", "Yusuf",
	"Zadie", "Callum", "Delphine", "Ewan", "Freya", "Gideon", "Hester", "Ivo",
}

// Archetype is a trait/skill template a generated contestant is jittered
// from.
type Archetype struct {
	Name   string
	Traits game.Traits
	Skills game.Skills
}

// Trait order: boldness, paranoia, loyalty, deceit, charisma.
// Skill order: strength, agility, wits, nerve.
var archetypes = []Archetype{
	{
		Name:   "firebrand",
		Traits: game.Traits{0.85, 0.30, 0.50, 0.40, 0.70},
		Skills: game.Skills{0.70, 0.60, 0.45, 0.80},
	},
	{
		Name:   "analyst",
		Traits: game.Traits{0.35, 0.75, 0.60, 0.30, 0.40},
		Skills: game.Skills{0.35, 0.40, 0.85, 0.55},
	},
	{
		Name:   "charmer",
		Traits: game.Traits{0.60, 0.35, 0.45, 0.65, 0.90},
		Skills: game.Skills{0.50, 0.60, 0.60, 0.60},
	},
	{
		Name:   "loyalist",
		Traits: game.Traits{0.40, 0.50, 0.90, 0.15, 0.55},
		Skills: game.Skills{0.55, 0.50, 0.50, 0.50},
	},
	{
		Name:   "survivor",
		Traits: game.Traits{0.20, 0.60, 0.50, 0.50, 0.30},
		Skills: game.Skills{0.40, 0.55, 0.60, 0.45},
	},
	{
		Name:   "wildcard",
		Traits: game.Traits{0.70, 0.45, 0.30, 0.70, 0.60},
		Skills: game.Skills{0.60, 0.70, 0.50, 0.70},
	},
}

// jitterAmount bounds how far a generated profile strays from its
// archetype. Large enough that two charmers play differently, small enough
// that the archetype still shows.
const jitterAmount = 0.12

// Archetypes returns the built-in templates in a copy callers may reorder.
func Archetypes() []Archetype {
	out := make([]Archetype, len(archetypes))
	copy(out, archetypes)
	return out
}

// Generate casts n contestants with distinct IDs, pool names and jittered
// archetype profiles. Archetypes rotate so every table seats a mix.
func Generate(rng *rand.Rand, n int) []game.Contestant {
	names := make([]string, len(namePool))
	copy(names, namePool)
	rng.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})

	cast := make([]game.Contestant, 0, n)
	seen := make(map[game.PlayerID]bool, n)
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		if round := i / len(names); round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}

		id := game.PlayerID(Slug(name))
		for seen[id] {
			id += "x"
		}
		seen[id] = true

		arch := archetypes[i%len(archetypes)]
		cast = append(cast, game.Contestant{
			ID:     id,
			Name:   name,
			Traits: jitterTraits(rng, arch.Traits),
			Skills: jitterSkills(rng, arch.Skills),
		})
	}
	return cast
}

// FromProfile builds a single contestant from explicit values, sanitizing
// the profile the same way Generate does. Scenario files use this for named
// casts.
func FromProfile(id, name string, traits game.Traits, skills game.Skills) game.Contestant {
	if id == "" {
		id = Slug(name)
	}
	return game.Contestant{
		ID:     game.PlayerID(id),
		Name:   name,
		Traits: traits.Sanitized(),
		Skills: skills.Sanitized(),
	}
}

// Slug lowercases a display name into an ID-safe token.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "player"
	}
	return b.String()
}

func jitterTraits(rng *rand.Rand, base game.Traits) game.Traits {
	var out game.Traits
	for i, v := range base {
		out[i] = jitter(rng, v)
	}
	return out.Sanitized()
}

func jitterSkills(rng *rand.Rand, base game.Skills) game.Skills {
	var out game.Skills
	for i, v := range base {
		out[i] = jitter(rng, v)
	}
	return out.Sanitized()
}

func jitter(rng *rand.Rand, v float64) float64 {
	return v + (rng.Float64()*2-1)*jitterAmount
}
