// Package scenario loads HCL scenario files: engine settings plus a named
// cast with trait profiles and per-contestant decision providers. A
// scenario overrides only what it mentions, so a two-line file still plays
// a full game.
package scenario

import (
	"fmt"
	rand "math/rand/v2"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/persona"
)

// Provider kinds a contestant block may name.
const (
	ProviderScripted = "scripted"
	ProviderHuman    = "human"
	ProviderHTTP     = "http"
	ProviderLua      = "lua"
)

var validProviders = map[string]bool{
	ProviderScripted: true,
	ProviderHuman:    true,
	ProviderHTTP:     true,
	ProviderLua:      true,
}

// GameSettings overrides engine configuration. Zero values and nil
// pointers mean "keep the base config's value".
type GameSettings struct {
	Players     int    `hcl:"players,optional"`
	Adversaries int    `hcl:"adversaries,optional"`
	MaxDays     int    `hcl:"max_days,optional"`
	TieBreak    string `hcl:"tie_break,optional"`
	Seed        int64  `hcl:"seed,optional"`

	// DecisionTimeout is a duration string like "5s".
	DecisionTimeout string `hcl:"decision_timeout,optional"`

	Recruitment     *bool `hcl:"recruitment,optional"`
	ProtectionToken *bool `hcl:"protection_token,optional"`
	RevealToken     *bool `hcl:"reveal_token,optional"`
	BiasedArrivals  *bool `hcl:"biased_arrivals,optional"`

	// DoubleVoteDays replaces the base list when present; an explicit
	// empty list disables the token.
	DoubleVoteDays []int `hcl:"double_vote_days,optional"`

	RevealMinDay         *int `hcl:"reveal_min_day,optional"`
	EndgameThreshold     *int `hcl:"endgame_threshold,optional"`
	RestrictedKillMargin *int `hcl:"restricted_kill_margin,optional"`
	ChallengePrize       *int `hcl:"challenge_prize,optional"`
}

// Contestant is one named cast member.
type Contestant struct {
	Name string
	Slug game.PlayerID

	// Traits and Skills replace the whole generated profile when present;
	// dimensions they omit sit at 0.5. Nil keeps the generated profile.
	Traits map[string]float64
	Skills map[string]float64

	Provider string
	Script   string // lua only, resolved relative to the scenario file
	URL      string // http only
}

// Scenario is a parsed and validated scenario file.
type Scenario struct {
	Game        GameSettings
	Contestants []Contestant
}

type fileSchema struct {
	Game        *GameSettings     `hcl:"game,block"`
	Contestants []contestantBlock `hcl:"contestant,block"`
}

type contestantBlock struct {
	Name     string             `hcl:"name,label"`
	Traits   map[string]float64 `hcl:"traits,optional"`
	Skills   map[string]float64 `hcl:"skills,optional"`
	Provider string             `hcl:"provider,optional"`
	Script   string             `hcl:"script,optional"`
	URL      string             `hcl:"url,optional"`
}

// Load parses and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	s := &Scenario{}
	if schema.Game != nil {
		s.Game = *schema.Game
	}
	dir := filepath.Dir(path)
	for _, b := range schema.Contestants {
		c := Contestant{
			Name:     b.Name,
			Slug:     game.PlayerID(persona.Slug(b.Name)),
			Traits:   b.Traits,
			Skills:   b.Skills,
			Provider: b.Provider,
			Script:   b.Script,
			URL:      b.URL,
		}
		if c.Provider == "" {
			c.Provider = ProviderScripted
		}
		if c.Script != "" && !filepath.IsAbs(c.Script) {
			c.Script = filepath.Join(dir, c.Script)
		}
		s.Contestants = append(s.Contestants, c)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the scenario for contradictions the HCL schema cannot
// express.
func (s *Scenario) Validate() error {
	seen := make(map[game.PlayerID]string, len(s.Contestants))
	for _, c := range s.Contestants {
		if prev, ok := seen[c.Slug]; ok {
			return fmt.Errorf("contestants %q and %q collide on id %q", prev, c.Name, c.Slug)
		}
		seen[c.Slug] = c.Name

		if !validProviders[c.Provider] {
			return fmt.Errorf("contestant %q: unknown provider %q", c.Name, c.Provider)
		}
		if c.Provider == ProviderLua && c.Script == "" {
			return fmt.Errorf("contestant %q: the lua provider needs a script", c.Name)
		}
		if c.Provider != ProviderLua && c.Script != "" {
			return fmt.Errorf("contestant %q: script is only valid with the lua provider", c.Name)
		}
		if c.Provider == ProviderHTTP && c.URL == "" {
			return fmt.Errorf("contestant %q: the http provider needs a url", c.Name)
		}
		if c.Provider != ProviderHTTP && c.URL != "" {
			return fmt.Errorf("contestant %q: url is only valid with the http provider", c.Name)
		}
		if _, err := game.TraitsFromMap(c.Traits); err != nil {
			return fmt.Errorf("contestant %q: %w", c.Name, err)
		}
		if _, err := game.SkillsFromMap(c.Skills); err != nil {
			return fmt.Errorf("contestant %q: %w", c.Name, err)
		}
	}
	if s.Game.Players > 0 && len(s.Contestants) > s.Game.Players {
		return fmt.Errorf("%d contestants but only %d seats", len(s.Contestants), s.Game.Players)
	}
	return nil
}

// Apply overlays the scenario's settings on base and validates the result.
func (s *Scenario) Apply(base game.Config) (game.Config, error) {
	cfg := base
	g := s.Game
	if g.Players > 0 {
		cfg.Players = g.Players
	}
	if g.Adversaries > 0 {
		cfg.Adversaries = g.Adversaries
	}
	if g.MaxDays > 0 {
		cfg.MaxDays = g.MaxDays
	}
	if g.TieBreak != "" {
		cfg.TieBreak = game.TieBreak(g.TieBreak)
	}
	if g.Seed != 0 {
		cfg.Seed = g.Seed
	}
	if g.DecisionTimeout != "" {
		d, err := time.ParseDuration(g.DecisionTimeout)
		if err != nil {
			return cfg, fmt.Errorf("decision_timeout: %w", err)
		}
		cfg.DecisionTimeout = d
	}
	if g.Recruitment != nil {
		cfg.Recruitment = *g.Recruitment
	}
	if g.ProtectionToken != nil {
		cfg.ProtectionToken = *g.ProtectionToken
	}
	if g.RevealToken != nil {
		cfg.RevealToken = *g.RevealToken
	}
	if g.BiasedArrivals != nil {
		cfg.BiasedArrivals = *g.BiasedArrivals
	}
	if g.DoubleVoteDays != nil {
		cfg.DoubleVoteDays = g.DoubleVoteDays
	}
	if g.RevealMinDay != nil {
		cfg.RevealMinDay = *g.RevealMinDay
	}
	if g.EndgameThreshold != nil {
		cfg.EndgameThreshold = *g.EndgameThreshold
	}
	if g.RestrictedKillMargin != nil {
		cfg.RestrictedKillMargin = *g.RestrictedKillMargin
	}
	if g.ChallengePrize != nil {
		cfg.ChallengePrize = *g.ChallengePrize
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid game settings: %w", err)
	}
	return cfg, nil
}

// Cast seats the table: named contestants take the first seats, generated
// personas fill the rest. The returned map keys each named contestant by
// final seat id, for provider binding.
func (s *Scenario) Cast(rng *rand.Rand, n int) ([]game.Contestant, map[game.PlayerID]Contestant, error) {
	if len(s.Contestants) > n {
		return nil, nil, fmt.Errorf("%d contestants but only %d seats", len(s.Contestants), n)
	}
	cast := persona.Generate(rng, n)
	used := make(map[game.PlayerID]bool, n)
	for _, c := range cast {
		used[c.ID] = true
	}

	named := make(map[game.PlayerID]Contestant, len(s.Contestants))
	for i, sc := range s.Contestants {
		delete(used, cast[i].ID)
		id := sc.Slug
		for used[id] {
			id += "x"
		}
		used[id] = true

		cast[i].ID = id
		cast[i].Name = sc.Name
		if sc.Traits != nil {
			t, err := game.TraitsFromMap(sc.Traits)
			if err != nil {
				return nil, nil, fmt.Errorf("contestant %q: %w", sc.Name, err)
			}
			cast[i].Traits = t
		}
		if sc.Skills != nil {
			sk, err := game.SkillsFromMap(sc.Skills)
			if err != nil {
				return nil, nil, fmt.Errorf("contestant %q: %w", sc.Name, err)
			}
			cast[i].Skills = sk
		}
		named[id] = sc
	}
	return cast, named, nil
}
