package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	rand "math/rand/v2"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/cmd/traitorsforbots/shared"
	"github.com/lox/traitorsforbots/internal/archive"
	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/gameid"
	"github.com/lox/traitorsforbots/internal/persona"
	"github.com/lox/traitorsforbots/internal/provider/httpprov"
	"github.com/lox/traitorsforbots/internal/provider/human"
	"github.com/lox/traitorsforbots/internal/provider/luaprov"
	"github.com/lox/traitorsforbots/internal/provider/scripted"
	"github.com/lox/traitorsforbots/internal/randutil"
	"github.com/lox/traitorsforbots/internal/scenario"
	"github.com/lox/traitorsforbots/internal/tui"
)

// RunCmd plays a single game. Settings resolve in three layers: compiled
// defaults, then the scenario file, then explicit flags.
type RunCmd struct {
	Players     *int     `help:"Number of contestants"`
	Adversaries *int     `help:"Number of starting adversaries"`
	MaxDays     *int     `help:"Day cap before the game ends in a split"`
	Seed        *int64   `help:"Deterministic RNG seed (omit for random)"`
	TieBreak    *string  `help:"Tie-break policy (random|revote|countback)"`
	Scenario    string   `type:"existingfile" help:"HCL scenario file"`
	Human       string   `help:"Seat a human-played contestant with this name"`
	ProviderURL []string `help:"HTTP decision service URL, one seat each (repeatable)"`
	Watch       bool     `help:"Watch the game play out in a live TUI"`
	Export      string   `help:"Write the finished game's JSON export here ('-' for stdout)"`
	Archive     string   `help:"Append the finished game to this sqlite archive"`
	Debug       bool     `help:"Enable debug logging"`
}

func (c *RunCmd) Run() error {
	if c.Watch && c.Human != "" {
		return errors.New("--watch and --human both want the terminal; pick one")
	}

	logger := shared.SetupLogger(c.Debug)
	if c.Watch {
		// The alt screen owns the terminal.
		logger = zerolog.Nop()
	}

	cfg := game.DefaultConfig()
	var sc *scenario.Scenario
	if c.Scenario != "" {
		var err error
		sc, err = scenario.Load(c.Scenario)
		if err != nil {
			return err
		}
		cfg, err = sc.Apply(cfg)
		if err != nil {
			return err
		}
	}
	c.applyFlags(&cfg)
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rng := randutil.New(cfg.Seed)

	cast, named, err := buildCast(sc, rng, cfg.Players)
	if err != nil {
		return err
	}
	humanID, err := seatHuman(cast, named, c.Human)
	if err != nil {
		return err
	}
	if humanID != "" && cfg.DecisionTimeout == game.DefaultConfig().DecisionTimeout {
		// Ten seconds suits bots; terminal players need room to read.
		cfg.DecisionTimeout = 5 * time.Minute
	}

	reg, err := c.bindProviders(logger, rng, cast, named, humanID)
	if err != nil {
		return err
	}

	id := gameid.New()
	opts := []game.Option{
		game.WithLogger(logger),
		game.WithRNG(rng),
		game.WithProviders(reg),
		game.WithGameID(id),
	}

	var model *tui.Model
	switch {
	case c.Watch:
		model = tui.NewModel(id, cast, cfg.MaxDays)
		opts = append(opts, game.WithSinks(model.Sink()))
	case humanID == "":
		// With a human seated the prompt surface owns stdout, so the
		// plain feed only runs for pure bot games.
		opts = append(opts, game.WithSinks(feedSink(os.Stdout)))
	}

	g, err := game.NewGame(cfg, cast, opts...)
	if err != nil {
		return err
	}
	logger.Info().
		Str("game_id", id).
		Int64("seed", cfg.Seed).
		Int("players", cfg.Players).
		Int("adversaries", cfg.Adversaries).
		Msg("Starting game")

	ctx := shared.SetupSignalHandler()
	if c.Watch {
		return c.runWatched(ctx, g, model)
	}

	outcome, err := g.Run(ctx)
	if err != nil {
		return err
	}
	printOutcome(os.Stdout, g, outcome)
	return c.saveResults(g)
}

func (c *RunCmd) applyFlags(cfg *game.Config) {
	if c.Players != nil {
		cfg.Players = *c.Players
	}
	if c.Adversaries != nil {
		cfg.Adversaries = *c.Adversaries
	}
	if c.MaxDays != nil {
		cfg.MaxDays = *c.MaxDays
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	if c.TieBreak != nil {
		cfg.TieBreak = game.TieBreak(*c.TieBreak)
	}
}

func buildCast(sc *scenario.Scenario, rng *rand.Rand, n int) ([]game.Contestant, map[game.PlayerID]scenario.Contestant, error) {
	if sc != nil {
		return sc.Cast(rng, n)
	}
	return persona.Generate(rng, n), nil, nil
}

// seatHuman renames a seat for the terminal player. A scenario contestant
// with the same name keeps their scripted profile and simply changes
// hands; otherwise the first generated seat is recast.
func seatHuman(cast []game.Contestant, named map[game.PlayerID]scenario.Contestant, name string) (game.PlayerID, error) {
	if name == "" {
		return "", nil
	}
	slug := game.PlayerID(persona.Slug(name))
	for i := range cast {
		if cast[i].ID == slug {
			return slug, nil
		}
	}
	for i := range cast {
		if _, taken := named[cast[i].ID]; taken {
			continue
		}
		id := slug
		for hasOtherID(cast, i, id) {
			id += "x"
		}
		cast[i].ID = id
		cast[i].Name = name
		return id, nil
	}
	return "", fmt.Errorf("no free seat for %s: all %d contestants are named in the scenario", name, len(cast))
}

func hasOtherID(cast []game.Contestant, skip int, id game.PlayerID) bool {
	for i := range cast {
		if i != skip && cast[i].ID == id {
			return true
		}
	}
	return false
}

func (c *RunCmd) bindProviders(logger zerolog.Logger, rng *rand.Rand, cast []game.Contestant, named map[game.PlayerID]scenario.Contestant, humanID game.PlayerID) (*game.Registry, error) {
	reg := game.NewRegistry()
	urls := slices.Clone(c.ProviderURL)

	for i := range cast {
		ct := cast[i]
		if ct.ID == humanID {
			reg.Bind(ct.ID, human.New(os.Stdin, os.Stdout, human.WithLogger(logger)))
			continue
		}
		if nc, ok := named[ct.ID]; ok {
			p, err := scenarioProvider(logger, rng, ct, nc)
			if err != nil {
				return nil, fmt.Errorf("contestant %q: %w", nc.Name, err)
			}
			reg.Bind(ct.ID, p)
			continue
		}
		if len(urls) > 0 {
			reg.Bind(ct.ID, httpprov.NewClient(urls[0], httpprov.WithLogger(logger)))
			urls = urls[1:]
			continue
		}
		reg.Bind(ct.ID, scripted.New(ct.Traits, randutil.New(rng.Int64())))
	}
	if len(urls) > 0 {
		return nil, fmt.Errorf("%d provider URLs left over after filling every free seat", len(urls))
	}
	return reg, nil
}

func scenarioProvider(logger zerolog.Logger, rng *rand.Rand, ct game.Contestant, nc scenario.Contestant) (game.DecisionProvider, error) {
	switch nc.Provider {
	case scenario.ProviderHuman:
		return human.New(os.Stdin, os.Stdout, human.WithLogger(logger)), nil
	case scenario.ProviderLua:
		return luaprov.New(nc.Script, luaprov.WithLogger(logger))
	case scenario.ProviderHTTP:
		return httpprov.NewClient(nc.URL, httpprov.WithLogger(logger)), nil
	default:
		return scripted.New(ct.Traits, randutil.New(rng.Int64())), nil
	}
}

func (c *RunCmd) runWatched(ctx context.Context, g *game.Game, model *tui.Model) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		outcome *game.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := g.Run(ctx)
		model.Finish(outcome, err)
		done <- result{outcome: outcome, err: err}
	}()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	cancel()
	res := <-done
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			// The viewer quit mid-game.
			return nil
		}
		return res.err
	}
	printOutcome(os.Stdout, g, res.outcome)
	return c.saveResults(g)
}

// feedSink prints each event as it lands, the plain-text cousin of the
// watch TUI.
func feedSink(w io.Writer) game.Sink {
	return game.SinkFunc(func(e game.Event) error {
		line := e.Narrative
		if line == "" {
			line = string(e.Type)
		}
		marker := ""
		if e.Hidden {
			marker = " [hidden]"
		}
		fmt.Fprintf(w, "[d%02d %-9s] %s%s\n", e.Day, e.Phase, line, marker)
		return nil
	})
}

func printOutcome(w io.Writer, g *game.Game, o *game.Outcome) {
	fmt.Fprintf(w, "\n=== OUTCOME ===\n")
	fmt.Fprintf(w, "Game:   %s (seed %d)\n", o.GameID, g.Seed())
	fmt.Fprintf(w, "Winner: %s (%s) after %d days\n", winnerNoun(o.Winner), o.Reason, o.Days)
	fmt.Fprintf(w, "Pot:    %d\n", o.Pot)
	for _, id := range slices.Sorted(maps.Keys(o.PotSplit)) {
		fmt.Fprintf(w, "  %-16s %d\n", id, o.PotSplit[id])
	}
}

func winnerNoun(r game.Role) string {
	switch r {
	case game.RoleInnocent:
		return "innocents"
	case game.RoleAdversary:
		return "adversaries"
	}
	return string(r)
}

func (c *RunCmd) saveResults(g *game.Game) error {
	if c.Export == "" && c.Archive == "" {
		return nil
	}
	e, err := g.Export()
	if err != nil {
		return err
	}
	if c.Export != "" {
		if err := writeExport(e, c.Export); err != nil {
			return err
		}
	}
	if c.Archive != "" {
		if err := archiveExport(e, c.Archive); err != nil {
			return err
		}
	}
	return nil
}

func writeExport(e *game.Export, path string) error {
	if path == "-" {
		return e.WriteJSON(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := e.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func archiveExport(e *game.Export, path string) error {
	store, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.SaveExport(ctx, e); err != nil {
		return fmt.Errorf("archive game: %w", err)
	}
	return nil
}
