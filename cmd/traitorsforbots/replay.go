package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lox/traitorsforbots/internal/archive"
	"github.com/lox/traitorsforbots/internal/game"
)

// ReplayCmd prints the reconstructed timeline of a finished game from a
// JSON export or a sqlite archive, without replaying any decisions.
type ReplayCmd struct {
	From string `required:"" type:"existingfile" help:"Export JSON file or sqlite archive"`
	Game string `help:"Game ID to load from an archive (default: most recent)"`
}

func (c *ReplayCmd) Run() error {
	e, err := c.loadExport()
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("export %s: %w", c.From, err)
	}
	printTimeline(os.Stdout, e)
	return nil
}

func (c *ReplayCmd) loadExport() (*game.Export, error) {
	if strings.EqualFold(filepath.Ext(c.From), ".json") {
		if c.Game != "" {
			return nil, fmt.Errorf("--game only applies to archives; %s holds a single game", c.From)
		}
		f, err := os.Open(c.From)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return game.ReadExport(f)
	}

	store, err := archive.Open(c.From)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Game
	if id == "" {
		id, err = store.LatestGameID(ctx)
		if err != nil {
			return nil, err
		}
	}
	return store.LoadExport(ctx, id)
}

func printTimeline(w io.Writer, e *game.Export) {
	fmt.Fprintf(w, "=== GAME %s ===\n", e.GameID)
	fmt.Fprintf(w, "Seed:   %d\n", e.Seed)
	fmt.Fprintf(w, "Cast:   %d contestants, %d adversaries\n", e.Config.Players, e.Config.Adversaries)
	fmt.Fprintf(w, "Result: %s (%s) after %d days, pot %d\n", winnerNoun(e.Winner), e.Reason, e.Days, e.Pot)

	day := -1
	for _, ev := range e.Events {
		if ev.Day != day {
			day = ev.Day
			if day == 0 {
				fmt.Fprintf(w, "\n--- Casting ---\n")
			} else {
				fmt.Fprintf(w, "\n--- Day %d ---\n", day)
			}
		}
		line := ev.Narrative
		if line == "" {
			line = string(ev.Type)
		}
		marker := ""
		if ev.Hidden {
			marker = " [hidden]"
		}
		fmt.Fprintf(w, "[%-9s] %s%s\n", ev.Phase, line, marker)
	}

	fmt.Fprintf(w, "\n--- Final roster ---\n")
	for _, r := range e.Roster {
		state := "alive"
		if !r.Alive {
			state = "dead"
		}
		fmt.Fprintf(w, "%-16s %-10s %s\n", r.Name, r.Role, state)
	}

	if len(e.PotSplit) > 0 {
		fmt.Fprintf(w, "\n--- Pot split ---\n")
		for _, id := range slices.Sorted(maps.Keys(e.PotSplit)) {
			fmt.Fprintf(w, "%-16s %d\n", id, e.PotSplit[id])
		}
	}
}
