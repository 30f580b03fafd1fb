package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrGameRunning is returned when an export is requested before Run has
// finished.
var ErrGameRunning = errors.New("game still running")

// RosterEntry is a player's final state in an export.
type RosterEntry struct {
	ID     PlayerID           `json:"id"`
	Name   string             `json:"name"`
	Role   Role               `json:"role"`
	Alive  bool               `json:"alive"`
	Traits map[string]float64 `json:"traits"`
	Skills map[string]float64 `json:"skills"`
}

// VoteRoundExport is one completed vote round with both the raw ballots
// and the voter-to-target record.
type VoteRoundExport struct {
	Day     int        `json:"day"`
	Round   int        `json:"round"`
	Record  VoteRecord `json:"record"`
	Ballots []Ballot   `json:"ballots"`
}

// Export is the complete, self-contained record of one finished game. It
// contains everything needed to reconstruct the timeline without replaying
// any decisions.
type Export struct {
	GameID string `json:"game_id"`
	Seed   int64  `json:"seed"`
	Config Config `json:"config"`

	Winner   Role             `json:"winner"`
	Reason   EndReason        `json:"reason"`
	Days     int              `json:"days"`
	Pot      int              `json:"pot"`
	PotSplit map[PlayerID]int `json:"pot_split,omitempty"`

	Roster    []RosterEntry       `json:"roster"`
	Events    []Event             `json:"events"`
	Suspicion []SuspicionSnapshot `json:"suspicion"`
	Votes     []VoteRoundExport   `json:"votes"`
}

// Export captures the finished game. It fails if the game is still in
// progress.
func (g *Game) Export() (*Export, error) {
	if g.outcome == nil {
		return nil, ErrGameRunning
	}

	roster := make([]RosterEntry, 0, g.roster.Len())
	for _, p := range g.roster.All() {
		roster = append(roster, RosterEntry{
			ID:     p.ID,
			Name:   p.Name,
			Role:   p.Role,
			Alive:  p.Alive,
			Traits: p.Traits.Map(),
			Skills: p.Skills.Map(),
		})
	}

	votes := make([]VoteRoundExport, 0, len(g.voteRounds))
	for _, r := range g.voteRounds {
		votes = append(votes, VoteRoundExport{
			Day:     r.Day,
			Round:   r.Round,
			Record:  r.record(),
			Ballots: append([]Ballot(nil), r.Ballots...),
		})
	}

	return &Export{
		GameID:    g.id,
		Seed:      g.seed,
		Config:    g.cfg,
		Winner:    g.outcome.Winner,
		Reason:    g.outcome.Reason,
		Days:      g.outcome.Days,
		Pot:       g.outcome.Pot,
		PotSplit:  g.outcome.PotSplit,
		Roster:    roster,
		Events:    g.events.Events(),
		Suspicion: append([]SuspicionSnapshot(nil), g.snapshots...),
		Votes:     votes,
	}, nil
}

// WriteJSON writes the export as indented JSON.
func (e *Export) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// ReadExport parses and validates an export previously written by
// WriteJSON.
func ReadExport(r io.Reader) (*Export, error) {
	var e Export
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the structural invariants a well-formed export carries.
func (e *Export) Validate() error {
	if e.GameID == "" {
		return errors.New("export missing game_id")
	}
	if len(e.Roster) == 0 {
		return errors.New("export has empty roster")
	}
	for i, ev := range e.Events {
		if ev.Seq != i {
			return fmt.Errorf("event %d has sequence %d, log is not contiguous", i, ev.Seq)
		}
	}
	ids := make(map[PlayerID]bool, len(e.Roster))
	for _, p := range e.Roster {
		if ids[p.ID] {
			return fmt.Errorf("duplicate roster entry %q", p.ID)
		}
		ids[p.ID] = true
	}
	return nil
}

// Names maps player IDs to display names.
func (e *Export) Names() map[PlayerID]string {
	out := make(map[PlayerID]string, len(e.Roster))
	for _, p := range e.Roster {
		out[p.ID] = p.Name
	}
	return out
}

// DayEvents returns the events of one day in log order.
func (e *Export) DayEvents(day int) []Event {
	var out []Event
	for _, ev := range e.Events {
		if ev.Day == day {
			out = append(out, ev)
		}
	}
	return out
}
