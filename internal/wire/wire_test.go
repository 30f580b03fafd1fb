package wire

import (
	"reflect"
	"testing"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/protocol"
)

func TestViewRoundTrip(t *testing.T) {
	t.Parallel()

	traits := game.Traits{0.7, 0.2, 0.5, 0.9, 0.4}
	skills := game.Skills{0.6, 0.3, 0.8, 0.5}
	v := game.PlayerView{
		GameID:  "0123456789abcdefghjkmnpqrs",
		Day:     3,
		MaxDays: 12,
		Phase:   game.PhaseVote,
		Pot:     4500,
		You:     game.PublicPlayer{ID: "maeve", Name: "Maeve", Alive: true, DoubleVote: true},
		Role:    game.RoleAdversary,
		Traits:  traits,
		Skills:  skills,
		Players: []game.PublicPlayer{
			{ID: "maeve", Name: "Maeve", Alive: true, DoubleVote: true},
			{ID: "bram", Name: "Bram", Alive: true, Protection: true},
		},
		Allies:    []game.PlayerID{"bram"},
		Suspicion: map[game.PlayerID]float64{"bram": 0.2},
		Events: []game.Event{
			{Seq: 1, Day: 3, Phase: game.PhaseVote, Type: game.EventTypeBallot, Actor: "maeve", Target: "bram"},
		},
	}

	got := ViewToGame(ViewFromGame(v))
	if !reflect.DeepEqual(got, v) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, v)
	}
}

func TestViewToGameSanitizesMissingProfiles(t *testing.T) {
	t.Parallel()

	got := ViewToGame(protocol.View{Phase: "night"})
	if got.Traits != game.DefaultTraits() {
		t.Errorf("expected default traits for empty wire view, got %v", got.Traits)
	}
	if got.Skills != game.DefaultSkills() {
		t.Errorf("expected default skills for empty wire view, got %v", got.Skills)
	}
}

func TestParseTokenKind(t *testing.T) {
	t.Parallel()

	for _, k := range []game.TokenKind{game.TokenProtection, game.TokenDoubleVote, game.TokenReveal} {
		got, err := ParseTokenKind(k.String())
		if err != nil {
			t.Fatalf("ParseTokenKind(%q): %v", k, err)
		}
		if got != k {
			t.Errorf("ParseTokenKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseTokenKind("immunity"); err == nil {
		t.Error("expected error for unknown token kind")
	}
}

func TestShiftsRoundTrip(t *testing.T) {
	t.Parallel()

	in := []game.SuspicionShift{{Target: "bram", Delta: -0.1}, {Target: "cleo", Delta: 0.05}}
	got := ShiftsToGame(ShiftsFromGame(in))
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip mismatch: got %v want %v", got, in)
	}
}
