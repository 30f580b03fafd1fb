package persona

import (
	"testing"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/randutil"
)

func TestGenerateDistinctIDs(t *testing.T) {
	t.Parallel()

	// More contestants than the name pool forces suffixed reuse.
	cast := Generate(randutil.New(7), len(namePool)+10)

	seen := make(map[game.PlayerID]bool)
	for _, c := range cast {
		if c.ID == "" || c.Name == "" {
			t.Fatalf("contestant missing identity: %+v", c)
		}
		if seen[c.ID] {
			t.Fatalf("duplicate id %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestGenerateProfilesInRange(t *testing.T) {
	t.Parallel()

	cast := Generate(randutil.New(3), 12)
	for _, c := range cast {
		for _, v := range c.Traits {
			if v < 0 || v > 1 {
				t.Fatalf("trait out of range for %s: %v", c.ID, c.Traits)
			}
		}
		for _, v := range c.Skills {
			if v < 0 || v > 1 {
				t.Fatalf("skill out of range for %s: %v", c.ID, c.Skills)
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	a := Generate(randutil.New(42), 8)
	b := Generate(randutil.New(42), 8)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cast diverged at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Maeve", "maeve"},
		{"Romilly 2", "romilly-2"},
		{"  D'Arcy  ", "darcy"},
		{"!!!", "player"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFromProfileSanitizes(t *testing.T) {
	t.Parallel()

	c := FromProfile("", "Orla", game.Traits{2, -1, 0.5, 0.5, 0.5}, game.Skills{0.5, 0.5, 0.5, 9})
	if c.ID != "orla" {
		t.Fatalf("expected slug id, got %q", c.ID)
	}
	if c.Traits[0] != 1 || c.Traits[1] != 0 {
		t.Fatalf("traits not clamped: %v", c.Traits)
	}
	if c.Skills[3] != 1 {
		t.Fatalf("skills not clamped: %v", c.Skills)
	}
}
