package game

import (
	"testing"
)

func tokenFixture(t *testing.T) (*TokenManager, *Roster) {
	t.Helper()
	players := []*Player{
		{ID: "a", Name: "A", Role: RoleInnocent, Alive: true},
		{ID: "b", Name: "B", Role: RoleInnocent, Alive: true},
		{ID: "c", Name: "C", Role: RoleAdversary, Alive: true},
	}
	roster, err := NewRoster(players)
	if err != nil {
		t.Fatal(err)
	}
	return NewTokenManager(roster), roster
}

func TestTokenAwardAndHolder(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")

	if _, ok := tm.Holder(TokenProtection); ok {
		t.Fatal("fresh manager reports a protection holder")
	}

	displaced, moved := tm.Award(a, TokenProtection)
	if moved || displaced != "" {
		t.Errorf("first award reported displacement of %q", displaced)
	}
	if !a.Protection {
		t.Error("award did not set the holder's flag")
	}
	holder, ok := tm.Holder(TokenProtection)
	if !ok || holder.ID != "a" {
		t.Errorf("Holder() = %v, %v, want a, true", holder, ok)
	}
}

func TestTokenAwardDisplaces(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")
	b, _ := roster.Get("b")

	tm.Award(a, TokenDoubleVote)
	displaced, moved := tm.Award(b, TokenDoubleVote)
	if !moved || displaced != "a" {
		t.Errorf("Award() displaced = %q, %v, want a, true", displaced, moved)
	}
	if a.DoubleVote {
		t.Error("displaced holder kept the flag")
	}
	if !b.DoubleVote {
		t.Error("new holder missing the flag")
	}
}

func TestTokenConsume(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")
	b, _ := roster.Get("b")

	tm.Award(a, TokenReveal)
	if tm.Consume(b, TokenReveal) {
		t.Error("Consume succeeded for a non-holder")
	}
	if !tm.Consume(a, TokenReveal) {
		t.Error("Consume failed for the holder")
	}
	if a.Reveal {
		t.Error("consumed token left the flag set")
	}
	if _, ok := tm.Holder(TokenReveal); ok {
		t.Error("consumed token still has a holder")
	}
}

func TestTokenBlockKill(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")
	b, _ := roster.Get("b")

	if tm.BlockKill(b) {
		t.Error("BlockKill succeeded without the token")
	}

	tm.Award(a, TokenProtection)
	if !tm.BlockKill(a) {
		t.Error("BlockKill failed for the protection holder")
	}
	// Protection is one-shot.
	if tm.BlockKill(a) {
		t.Error("BlockKill succeeded twice on one token")
	}
}

func TestTokenOnDeath(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")

	tm.Award(a, TokenProtection)
	tm.Award(a, TokenReveal)
	tm.OnDeath(a)

	if _, ok := tm.Holder(TokenProtection); ok {
		t.Error("protection survived its holder")
	}
	if _, ok := tm.Holder(TokenReveal); ok {
		t.Error("reveal token survived its holder")
	}
	if a.Protection || a.Reveal {
		t.Error("dead player still flagged as holding tokens")
	}
}

func TestTokenHolderMustBeAlive(t *testing.T) {
	t.Parallel()

	tm, roster := tokenFixture(t)
	a, _ := roster.Get("a")

	tm.Award(a, TokenDoubleVote)
	roster.kill("a")

	if _, ok := tm.Holder(TokenDoubleVote); ok {
		t.Error("Holder returned a dead player")
	}
}
