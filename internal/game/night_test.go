package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestNightKillEliminatesPluralityTarget(t *testing.T) {
	t.Parallel()

	cast := testCast(6)
	cfg := testConfig(6, 2)
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		kill: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			for _, id := range candidates {
				if id == "p4" {
					return id, nil
				}
			}
			return candidates[0], nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 2)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	g.runNight(context.Background())

	victim, _ := g.roster.Get("p4")
	if victim.Alive {
		t.Error("plurality target survived the night")
	}
	if g.lastVictim != "p4" {
		t.Errorf("lastVictim = %s, want p4", g.lastVictim)
	}
	if g.murders != 1 {
		t.Errorf("murders = %d, want 1", g.murders)
	}

	events := g.events.Events()
	ballots := eventsOfType(events, EventTypeNightBallot)
	if len(ballots) != 2 {
		t.Fatalf("got %d night ballots, want 2 (one per adversary)", len(ballots))
	}
	for _, b := range ballots {
		if !b.Hidden {
			t.Errorf("night ballot by %s is not hidden", b.Actor)
		}
	}
	murders := eventsOfType(events, EventTypeMurder)
	if len(murders) != 1 || murders[0].Hidden {
		t.Errorf("murder events = %+v, want one public entry", murders)
	}
}

func TestNightKillBlockedByProtection(t *testing.T) {
	t.Parallel()

	cast := testCast(5)
	cfg := testConfig(5, 1)
	cfg.ProtectionToken = true
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		kill: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			return "p3", nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	target, _ := g.roster.Get("p3")
	g.tokens.Award(target, TokenProtection)

	g.runNight(context.Background())

	if !target.Alive {
		t.Fatal("protected player died")
	}
	if target.Protection {
		t.Error("protection token survived the blocked kill")
	}
	if g.murders != 0 {
		t.Errorf("murders = %d, want 0", g.murders)
	}
	if g.lastBlocked != "p3" {
		t.Errorf("lastBlocked = %s, want p3", g.lastBlocked)
	}
	if g.lastVictim != "" {
		t.Errorf("lastVictim = %s, want none", g.lastVictim)
	}

	blocked := eventsOfType(g.events.Events(), EventTypeKillBlocked)
	if len(blocked) != 1 {
		t.Fatalf("got %d kill_blocked events, want 1", len(blocked))
	}
	if blocked[0].Hidden {
		t.Error("kill_blocked should be public, the table sees no body either way")
	}

	// Next morning's reveal reports a blocked kill rather than a victim.
	g.day = 2
	g.runReveal()
	reveals := eventsOfType(g.events.Events(), EventTypeReveal)
	if len(reveals) != 1 {
		t.Fatalf("got %d reveal events, want 1", len(reveals))
	}
	if reveals[0].Target != "" {
		t.Errorf("reveal names a victim %s after a blocked kill", reveals[0].Target)
	}
	if got := reveals[0].Data["blocked"]; got != true {
		t.Errorf("reveal blocked = %v, want true", got)
	}
}

func TestRestrictedNightTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		margin      int
		murders     int
		banishments int
		want        bool
	}{
		{"disabled", 0, 9, 0, false},
		{"below margin", 3, 2, 0, false},
		{"at margin", 3, 3, 0, true},
		{"banishments offset", 3, 4, 2, false},
		{"over margin", 2, 5, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cast := testCast(6)
			cfg := testConfig(6, 1)
			cfg.RestrictedKillMargin = tt.margin
			g, err := NewGame(cfg, cast, WithAssignedRoles(rolesFor(cast, 1)))
			if err != nil {
				t.Fatal(err)
			}
			g.murders = tt.murders
			g.banishments = tt.banishments

			if got := g.restrictedNight(); got != tt.want {
				t.Errorf("restrictedNight() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRestrictedNightShortlist checks the adversaries only see a pre-picked
// shortlist of three or four once they are too far ahead.
func TestRestrictedNightShortlist(t *testing.T) {
	t.Parallel()

	cast := testCast(8)
	cfg := testConfig(8, 1)
	cfg.RestrictedKillMargin = 2

	var seen []PlayerID
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		kill: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			seen = append([]PlayerID(nil), candidates...)
			return candidates[0], nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 3
	g.murders = 2

	g.runNight(context.Background())

	if len(seen) < 3 || len(seen) > 4 {
		t.Fatalf("restricted shortlist had %d candidates, want 3 or 4", len(seen))
	}
	for _, id := range seen {
		p, ok := g.roster.Get(id)
		if !ok || p.Role != RoleInnocent {
			t.Errorf("shortlist contains non-innocent %s", id)
		}
	}
	if len(g.nightDiscussion) != len(seen) {
		t.Errorf("nightDiscussion has %d entries, want the %d shortlisted", len(g.nightDiscussion), len(seen))
	}
}

func TestNightNoKillersIsQuiet(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	g, err := NewGame(testConfig(4, 1), cast, WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.roster.kill("p1")
	g.day = 1

	g.runNight(context.Background())

	if g.murders != 0 {
		t.Errorf("murders = %d with no living adversaries, want 0", g.murders)
	}
	if len(g.events.Events()) != 0 {
		t.Errorf("night with no killers appended %d events, want 0", len(g.events.Events()))
	}
}

// TestDecisionTimeoutFallsBack parks a provider on its context and advances
// a mock clock past the decision deadline. The engine must substitute a
// random valid ballot and flag it.
func TestDecisionTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)
	cfg.DecisionTimeout = 5 * time.Second

	reg := NewRegistry()
	bindAll(reg, cast, blockingProvider{})

	mock := quartz.NewMock(t)
	g, err := NewGame(cfg, cast,
		WithProviders(reg),
		WithAssignedRoles(rolesFor(cast, 1)),
		WithClock(mock),
	)
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	killers := g.roster.AliveByRole(RoleAdversary)
	candidates := []PlayerID{"p2", "p3", "p4"}

	done := make(chan []Ballot, 1)
	go func() {
		done <- g.collectKillBallots(context.Background(), killers, candidates)
	}()

	// Give the worker time to arm its timer before advancing; setting a
	// trap first would race the AfterFunc registration.
	time.Sleep(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(cfg.DecisionTimeout).MustWait(ctx)

	ballots := <-done
	if len(ballots) != 1 {
		t.Fatalf("got %d ballots, want 1", len(ballots))
	}
	if ballots[0].Fallback != FallbackTimeout {
		t.Errorf("fallback = %q, want %q", ballots[0].Fallback, FallbackTimeout)
	}
	if !containsID(candidates, ballots[0].Target) {
		t.Errorf("fallback target %s is not a valid candidate", ballots[0].Target)
	}
}

func TestProviderErrorFallsBack(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		kill: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "", errors.New("provider crashed")
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	killers := g.roster.AliveByRole(RoleAdversary)
	candidates := []PlayerID{"p2", "p3", "p4"}
	ballots := g.collectKillBallots(context.Background(), killers, candidates)

	if len(ballots) != 1 {
		t.Fatalf("got %d ballots, want 1", len(ballots))
	}
	if ballots[0].Fallback != FallbackProviderError {
		t.Errorf("fallback = %q, want %q", ballots[0].Fallback, FallbackProviderError)
	}
}

func TestInvalidChoiceFallsBack(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		kill: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "nobody", nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	killers := g.roster.AliveByRole(RoleAdversary)
	candidates := []PlayerID{"p2", "p3", "p4"}
	ballots := g.collectKillBallots(context.Background(), killers, candidates)

	if ballots[0].Fallback != FallbackInvalidChoice {
		t.Errorf("fallback = %q, want %q", ballots[0].Fallback, FallbackInvalidChoice)
	}
	if !containsID(candidates, ballots[0].Target) {
		t.Errorf("fallback target %s is not a valid candidate", ballots[0].Target)
	}
}

func TestUnboundPlayerFallsBack(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	g, err := NewGame(testConfig(4, 1), cast,
		WithProviders(NewRegistry()),
		WithAssignedRoles(rolesFor(cast, 1)),
	)
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	killers := g.roster.AliveByRole(RoleAdversary)
	ballots := g.collectKillBallots(context.Background(), killers, []PlayerID{"p2", "p3"})

	if ballots[0].Fallback != FallbackNoProvider {
		t.Errorf("fallback = %q, want %q", ballots[0].Fallback, FallbackNoProvider)
	}
}
