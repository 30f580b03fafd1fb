package game

import (
	"context"
	"testing"
)

func recruitGame(t *testing.T, adversaries int, stub *stubProvider) *Game {
	t.Helper()
	cast := testCast(6)
	cfg := testConfig(6, adversaries)
	cfg.Recruitment = true
	reg := NewRegistry()
	bindAll(reg, cast, stub)
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, adversaries)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 2
	return g
}

func TestRecruitmentAcceptConverts(t *testing.T) {
	t.Parallel()

	g := recruitGame(t, 2, &stubProvider{
		recruitPick: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "p4", nil
		},
		recruit: func(_ PlayerView, ultimatum bool) (bool, error) {
			if ultimatum {
				t.Error("two living adversaries should not produce an ultimatum")
			}
			return true, nil
		},
	})

	g.runRecruitment(context.Background())

	p4, _ := g.roster.Get("p4")
	if p4.Role != RoleAdversary {
		t.Errorf("recruit role = %s, want adversary", p4.Role)
	}
	if !p4.Alive {
		t.Error("accepted recruit died")
	}

	events := g.events.Events()
	offers := eventsOfType(events, EventTypeRecruitmentOffer)
	if len(offers) != 1 || !offers[0].Hidden {
		t.Fatalf("offers = %+v, want one hidden entry", offers)
	}
	if offers[0].Actor != "p1" {
		t.Errorf("recruiter = %s, want the senior adversary p1", offers[0].Actor)
	}
	accepted := eventsOfType(events, EventTypeRecruitmentAccepted)
	if len(accepted) != 1 || !accepted[0].Hidden {
		t.Fatalf("accepted = %+v, want one hidden entry", accepted)
	}
}

func TestRecruitmentDeclineQuietly(t *testing.T) {
	t.Parallel()

	g := recruitGame(t, 2, &stubProvider{
		recruitPick: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "p4", nil
		},
		recruit: func(_ PlayerView, _ bool) (bool, error) {
			return false, nil
		},
	})

	g.runRecruitment(context.Background())

	p4, _ := g.roster.Get("p4")
	if p4.Role != RoleInnocent || !p4.Alive {
		t.Errorf("declining recruit ended up %s alive=%v, want living innocent", p4.Role, p4.Alive)
	}
	declined := eventsOfType(g.events.Events(), EventTypeRecruitmentDeclined)
	if len(declined) != 1 || !declined[0].Hidden {
		t.Fatalf("declined = %+v, want one hidden entry", declined)
	}
}

func TestUltimatumDeclineIsFatal(t *testing.T) {
	t.Parallel()

	g := recruitGame(t, 1, &stubProvider{
		recruitPick: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "p5", nil
		},
		recruit: func(_ PlayerView, ultimatum bool) (bool, error) {
			if !ultimatum {
				t.Error("lone adversary's offer should be an ultimatum")
			}
			return false, nil
		},
	})

	g.runRecruitment(context.Background())

	p5, _ := g.roster.Get("p5")
	if p5.Alive {
		t.Fatal("ultimatum decliner survived")
	}
	deaths := eventsOfType(g.events.Events(), EventTypeUltimatumDeath)
	if len(deaths) != 1 {
		t.Fatalf("got %d ultimatum_death events, want 1", len(deaths))
	}
	if deaths[0].Hidden {
		t.Error("the body is public even if the reason is not")
	}
	if deaths[0].Target != "p5" {
		t.Errorf("ultimatum death target = %s, want p5", deaths[0].Target)
	}
}

func TestUltimatumAcceptConverts(t *testing.T) {
	t.Parallel()

	g := recruitGame(t, 1, &stubProvider{
		recruitPick: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "p5", nil
		},
		recruit: func(_ PlayerView, _ bool) (bool, error) {
			return true, nil
		},
	})

	g.runRecruitment(context.Background())

	p5, _ := g.roster.Get("p5")
	if p5.Role != RoleAdversary || !p5.Alive {
		t.Errorf("ultimatum accepter is %s alive=%v, want living adversary", p5.Role, p5.Alive)
	}
	if got := g.roster.CountAlive(RoleAdversary); got != 2 {
		t.Errorf("adversaries after recruitment = %d, want 2", got)
	}
}

func TestRecruitmentDisabled(t *testing.T) {
	t.Parallel()

	g := recruitGame(t, 2, &stubProvider{})
	g.cfg.Recruitment = false

	g.runRecruitment(context.Background())

	if len(g.events.Events()) != 0 {
		t.Errorf("disabled recruitment appended %d events, want 0", len(g.events.Events()))
	}
}

// TestBanishedAdversaryTriggersRecruitment checks the vote phase hands off
// to recruitment only when the banished player was an adversary.
func TestBanishedAdversaryTriggersRecruitment(t *testing.T) {
	t.Parallel()

	cast := testCast(6)
	cfg := testConfig(6, 2)
	cfg.Recruitment = true

	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		vote: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			for _, id := range candidates {
				if id == "p2" {
					return id, nil
				}
			}
			return candidates[0], nil
		},
		recruitPick: func(_ PlayerView, _ []PlayerID) (PlayerID, error) {
			return "p6", nil
		},
		recruit: func(_ PlayerView, _ bool) (bool, error) {
			return true, nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 2)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	g.runVote(context.Background())

	p2, _ := g.roster.Get("p2")
	if p2.Alive {
		t.Fatal("vote target p2 survived")
	}
	p6, _ := g.roster.Get("p6")
	if p6.Role != RoleAdversary {
		t.Errorf("p6 role = %s, want adversary recruited after the banishment", p6.Role)
	}
	if got := g.roster.CountAlive(RoleAdversary); got != 2 {
		t.Errorf("adversaries = %d, want numbers restored to 2", got)
	}
}
