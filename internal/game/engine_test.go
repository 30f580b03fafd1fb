package game

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestNewGameValidation(t *testing.T) {
	t.Parallel()

	t.Run("cast size mismatch", func(t *testing.T) {
		t.Parallel()
		_, err := NewGame(testConfig(6, 1), testCast(4))
		if err == nil || !strings.Contains(err.Error(), "cast size") {
			t.Errorf("err = %v, want cast size mismatch", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(4, 1)
		cfg.Adversaries = 4
		_, err := NewGame(cfg, testCast(4))
		if err == nil {
			t.Error("want error for adversaries == players")
		}
	})

	t.Run("assigned roles must match config", func(t *testing.T) {
		t.Parallel()
		cast := testCast(4)
		_, err := NewGame(testConfig(4, 1), cast, WithAssignedRoles(rolesFor(cast, 2)))
		if err == nil || !strings.Contains(err.Error(), "adversaries") {
			t.Errorf("err = %v, want adversary count mismatch", err)
		}
	})

	t.Run("assigned roles reject unknown player", func(t *testing.T) {
		t.Parallel()
		cast := testCast(4)
		roles := rolesFor(cast, 1)
		roles["ghost"] = RoleAdversary
		delete(roles, "p1")
		_, err := NewGame(testConfig(4, 1), cast, WithAssignedRoles(roles))
		if err == nil || !strings.Contains(err.Error(), "unknown player") {
			t.Errorf("err = %v, want unknown player", err)
		}
	})

	t.Run("duplicate cast IDs", func(t *testing.T) {
		t.Parallel()
		cast := testCast(4)
		cast[3].ID = cast[0].ID
		_, err := NewGame(testConfig(4, 1), cast)
		if err == nil {
			t.Error("want error for duplicate cast IDs")
		}
	})
}

func TestRandomRoleAssignmentCount(t *testing.T) {
	t.Parallel()

	cfg := testConfig(7, 2)
	g, err := NewGame(cfg, testCast(7))
	if err != nil {
		t.Fatal(err)
	}
	if got := g.roster.CountAlive(RoleAdversary); got != 2 {
		t.Errorf("adversaries assigned = %d, want 2", got)
	}
	if got := g.roster.CountAlive(RoleInnocent); got != 5 {
		t.Errorf("innocents assigned = %d, want 5", got)
	}
}

func TestCheckWin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		kill       []PlayerID
		threshold  int
		wantDone   bool
		wantWinner Role
		wantReason EndReason
	}{
		{
			name:     "game in progress",
			kill:     nil,
			wantDone: false,
		},
		{
			name:       "adversaries eliminated",
			kill:       []PlayerID{"p1", "p2"},
			wantDone:   true,
			wantWinner: RoleInnocent,
			wantReason: EndReasonAdversariesEliminated,
		},
		{
			name:       "innocents eliminated",
			kill:       []PlayerID{"p3", "p4", "p5", "p6"},
			wantDone:   true,
			wantWinner: RoleAdversary,
			wantReason: EndReasonInnocentsEliminated,
		},
		{
			name:       "adversary parity",
			kill:       []PlayerID{"p3", "p4"},
			wantDone:   true,
			wantWinner: RoleAdversary,
			wantReason: EndReasonAdversaryParity,
		},
		{
			name:      "parity suppressed during endgame",
			kill:      []PlayerID{"p3", "p4"},
			threshold: 4,
			wantDone:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cast := testCast(6)
			cfg := testConfig(6, 2)
			cfg.EndgameThreshold = tt.threshold
			g, err := NewGame(cfg, cast, WithAssignedRoles(rolesFor(cast, 2)))
			if err != nil {
				t.Fatal(err)
			}
			for _, id := range tt.kill {
				g.roster.kill(id)
			}

			if done := g.checkWin(); done != tt.wantDone {
				t.Fatalf("checkWin() = %v, want %v", done, tt.wantDone)
			}
			if !tt.wantDone {
				if g.outcome != nil {
					t.Fatalf("outcome set on running game: %+v", g.outcome)
				}
				return
			}
			if g.outcome.Winner != tt.wantWinner {
				t.Errorf("winner = %s, want %s", g.outcome.Winner, tt.wantWinner)
			}
			if g.outcome.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", g.outcome.Reason, tt.wantReason)
			}

			// A second check must agree with the first.
			first := *g.outcome
			if !g.checkWin() {
				t.Error("repeated checkWin() disagreed")
			}
			if !reflect.DeepEqual(*g.outcome, first) {
				t.Errorf("outcome changed on recheck: %+v then %+v", first, *g.outcome)
			}
		})
	}
}

// TestRunVoteDoubleVoteDecides plays one vote phase where the double-vote
// token turns a would-be 2-2 tie into a clean banishment.
func TestRunVoteDoubleVoteDecides(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)

	votes := map[PlayerID]PlayerID{
		"p1": "p3", "p2": "p3",
		"p3": "p1", "p4": "p1",
	}
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		vote: func(view PlayerView, _ []PlayerID) (PlayerID, error) {
			return votes[view.You.ID], nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 2

	holder, _ := g.roster.Get("p4")
	g.tokens.Award(holder, TokenDoubleVote)

	g.runVote(context.Background())

	p1, _ := g.roster.Get("p1")
	if p1.Alive {
		t.Error("p1 survived a 3-2 weighted vote")
	}
	if len(eventsOfType(g.events.Events(), EventTypeTieBreak)) != 0 {
		t.Error("weighted vote still went to a tie break")
	}
	if holder.DoubleVote {
		t.Error("double-vote token survived the vote phase")
	}
	if g.banishments != 1 {
		t.Errorf("banishments = %d, want 1", g.banishments)
	}
}

// TestInnocentsWinEndToEnd drives a full game where the table correctly
// banishes both adversaries inside two days.
func TestInnocentsWinEndToEnd(t *testing.T) {
	t.Parallel()

	cast := testCast(6)
	cfg := testConfig(6, 2)
	adversaries := []PlayerID{"p1", "p2"}

	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		vote: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			for _, id := range candidates {
				if containsID(adversaries, id) {
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

	outcome, err := g.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Winner != RoleInnocent {
		t.Errorf("winner = %s, want innocent", outcome.Winner)
	}
	if outcome.Reason != EndReasonAdversariesEliminated {
		t.Errorf("reason = %s, want %s", outcome.Reason, EndReasonAdversariesEliminated)
	}
	if outcome.Days != 2 {
		t.Errorf("days = %d, want 2", outcome.Days)
	}
	if outcome.AdversariesAlive != 0 {
		t.Errorf("adversaries alive = %d, want 0", outcome.AdversariesAlive)
	}

	events := g.events.Events()
	if got := len(eventsOfType(events, EventTypeBanishment)); got != 2 {
		t.Errorf("banishment events = %d, want 2", got)
	}
	if got := len(eventsOfType(events, EventTypeMurder)); got != 1 {
		t.Errorf("murder events = %d, want 1", got)
	}
	if got := len(eventsOfType(events, EventTypeGameEnd)); got != 1 {
		t.Errorf("game_end events = %d, want 1", got)
	}

	// Winners split the pot evenly; the dead get nothing.
	if len(outcome.PotSplit) != g.roster.CountAlive(RoleInnocent) {
		t.Errorf("pot split over %d players, want %d survivors",
			len(outcome.PotSplit), g.roster.CountAlive(RoleInnocent))
	}
}

// TestMaxDaysFallback runs a game where the table never finds the adversary
// and the safety cap decides it.
func TestMaxDaysFallback(t *testing.T) {
	t.Parallel()

	cast := testCast(8)
	cfg := testConfig(8, 1)
	cfg.MaxDays = 2

	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		vote: func(_ PlayerView, candidates []PlayerID) (PlayerID, error) {
			for _, id := range candidates {
				if id != "p1" {
					return id, nil
				}
			}
			return candidates[0], nil
		},
	})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := g.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Reason != EndReasonMaxDays {
		t.Errorf("reason = %s, want %s", outcome.Reason, EndReasonMaxDays)
	}
	if outcome.Winner != RoleAdversary {
		t.Errorf("winner = %s, want adversary (still hidden at the cap)", outcome.Winner)
	}
	if outcome.Days != 2 {
		t.Errorf("days = %d, want 2", outcome.Days)
	}
}

func TestRunTwiceReturnsFinished(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)
	cfg.MaxDays = 1
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{})
	g, err := NewGame(cfg, cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Run(context.Background()); err != ErrGameFinished {
		t.Errorf("second Run err = %v, want ErrGameFinished", err)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	g, err := NewGame(testConfig(4, 1), cast, WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Run(ctx); err == nil {
		t.Error("Run on a cancelled context returned no error")
	}
	if g.Outcome() != nil {
		t.Error("aborted game recorded an outcome")
	}
}

// TestArrivalOrderBias checks that overnight discussion pushes a player
// towards the back of the breakfast queue. The bias loses only to extreme
// draws, so over many mornings the discussed player arrives last far more
// often than a fair shuffle's quarter of the time.
func TestArrivalOrderBias(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	cfg := testConfig(4, 1)
	cfg.BiasedArrivals = true
	g, err := NewGame(cfg, cast, WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.nightDiscussion = []PlayerID{"p3"}

	last := 0
	const rounds = 200
	for i := 0; i < rounds; i++ {
		order := g.arrivalOrder()
		if len(order) != 4 {
			t.Fatalf("arrival order has %d entries, want 4", len(order))
		}
		if order[len(order)-1] == "p3" {
			last++
		}
	}
	if last <= rounds/2 {
		t.Errorf("discussed player arrived last %d/%d mornings, want a clear majority", last, rounds)
	}
}

// TestAdversaryViewListsAllies confirms adversaries see each other while
// innocents get no allies field at all.
func TestAdversaryViewListsAllies(t *testing.T) {
	t.Parallel()

	cast := testCast(5)
	g, err := NewGame(testConfig(5, 2), cast, WithAssignedRoles(rolesFor(cast, 2)))
	if err != nil {
		t.Fatal(err)
	}

	p1, _ := g.roster.Get("p1")
	view := g.viewFor(p1)
	if len(view.Allies) != 1 || view.Allies[0] != "p2" {
		t.Errorf("adversary allies = %v, want [p2]", view.Allies)
	}

	p3, _ := g.roster.Get("p3")
	view = g.viewFor(p3)
	if len(view.Allies) != 0 {
		t.Errorf("innocent allies = %v, want none", view.Allies)
	}
	if view.Role != RoleInnocent {
		t.Errorf("view role = %s, want innocent", view.Role)
	}
}

// TestReflectionShiftsLedger wires a provider that accuses a fixed target
// and checks the social phase lands the adjustment.
func TestReflectionShiftsLedger(t *testing.T) {
	t.Parallel()

	cast := testCast(4)
	reg := NewRegistry()
	bindAll(reg, cast, &stubProvider{
		reflect: func(view PlayerView, _ []Event) ([]SuspicionShift, error) {
			if view.You.ID == "p1" {
				return []SuspicionShift{{Target: "p2", Delta: 0.3}}, nil
			}
			return nil, nil
		},
	})
	g, err := NewGame(testConfig(4, 1), cast, WithProviders(reg), WithAssignedRoles(rolesFor(cast, 1)))
	if err != nil {
		t.Fatal(err)
	}
	g.day = 1

	g.runSocial(context.Background())

	if got := g.ledger.Score("p1", "p2"); got != 0.8 {
		t.Errorf("suspicion p1->p2 = %v, want 0.8 after the shift", got)
	}
	if got := g.ledger.Score("p2", "p1"); got != 0.5 {
		t.Errorf("suspicion p2->p1 = %v, want untouched 0.5", got)
	}
}

func TestSeedReproducesGame(t *testing.T) {
	t.Parallel()

	run := func() []Event {
		cast := testCast(6)
		cfg := testConfig(6, 2)
		cfg.Seed = 99
		reg := NewRegistry()
		bindAll(reg, cast, &stubProvider{})
		g, err := NewGame(cfg, cast,
			WithProviders(reg),
			WithAssignedRoles(rolesFor(cast, 2)),
			WithGameID("fixed"),
		)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := g.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return g.events.Events()
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("replays diverged in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Actor != b[i].Actor || a[i].Target != b[i].Target {
			t.Fatalf("replays diverged at seq %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
