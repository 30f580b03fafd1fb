package httpprov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/provider/scripted"
	"github.com/lox/traitorsforbots/internal/randutil"
	"github.com/lox/traitorsforbots/protocol"
)

func testView() game.PlayerView {
	return game.PlayerView{
		GameID:  "0123456789abcdefghjkmnpqrs",
		Day:     2,
		MaxDays: 12,
		Phase:   game.PhaseVote,
		Pot:     2000,
		You:     game.PublicPlayer{ID: "me", Name: "Me", Alive: true},
		Role:    game.RoleInnocent,
		Traits:  game.DefaultTraits(),
		Skills:  game.DefaultSkills(),
		Players: []game.PublicPlayer{
			{ID: "me", Name: "Me", Alive: true},
			{ID: "bram", Name: "Bram", Alive: true},
			{ID: "cleo", Name: "Cleo", Alive: true},
		},
		Suspicion: map[game.PlayerID]float64{"bram": 0.9, "cleo": 0.2},
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	t.Parallel()

	bot := scripted.New(game.Traits{1, 0.5, 0.5, 0, 0.5}, randutil.New(7))
	srv := httptest.NewServer(NewServeMux(bot, zerolog.Nop()))
	defer srv.Close()

	client := NewClient(srv.URL + DecisionPath)

	target, err := client.DecideVote(context.Background(), testView(), []game.PlayerID{"bram", "cleo"})
	require.NoError(t, err)
	assert.Equal(t, game.PlayerID("bram"), target, "bold voter should name the top suspect")

	accept, err := client.DecideRecruitment(context.Background(), testView(), true)
	require.NoError(t, err)
	assert.True(t, accept, "default loyalty folds under an ultimatum")

	choice, err := client.DecideTokenChoice(context.Background(), testView(), []game.TokenKind{game.TokenProtection, game.TokenDoubleVote})
	require.NoError(t, err)
	assert.Contains(t, []game.TokenKind{game.TokenProtection, game.TokenDoubleVote}, choice)
}

func TestClientPropagatesDeadline(t *testing.T) {
	t.Parallel()

	var got protocol.DecisionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(protocol.DecisionResponse{RequestID: got.RequestID, Target: "bram"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	target, err := NewClient(srv.URL).DecideVote(ctx, testView(), []game.PlayerID{"bram"})
	require.NoError(t, err)
	assert.Equal(t, game.PlayerID("bram"), target)
	assert.Equal(t, protocol.KindVote, got.Kind)
	assert.Greater(t, got.DeadlineMS, int64(0), "context deadline should reach the bot")
	assert.Equal(t, []string{"bram"}, got.Candidates)
}

func TestClientRejectsMismatchedRequestID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(protocol.DecisionResponse{RequestID: "someone-else", Target: "bram"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).DecideVote(context.Background(), testView(), []game.PlayerID{"bram"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "someone-else")
}

func TestClientSurfacesBotErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(failingProvider{}, zerolog.Nop()))
	defer srv.Close()

	_, err := NewClient(srv.URL).DecideVote(context.Background(), testView(), []game.PlayerID{"bram"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no idea who to vote for")
}

func TestHandlerRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(failingProvider{}, zerolog.Nop()))
	defer srv.Close()

	body := `{"request_id":"r1","kind":"flip_table","view":{}}`
	resp, err := http.Post(srv.URL, "application/json", jsonBody(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var wireErr protocol.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wireErr))
	assert.Contains(t, wireErr.Message, "flip_table")
}

func TestHandlerRejectsGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServeMux(failingProvider{}, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + DecisionPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func jsonBody(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}

// failingProvider errors on every decision, standing in for a crashed bot.
type failingProvider struct{}

func (failingProvider) DecideVote(context.Context, game.PlayerView, []game.PlayerID) (game.PlayerID, error) {
	return "", errors.New("no idea who to vote for")
}

func (failingProvider) DecideKillTarget(context.Context, game.PlayerView, []game.PlayerID) (game.PlayerID, error) {
	return "", errors.New("kill unavailable")
}

func (failingProvider) DecideRecruitTarget(context.Context, game.PlayerView, []game.PlayerID) (game.PlayerID, error) {
	return "", errors.New("recruit unavailable")
}

func (failingProvider) DecideRecruitment(context.Context, game.PlayerView, bool) (bool, error) {
	return false, errors.New("recruitment unavailable")
}

func (failingProvider) DecideEndgame(context.Context, game.PlayerView) (game.EndgameChoice, error) {
	return "", errors.New("endgame unavailable")
}

func (failingProvider) DecideShareOrSteal(context.Context, game.PlayerView) (game.PayoffChoice, error) {
	return "", errors.New("payoff unavailable")
}

func (failingProvider) DecideTokenChoice(context.Context, game.PlayerView, []game.TokenKind) (game.TokenKind, error) {
	return "", errors.New("token unavailable")
}

func (failingProvider) DecideInvestigateTarget(context.Context, game.PlayerView, []game.PlayerID) (game.PlayerID, error) {
	return "", errors.New("investigation unavailable")
}

func (failingProvider) Reflect(context.Context, game.PlayerView, []game.Event) ([]game.SuspicionShift, error) {
	return nil, errors.New("reflect unavailable")
}
