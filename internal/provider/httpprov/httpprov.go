// Package httpprov bridges decisions over plain HTTP. Client implements
// game.DecisionProvider by POSTing each decision request to a remote bot
// endpoint; NewServeMux hosts the reverse side so a containerised bot can
// serve any in-process provider behind a single route.
package httpprov

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/wire"
	"github.com/lox/traitorsforbots/protocol"
)

// DecisionPath is the route NewServeMux registers and the path callers
// should append to a bare host URL.
const DecisionPath = "/decision"

// Client posts decision requests to a remote bot over HTTP.
type Client struct {
	url    string
	hc     *http.Client
	logger zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a client for the given decision endpoint. The engine's
// per-decision context carries the deadline; the HTTP client timeout is
// only a backstop for decisions issued without one.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		hc:     &http.Client{Timeout: 30 * time.Second},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "httpprov").Str("url", url).Logger()
	return c
}

var _ game.DecisionProvider = (*Client)(nil)

func (c *Client) newRequest(kind protocol.DecisionKind, view game.PlayerView) protocol.DecisionRequest {
	return protocol.DecisionRequest{
		RequestID: uuid.NewString(),
		Kind:      kind,
		View:      wire.ViewFromGame(view),
	}
}

func (c *Client) roundTrip(ctx context.Context, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if ms := time.Until(deadline).Milliseconds(); ms > 0 {
			req.DeadlineMS = ms
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var wireErr protocol.Error
		if json.NewDecoder(resp.Body).Decode(&wireErr) == nil && wireErr.Message != "" {
			return protocol.DecisionResponse{}, fmt.Errorf("bot rejected %s: %s", req.Kind, wireErr.Message)
		}
		return protocol.DecisionResponse{}, fmt.Errorf("bot rejected %s: status %s", req.Kind, resp.Status)
	}

	var decoded protocol.DecisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return protocol.DecisionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.RequestID != "" && decoded.RequestID != req.RequestID {
		return protocol.DecisionResponse{}, fmt.Errorf("response for request %s, expected %s", decoded.RequestID, req.RequestID)
	}

	c.logger.Debug().
		Str("kind", string(req.Kind)).
		Str("request_id", req.RequestID).
		Msg("decision received")
	return decoded, nil
}

func (c *Client) pickTarget(ctx context.Context, kind protocol.DecisionKind, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	req := c.newRequest(kind, view)
	req.Candidates = wire.IDStrings(candidates)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Target == "" {
		return "", fmt.Errorf("bot returned no target for %s", kind)
	}
	return game.PlayerID(resp.Target), nil
}

// DecideVote asks the remote bot to pick a banishment target.
func (c *Client) DecideVote(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return c.pickTarget(ctx, protocol.KindVote, view, candidates)
}

// DecideKillTarget asks the remote bot to pick tonight's victim.
func (c *Client) DecideKillTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return c.pickTarget(ctx, protocol.KindKill, view, candidates)
}

// DecideRecruitTarget asks the remote bot to pick a recruit.
func (c *Client) DecideRecruitTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	return c.pickTarget(ctx, protocol.KindRecruitTarget, view, candidates)
}

// DecideRecruitment asks the remote bot to accept or decline an offer.
func (c *Client) DecideRecruitment(ctx context.Context, view game.PlayerView, ultimatum bool) (bool, error) {
	req := c.newRequest(protocol.KindRecruitment, view)
	req.Ultimatum = ultimatum
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Accept, nil
}

// DecideEndgame asks the remote bot for its stop-or-continue declaration.
func (c *Client) DecideEndgame(ctx context.Context, view game.PlayerView) (game.EndgameChoice, error) {
	resp, err := c.roundTrip(ctx, c.newRequest(protocol.KindEndgame, view))
	if err != nil {
		return "", err
	}
	switch choice := game.EndgameChoice(resp.Choice); choice {
	case game.EndgameStop, game.EndgameContinue:
		return choice, nil
	}
	return "", fmt.Errorf("unknown endgame choice %q", resp.Choice)
}

// DecideShareOrSteal asks the remote bot for its final-pot play.
func (c *Client) DecideShareOrSteal(ctx context.Context, view game.PlayerView) (game.PayoffChoice, error) {
	resp, err := c.roundTrip(ctx, c.newRequest(protocol.KindShareSteal, view))
	if err != nil {
		return "", err
	}
	switch choice := game.PayoffChoice(resp.Choice); choice {
	case game.PayoffShare, game.PayoffSteal:
		return choice, nil
	}
	return "", fmt.Errorf("unknown payoff choice %q", resp.Choice)
}

// DecideTokenChoice asks the remote bot which challenge token to take.
func (c *Client) DecideTokenChoice(ctx context.Context, view game.PlayerView, options []game.TokenKind) (game.TokenKind, error) {
	req := c.newRequest(protocol.KindTokenChoice, view)
	req.Options = wire.TokenStrings(options)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", err
	}
	return wire.ParseTokenKind(resp.Choice)
}

// DecideInvestigateTarget asks the remote bot whether to spend its reveal
// token. An empty target holds it.
func (c *Client) DecideInvestigateTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	req := c.newRequest(protocol.KindInvestigate, view)
	req.Candidates = wire.IDStrings(candidates)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", err
	}
	return game.PlayerID(resp.Target), nil
}

// Reflect forwards the night's events and returns the bot's suspicion
// shifts.
func (c *Client) Reflect(ctx context.Context, view game.PlayerView, events []game.Event) ([]game.SuspicionShift, error) {
	req := c.newRequest(protocol.KindReflect, view)
	req.Events = wire.EventsFromGame(events)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.ShiftsToGame(resp.Shifts), nil
}

// NewServeMux mounts a decision handler and a health probe for a container
// bot hosting the given provider.
func NewServeMux(p game.DecisionProvider, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(DecisionPath, Handler(p, logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	return mux
}

// Handler serves provider decisions over HTTP.
func Handler(p game.DecisionProvider, logger zerolog.Logger) http.Handler {
	h := &handler{p: p, logger: logger.With().Str("component", "httpprov_server").Logger()}
	return h
}

type handler struct {
	p      game.DecisionProvider
	logger zerolog.Logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "decision requests must be POSTed")
		return
	}

	var req protocol.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode request: %v", err))
		return
	}

	ctx := r.Context()
	if req.DeadlineMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.DeadlineMS)*time.Millisecond)
		defer cancel()
	}

	resp, err := h.decide(ctx, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("kind", string(req.Kind)).Msg("decision failed")
		writeError(w, http.StatusUnprocessableEntity, "provider_error", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn().Err(err).Msg("encode response")
	}
}

func (h *handler) decide(ctx context.Context, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	view := wire.ViewToGame(req.View)
	resp := protocol.DecisionResponse{RequestID: req.RequestID}

	switch req.Kind {
	case protocol.KindVote:
		target, err := h.p.DecideVote(ctx, view, wire.PlayerIDs(req.Candidates))
		if err != nil {
			return resp, err
		}
		resp.Target = string(target)
	case protocol.KindKill:
		target, err := h.p.DecideKillTarget(ctx, view, wire.PlayerIDs(req.Candidates))
		if err != nil {
			return resp, err
		}
		resp.Target = string(target)
	case protocol.KindRecruitTarget:
		target, err := h.p.DecideRecruitTarget(ctx, view, wire.PlayerIDs(req.Candidates))
		if err != nil {
			return resp, err
		}
		resp.Target = string(target)
	case protocol.KindRecruitment:
		accept, err := h.p.DecideRecruitment(ctx, view, req.Ultimatum)
		if err != nil {
			return resp, err
		}
		resp.Accept = accept
	case protocol.KindEndgame:
		choice, err := h.p.DecideEndgame(ctx, view)
		if err != nil {
			return resp, err
		}
		resp.Choice = string(choice)
	case protocol.KindShareSteal:
		choice, err := h.p.DecideShareOrSteal(ctx, view)
		if err != nil {
			return resp, err
		}
		resp.Choice = string(choice)
	case protocol.KindTokenChoice:
		options := make([]game.TokenKind, 0, len(req.Options))
		for _, o := range req.Options {
			kind, err := wire.ParseTokenKind(o)
			if err != nil {
				return resp, err
			}
			options = append(options, kind)
		}
		choice, err := h.p.DecideTokenChoice(ctx, view, options)
		if err != nil {
			return resp, err
		}
		resp.Choice = choice.String()
	case protocol.KindInvestigate:
		target, err := h.p.DecideInvestigateTarget(ctx, view, wire.PlayerIDs(req.Candidates))
		if err != nil {
			return resp, err
		}
		resp.Target = string(target)
	case protocol.KindReflect:
		shifts, err := h.p.Reflect(ctx, view, wire.EventsToGame(req.Events))
		if err != nil {
			return resp, err
		}
		resp.Shifts = wire.ShiftsFromGame(shifts)
	default:
		return resp, fmt.Errorf("unknown decision kind %q", req.Kind)
	}

	return resp, nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.Error{Code: code, Message: message})
}
