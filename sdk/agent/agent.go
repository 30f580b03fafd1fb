// Package agent is the client framework for writing remote contestants.
// It owns the websocket session with the host, tracks game state between
// callbacks, and guarantees every decision request gets an answer before
// its deadline even when a handler misbehaves.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/protocol"
)

const (
	writeWait = 10 * time.Second
	// pongWait must comfortably exceed the host's ping interval.
	pongWait     = 90 * time.Second
	helloTimeout = 10 * time.Second
)

// Handler is the interface an agent implements. Callbacks run one at a
// time on the session goroutine, so they may read and write State freely.
type Handler interface {
	// OnGameStart is called when the agent is seated in a new game.
	OnGameStart(st *State, start protocol.GameStart) error

	// OnDecisionRequest is called when the host needs an answer. The
	// framework stamps the request id and falls back to a safe default if
	// an error is returned.
	OnDecisionRequest(st *State, req protocol.DecisionRequest) (protocol.DecisionResponse, error)

	// OnEvent is called for every game event visible to this player.
	OnEvent(st *State, event protocol.EventInfo) error

	// OnGameEnd is called when a game finishes. The agent then waits in
	// the lobby for the next one; return io.EOF to disconnect instead.
	OnGameEnd(st *State, end protocol.GameEnd) error
}

// State is what the framework remembers for the handler. It is reset at
// every game start; Events accumulates within one game.
type State struct {
	AgentID  string
	PlayerID string
	Name     string

	GameID      string
	Role        string
	Allies      []string
	Players     []protocol.PlayerInfo
	MaxDays     int
	Adversaries int

	Day    int
	Pot    int
	Events []protocol.EventInfo
}

// Agent runs one websocket session against a host.
type Agent struct {
	name    string
	game    string
	conn    *websocket.Conn
	logger  zerolog.Logger
	handler Handler
	state   *State
}

// New creates an agent around the given handler.
func New(name string, handler Handler, logger zerolog.Logger) *Agent {
	return &Agent{
		name:    name,
		logger:  logger.With().Str("agent", name).Logger(),
		handler: handler,
		state:   &State{Name: name},
	}
}

// State returns the session state. Only read it from handler callbacks.
func (a *Agent) State() *State { return a.state }

// Connect dials the host, introduces the agent and waits for the host's
// welcome. http and https URLs are converted to their websocket schemes.
func (a *Agent) Connect(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	a.conn = conn

	if err := a.send(protocol.TypeHello, protocol.Hello{Name: a.name, Game: a.game}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	msg, err := a.read()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("await welcome: %w", err)
	}
	if msg.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return fmt.Errorf("expected welcome, got %s", msg.Type)
	}
	var welcome protocol.Welcome
	if err := msg.Decode(&welcome); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode welcome: %w", err)
	}

	a.state.AgentID = welcome.AgentID
	a.state.PlayerID = welcome.PlayerID
	a.state.Name = welcome.Name
	a.logger.Info().Str("player_id", welcome.PlayerID).Msg("connected")
	return nil
}

// Run processes messages until the context is cancelled, the connection
// drops, or the handler asks to leave with io.EOF.
func (a *Agent) Run(ctx context.Context) error {
	if a.conn == nil {
		return errors.New("not connected")
	}
	defer a.conn.Close()

	// Cancellation unblocks the read by closing the connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.conn.Close()
		case <-done:
		}
	}()

	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPingHandler(func(appData string) error {
		_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
		return a.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		msg, err := a.read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("host went quiet: %w", err)
			}
			return err
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := a.handle(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (a *Agent) handle(msg protocol.Message) error {
	switch msg.Type {
	case protocol.TypeGameStart:
		var start protocol.GameStart
		if err := msg.Decode(&start); err != nil {
			return fmt.Errorf("decode game start: %w", err)
		}
		a.resetForGame(start)
		if err := a.handler.OnGameStart(a.state, start); err != nil {
			a.logger.Error().Err(err).Msg("OnGameStart error")
		}

	case protocol.TypeDecisionRequest:
		var req protocol.DecisionRequest
		if err := msg.Decode(&req); err != nil {
			return fmt.Errorf("decode decision request: %w", err)
		}
		a.updateFromView(req.View)
		resp, err := a.handler.OnDecisionRequest(a.state, req)
		if err != nil {
			a.logger.Error().Err(err).Str("kind", string(req.Kind)).Msg("OnDecisionRequest error, answering with fallback")
			resp = Fallback(req)
		}
		resp.RequestID = req.RequestID
		if err := a.send(protocol.TypeDecision, resp); err != nil {
			return fmt.Errorf("send decision: %w", err)
		}

	case protocol.TypeEvent:
		var event protocol.EventInfo
		if err := msg.Decode(&event); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		a.state.Events = append(a.state.Events, event)
		if event.Day > a.state.Day {
			a.state.Day = event.Day
		}
		if err := a.handler.OnEvent(a.state, event); err != nil {
			a.logger.Error().Err(err).Msg("OnEvent error")
		}

	case protocol.TypeGameEnd:
		var end protocol.GameEnd
		if err := msg.Decode(&end); err != nil {
			return fmt.Errorf("decode game end: %w", err)
		}
		if err := a.handler.OnGameEnd(a.state, end); err != nil {
			return err
		}

	case protocol.TypeError:
		var hostErr protocol.Error
		if err := msg.Decode(&hostErr); err != nil {
			return fmt.Errorf("decode host error: %w", err)
		}
		a.logger.Warn().Str("code", hostErr.Code).Str("message", hostErr.Message).Msg("host reported an error")

	default:
		a.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring message")
	}
	return nil
}

func (a *Agent) resetForGame(start protocol.GameStart) {
	a.state.GameID = start.GameID
	a.state.PlayerID = start.PlayerID
	a.state.Name = start.Name
	a.state.Role = start.Role
	a.state.Allies = start.Allies
	a.state.Players = start.Players
	a.state.MaxDays = start.MaxDays
	a.state.Adversaries = start.Adversaries
	a.state.Day = 0
	a.state.Pot = 0
	a.state.Events = nil
}

func (a *Agent) updateFromView(view protocol.View) {
	if view.Day > 0 {
		a.state.Day = view.Day
	}
	a.state.Pot = view.Pot
	if len(view.Players) > 0 {
		a.state.Players = view.Players
	}
	if view.Role != "" {
		a.state.Role = view.Role
	}
	if len(view.Allies) > 0 {
		a.state.Allies = view.Allies
	}
}

func (a *Agent) send(msgType protocol.MessageType, payload any) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Agent) read() (protocol.Message, error) {
	_, data, err := a.conn.ReadMessage()
	if err != nil {
		return protocol.Message{}, err
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return protocol.Message{}, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}

// Fallback answers a decision request with the safest available choice:
// the first candidate, declining recruitment unless it is an ultimatum,
// continuing the game, sharing the pot, the first token on offer.
func Fallback(req protocol.DecisionRequest) protocol.DecisionResponse {
	resp := protocol.DecisionResponse{RequestID: req.RequestID}
	switch req.Kind {
	case protocol.KindVote, protocol.KindKill, protocol.KindRecruitTarget:
		if len(req.Candidates) > 0 {
			resp.Target = req.Candidates[0]
		}
	case protocol.KindInvestigate:
		// Hold the token.
	case protocol.KindRecruitment:
		resp.Accept = req.Ultimatum
	case protocol.KindEndgame:
		resp.Choice = "continue"
	case protocol.KindShareSteal:
		resp.Choice = "share"
	case protocol.KindTokenChoice:
		if len(req.Options) > 0 {
			resp.Choice = req.Options[0]
		}
	case protocol.KindReflect:
		// No shifts.
	}
	return resp
}

// Base is a Handler with reasonable defaults: it answers every decision
// with Fallback and ignores everything else. Embed it and override what
// your agent cares about.
type Base struct{}

var _ Handler = Base{}

func (Base) OnGameStart(*State, protocol.GameStart) error { return nil }

func (Base) OnDecisionRequest(_ *State, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	return Fallback(req), nil
}

func (Base) OnEvent(*State, protocol.EventInfo) error { return nil }

func (Base) OnGameEnd(*State, protocol.GameEnd) error { return nil }
