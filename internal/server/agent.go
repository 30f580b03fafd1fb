package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536

	sendBufferSize = 256
)

var (
	// ErrAgentClosed is returned when sending to a disconnected agent.
	ErrAgentClosed = errors.New("agent connection closed")

	// ErrSendTimeout is returned when an agent's send buffer stays full.
	ErrSendTimeout = errors.New("send timeout")
)

// Agent is one connected remote player. The server owns the connection;
// games talk to it through remoteProvider.
type Agent struct {
	ID       string
	Name     string
	playerID game.PlayerID

	conn   *websocket.Conn
	server *Server
	logger zerolog.Logger

	send   chan []byte
	done   chan struct{}
	closed bool
	mu     sync.RWMutex

	pendingMu sync.Mutex
	pending   map[string]chan protocol.DecisionResponse
}

func newAgent(logger zerolog.Logger, server *Server, conn *websocket.Conn, name string, playerID game.PlayerID) *Agent {
	id := uuid.NewString()
	return &Agent{
		ID:       id,
		Name:     name,
		playerID: playerID,
		conn:     conn,
		server:   server,
		logger:   logger.With().Str("component", "agent").Str("agent_id", id[:8]).Str("name", name).Logger(),
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		pending:  make(map[string]chan protocol.DecisionResponse),
	}
}

// PlayerID returns the seat identity this agent plays under.
func (a *Agent) PlayerID() game.PlayerID { return a.playerID }

// Done closes when the agent disconnects.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Closed reports whether the connection has gone away.
func (a *Agent) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Agent) markClosed() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	a.mu.Unlock()
}

// Close tears the connection down from the server side.
func (a *Agent) Close() {
	a.markClosed()
	_ = a.conn.Close()
}

// SendMessage wraps a payload in an envelope and queues it. It blocks
// briefly when the buffer is full so a stalled agent cannot wedge a game.
func (a *Agent) SendMessage(msgType protocol.MessageType, payload any) error {
	if a.Closed() {
		return ErrAgentClosed
	}

	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case a.send <- data:
		return nil
	case <-a.done:
		return ErrAgentClosed
	case <-time.After(time.Second):
		return ErrSendTimeout
	}
}

// expect registers interest in a decision response. The channel is
// buffered so readPump never blocks on delivery.
func (a *Agent) expect(requestID string) chan protocol.DecisionResponse {
	ch := make(chan protocol.DecisionResponse, 1)
	a.pendingMu.Lock()
	a.pending[requestID] = ch
	a.pendingMu.Unlock()
	return ch
}

// forget drops a registration, for requests that timed out.
func (a *Agent) forget(requestID string) {
	a.pendingMu.Lock()
	delete(a.pending, requestID)
	a.pendingMu.Unlock()
}

func (a *Agent) resolve(resp protocol.DecisionResponse) {
	a.pendingMu.Lock()
	ch, ok := a.pending[resp.RequestID]
	if ok {
		delete(a.pending, resp.RequestID)
	}
	a.pendingMu.Unlock()

	if !ok {
		a.logger.Debug().Str("request_id", resp.RequestID).Msg("response for expired request")
		return
	}
	ch <- resp
}

// readPump reads messages from the websocket connection.
func (a *Agent) readPump() {
	defer func() {
		a.server.dropAgent(a)
		_ = a.conn.Close()
		a.markClosed()
	}()

	a.conn.SetReadLimit(maxMessageSize)
	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				a.logger.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			a.logger.Warn().Err(err).Msg("unparseable message")
			continue
		}

		switch msg.Type {
		case protocol.TypeDecision:
			var resp protocol.DecisionResponse
			if err := msg.Decode(&resp); err != nil {
				a.logger.Warn().Err(err).Msg("bad decision payload")
				continue
			}
			a.resolve(resp)
		default:
			a.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring message")
		}
	}
}

// writePump writes messages to the websocket connection.
func (a *Agent) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = a.conn.Close()
		a.markClosed()
	}()

	for {
		select {
		case data, ok := <-a.send:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = a.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-a.done:
			return
		}
	}
}
