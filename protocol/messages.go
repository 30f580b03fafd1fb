// Package protocol defines the JSON wire messages exchanged between the
// game host and remote agents. It deliberately has no dependency on the
// engine so agent authors can import it (directly or through sdk/agent)
// without pulling in server internals.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

// Client to server.
const (
	TypeHello    MessageType = "hello"
	TypeDecision MessageType = "decision"
)

// Server to client.
const (
	TypeWelcome         MessageType = "welcome"
	TypeGameStart       MessageType = "game_start"
	TypeDecisionRequest MessageType = "decision_request"
	TypeEvent           MessageType = "event"
	TypeGameEnd         MessageType = "game_end"
	TypeError           MessageType = "error"
)

// Message is the envelope for every frame on the wire.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage wraps a payload in an envelope.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Data: raw, Timestamp: time.Now().UTC()}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// DecisionKind names one of the engine's decision points.
type DecisionKind string

const (
	KindVote          DecisionKind = "vote"
	KindKill          DecisionKind = "kill"
	KindRecruitTarget DecisionKind = "recruit_target"
	KindRecruitment   DecisionKind = "recruitment"
	KindEndgame       DecisionKind = "endgame"
	KindShareSteal    DecisionKind = "share_steal"
	KindTokenChoice   DecisionKind = "token_choice"
	KindInvestigate   DecisionKind = "investigate"
	KindReflect       DecisionKind = "reflect"
)

// Hello is the first frame a connecting agent sends.
type Hello struct {
	Name string `json:"name"`
	Game string `json:"game,omitempty"`
}

// Welcome acknowledges a Hello and assigns the agent its session identity.
type Welcome struct {
	AgentID  string `json:"agent_id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// PlayerInfo is the public projection of a contestant.
type PlayerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Alive      bool   `json:"alive"`
	Protection bool   `json:"protection,omitempty"`
	DoubleVote bool   `json:"double_vote,omitempty"`
	Reveal     bool   `json:"reveal,omitempty"`
}

// EventInfo is one game log entry, already redacted for the receiving
// player.
type EventInfo struct {
	Seq       int            `json:"seq"`
	Day       int            `json:"day"`
	Phase     string         `json:"phase"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor,omitempty"`
	Target    string         `json:"target,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Narrative string         `json:"narrative,omitempty"`
	Hidden    bool           `json:"hidden,omitempty"`
}

// View is the read-only game state accompanying a decision request.
type View struct {
	GameID  string `json:"game_id"`
	Day     int    `json:"day"`
	MaxDays int    `json:"max_days"`
	Phase   string `json:"phase"`
	Pot     int    `json:"pot"`

	You    PlayerInfo         `json:"you"`
	Role   string             `json:"role"`
	Traits map[string]float64 `json:"traits,omitempty"`
	Skills map[string]float64 `json:"skills,omitempty"`

	Players   []PlayerInfo       `json:"players"`
	Allies    []string           `json:"allies,omitempty"`
	Suspicion map[string]float64 `json:"suspicion,omitempty"`
	Events    []EventInfo        `json:"events,omitempty"`
}

// GameStart tells an agent its casting for a new game.
type GameStart struct {
	GameID      string       `json:"game_id"`
	PlayerID    string       `json:"player_id"`
	Name        string       `json:"name"`
	Role        string       `json:"role"`
	Allies      []string     `json:"allies,omitempty"`
	Players     []PlayerInfo `json:"players"`
	MaxDays     int          `json:"max_days"`
	Adversaries int          `json:"adversaries"`
}

// DecisionRequest asks the agent to answer one decision point before the
// deadline. Exactly which optional fields are set depends on Kind.
type DecisionRequest struct {
	RequestID  string       `json:"request_id"`
	Kind       DecisionKind `json:"kind"`
	DeadlineMS int64        `json:"deadline_ms"`
	View       View         `json:"view"`

	// Candidates for vote, kill, recruit_target and investigate.
	Candidates []string `json:"candidates,omitempty"`
	// Options for token_choice.
	Options []string `json:"options,omitempty"`
	// Ultimatum for recruitment.
	Ultimatum bool `json:"ultimatum,omitempty"`
	// Events for reflect.
	Events []EventInfo `json:"events,omitempty"`
}

// Shift is one suspicion adjustment inside a reflect response.
type Shift struct {
	Target string  `json:"target"`
	Delta  float64 `json:"delta"`
}

// DecisionResponse answers a DecisionRequest. The field matching the
// request's Kind is the one the host reads; everything else is ignored.
type DecisionResponse struct {
	RequestID string `json:"request_id"`

	// Target answers vote, kill, recruit_target and investigate. Empty is
	// a valid investigate answer meaning "hold the token".
	Target string `json:"target,omitempty"`
	// Accept answers recruitment.
	Accept bool `json:"accept,omitempty"`
	// Choice answers endgame ("stop"/"continue"), share_steal
	// ("share"/"steal") and token_choice (a token kind).
	Choice string `json:"choice,omitempty"`
	// Shifts answers reflect.
	Shifts []Shift `json:"shifts,omitempty"`
}

// GameEnd reports the terminal outcome to every agent in the game.
type GameEnd struct {
	GameID   string         `json:"game_id"`
	Winner   string         `json:"winner"`
	Reason   string         `json:"reason"`
	Days     int            `json:"days"`
	Pot      int            `json:"pot"`
	PotSplit map[string]int `json:"pot_split,omitempty"`
	YourRole string         `json:"your_role"`
	YouWon   bool           `json:"you_won"`
}

// Error reports a protocol or host fault to the agent.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
