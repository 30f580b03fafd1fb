package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Phase identifies a segment of the daily loop.
type Phase string

const (
	PhaseReveal    Phase = "reveal"
	PhaseChallenge Phase = "challenge"
	PhaseSocial    Phase = "social"
	PhaseVote      Phase = "vote"
	PhaseNight     Phase = "night"
	PhaseEndgame   Phase = "endgame"
)

// EventType tags entries in the game's append-only event log.
type EventType string

const (
	EventTypeGameStart EventType = "game_start"
	EventTypeDayStart  EventType = "day_start"
	EventTypeReveal    EventType = "reveal"
	EventTypeArrival   EventType = "arrival"

	EventTypeChallengeResult EventType = "challenge_result"
	EventTypeTokenAwarded    EventType = "token_awarded"
	EventTypeInvestigation   EventType = "investigation"

	EventTypeBallot     EventType = "ballot"
	EventTypeVoteResult EventType = "vote_result"
	EventTypeTieBreak   EventType = "tie_break"
	EventTypeBanishment EventType = "banishment"

	EventTypeRecruitmentOffer    EventType = "recruitment_offer"
	EventTypeRecruitmentAccepted EventType = "recruitment_accepted"
	EventTypeRecruitmentDeclined EventType = "recruitment_declined"
	EventTypeUltimatumDeath      EventType = "ultimatum_death"

	EventTypeNightBallot EventType = "night_ballot"
	EventTypeMurder      EventType = "murder"
	EventTypeKillBlocked EventType = "kill_blocked"

	EventTypeEndgameVote   EventType = "endgame_vote"
	EventTypeEndgameResult EventType = "endgame_result"
	EventTypePayoffChoice  EventType = "payoff_choice"
	EventTypePotSplit      EventType = "pot_split"

	EventTypeAnomaly EventType = "anomaly"
	EventTypeGameEnd EventType = "game_end"
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	return string(et)
}

// Event is one entry in the game log. Seq is assigned by the log and is
// strictly increasing; entries are never mutated after append.
type Event struct {
	Seq   int       `json:"seq"`
	Day   int       `json:"day"`
	Phase Phase     `json:"phase"`
	Type  EventType `json:"type"`
	At    time.Time `json:"at"`

	Actor  PlayerID `json:"actor,omitempty"`
	Target PlayerID `json:"target,omitempty"`

	// Data carries per-type detail (tallies, prizes, roles). Values are
	// restricted to JSON-friendly kinds.
	Data map[string]any `json:"data,omitempty"`

	// Narrative is the announcer's line for this event, if any.
	Narrative string `json:"narrative,omitempty"`

	// Hidden marks entries that only the actor (and target, for
	// recruitment) may see in their player views. Exports include them.
	Hidden bool `json:"hidden,omitempty"`
}

// VisibleTo reports whether the event may appear in viewer's player view.
func (e Event) VisibleTo(viewer PlayerID) bool {
	if !e.Hidden {
		return true
	}
	return e.Actor == viewer || e.Target == viewer
}

// Sink receives every event as it is appended. Implementations must be fast
// and must not block; the log tolerates errors but calls sinks inline.
type Sink interface {
	Consume(e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event) error

// Consume calls f(e).
func (f SinkFunc) Consume(e Event) error { return f(e) }

// Announcer turns events into table talk. Returning an error or an empty
// line makes the engine fall back to its canned narration.
type Announcer interface {
	Narrate(e Event) (string, error)
}

// Log is the append-only record of everything that happened in a game.
// A single writer appends; any number of readers may snapshot concurrently.
type Log struct {
	mu     sync.RWMutex
	events []Event
	sinks  []Sink
	now    func() time.Time
	logger zerolog.Logger
}

// NewLog creates an event log. now stamps entries and may be nil for
// wall-clock time.
func NewLog(now func() time.Time, logger zerolog.Logger, sinks ...Sink) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{
		sinks:  sinks,
		now:    now,
		logger: logger.With().Str("component", "eventlog").Logger(),
	}
}

// Append stamps the event with the next sequence number and timestamp,
// stores it, and fans it out to sinks. Sink errors are logged and dropped
// so a bad sink can never stall the game.
func (l *Log) Append(e Event) Event {
	l.mu.Lock()
	e.Seq = len(l.events)
	if e.At.IsZero() {
		e.At = l.now()
	}
	l.events = append(l.events, e)
	sinks := l.sinks
	l.mu.Unlock()

	for _, s := range sinks {
		if err := s.Consume(e); err != nil {
			l.logger.Warn().Err(err).
				Int("seq", e.Seq).
				Str("type", e.Type.String()).
				Msg("Event sink failed")
		}
	}
	return e
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of the full log in append order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.events...)
}

// Since returns a copy of all events with Seq >= seq.
func (l *Log) Since(seq int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(l.events) {
		return nil
	}
	return append([]Event(nil), l.events[seq:]...)
}

// cannedAnnouncer produces serviceable one-line narration when no richer
// announcer is wired in, and backs up announcers that fail.
type cannedAnnouncer struct {
	names map[PlayerID]string
}

// NewCannedAnnouncer returns the engine's built-in announcer. names maps
// player IDs to display names.
func NewCannedAnnouncer(names map[PlayerID]string) Announcer {
	return cannedAnnouncer{names: names}
}

func (a cannedAnnouncer) Narrate(e Event) (string, error) {
	return a.line(e), nil
}

func (a cannedAnnouncer) name(id PlayerID) string {
	if n, ok := a.names[id]; ok {
		return n
	}
	return string(id)
}

func (a cannedAnnouncer) line(e Event) string {
	switch e.Type {
	case EventTypeGameStart:
		return "The players arrive. Among them, hidden adversaries."
	case EventTypeDayStart:
		return fmt.Sprintf("Day %d begins.", e.Day)
	case EventTypeReveal:
		if e.Target == "" {
			return "Everyone made it through the night."
		}
		return fmt.Sprintf("%s did not come to breakfast.", a.name(e.Target))
	case EventTypeArrival:
		return "One by one, the players file in."
	case EventTypeChallengeResult:
		return fmt.Sprintf("The challenge is over. %s performed best.", a.name(e.Actor))
	case EventTypeTokenAwarded:
		return fmt.Sprintf("%s claims a reward.", a.name(e.Target))
	case EventTypeInvestigation:
		return fmt.Sprintf("%s quietly studies %s.", a.name(e.Actor), a.name(e.Target))
	case EventTypeBallot:
		return fmt.Sprintf("%s votes for %s.", a.name(e.Actor), a.name(e.Target))
	case EventTypeVoteResult:
		return "The votes are in."
	case EventTypeTieBreak:
		return "The vote is tied."
	case EventTypeBanishment:
		return fmt.Sprintf("%s is banished.", a.name(e.Target))
	case EventTypeRecruitmentOffer:
		return fmt.Sprintf("%s receives an offer in the dark.", a.name(e.Target))
	case EventTypeRecruitmentAccepted:
		return fmt.Sprintf("%s turns.", a.name(e.Target))
	case EventTypeRecruitmentDeclined:
		return fmt.Sprintf("%s refuses.", a.name(e.Target))
	case EventTypeUltimatumDeath:
		return fmt.Sprintf("%s refused, and paid for it.", a.name(e.Target))
	case EventTypeNightBallot:
		return "A name is whispered."
	case EventTypeMurder:
		return fmt.Sprintf("In the night, %s is murdered.", a.name(e.Target))
	case EventTypeKillBlocked:
		return fmt.Sprintf("The adversaries came for %s, but the token held.", a.name(e.Target))
	case EventTypeEndgameVote:
		return fmt.Sprintf("%s declares their intent.", a.name(e.Actor))
	case EventTypeEndgameResult:
		return "The group has decided."
	case EventTypePayoffChoice:
		return fmt.Sprintf("%s makes a final choice.", a.name(e.Actor))
	case EventTypePotSplit:
		return "The pot is settled."
	case EventTypeGameEnd:
		return "The game is over."
	case EventTypeAnomaly:
		return ""
	default:
		return ""
	}
}
