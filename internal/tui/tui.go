// Package tui renders a live spectator view of a running game. A scripted
// game finishes in milliseconds, so the model buffers the engine's event
// feed and plays it back at a human pace, with pause and speed controls.
// The view is the producer's cut: hidden events are shown, marked as such.
package tui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/traitorsforbots/internal/game"
)

const (
	defaultInterval = 350 * time.Millisecond
	minInterval     = 50 * time.Millisecond
	maxInterval     = 2 * time.Second

	// eventBuffer bounds the feed channel. The sink never blocks the
	// engine; past this the feed drops and the view reports the count.
	eventBuffer = 4096

	rosterWidth = 24
)

type eventMsg struct {
	event game.Event
}

type finishMsg struct {
	outcome *game.Outcome
	err     error
}

type tickMsg time.Time

type rosterRow struct {
	id    game.PlayerID
	name  string
	alive bool
	role  game.Role // set once publicly revealed
}

// Model is the bubbletea model for watch mode. Create it with NewModel,
// register Sink() on the engine, run the game in a goroutine, and report
// the result with Finish.
type Model struct {
	gameID  string
	maxDays int

	events  chan game.Event
	done    chan finishMsg
	dropped atomic.Int64

	pending  []game.Event
	timeline []string
	names    map[game.PlayerID]string
	roster   []rosterRow
	vp       viewport.Model

	day   int
	phase game.Phase
	pot   int

	interval time.Duration
	paused   bool

	draining bool
	outcome  *game.Outcome
	runErr   error
	finished bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates a watch model for the given cast.
func NewModel(gameID string, cast []game.Contestant, maxDays int) *Model {
	roster := make([]rosterRow, len(cast))
	names := make(map[game.PlayerID]string, len(cast))
	for i, c := range cast {
		roster[i] = rosterRow{id: c.ID, name: c.Name, alive: true}
		names[c.ID] = c.Name
	}
	return &Model{
		gameID:   gameID,
		maxDays:  maxDays,
		events:   make(chan game.Event, eventBuffer),
		done:     make(chan finishMsg, 1),
		names:    names,
		roster:   roster,
		vp:       viewport.New(10, 5),
		interval: defaultInterval,
	}
}

// Sink returns the event sink to register on the engine. It never blocks:
// if the buffer fills, events are dropped and counted rather than stalling
// the game.
func (m *Model) Sink() game.Sink {
	return game.SinkFunc(func(e game.Event) error {
		select {
		case m.events <- e:
		default:
			m.dropped.Add(1)
		}
		return nil
	})
}

// Finish hands the game's terminal result to the model. The view drains
// any buffered events before showing it. Call it exactly once, after the
// engine returns.
func (m *Model) Finish(outcome *game.Outcome, err error) {
	select {
	case m.done <- finishMsg{outcome: outcome, err: err}:
	default:
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.nextEvent(), m.awaitFinish(), m.tick())
}

func (m *Model) nextEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg{event: <-m.events}
	}
}

func (m *Model) awaitFinish() tea.Cmd {
	return func() tea.Msg {
		return <-m.done
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case eventMsg:
		m.pending = append(m.pending, msg.event)
		return m, m.nextEvent()

	case finishMsg:
		m.draining = true
		m.outcome = msg.outcome
		m.runErr = msg.err
		return m, nil

	case tickMsg:
		m.advance()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case " ":
			m.paused = !m.paused
			return m, nil
		case "+", "=":
			m.interval = max(m.interval/2, minInterval)
			return m, nil
		case "-", "_":
			m.interval = min(m.interval*2, maxInterval)
			return m, nil
		case "up", "k":
			m.vp.ScrollUp(1)
			return m, nil
		case "down", "j":
			m.vp.ScrollDown(1)
			return m, nil
		case "pgup", "b":
			m.vp.HalfPageUp()
			return m, nil
		case "pgdown", "f":
			m.vp.HalfPageDown()
			return m, nil
		case "home", "g":
			m.vp.GotoTop()
			return m, nil
		case "end", "G":
			m.vp.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// advance plays the next buffered event, or shows the outcome once the
// feed has fully drained.
func (m *Model) advance() {
	if len(m.pending) == 0 {
		if m.draining && !m.finished {
			m.showOutcome()
		}
		return
	}
	if m.paused {
		return
	}
	e := m.pending[0]
	m.pending = m.pending[1:]
	m.apply(e)
	m.timeline = append(m.timeline, m.formatEvent(e))
	m.syncViewport()
}

// apply updates the header and roster from an event before it is rendered.
func (m *Model) apply(e game.Event) {
	if e.Day > 0 {
		m.day = e.Day
	}
	if e.Phase != "" {
		m.phase = e.Phase
	}
	if v, ok := asInt(e.Data["pot"]); ok {
		m.pot = v
	}

	switch e.Type {
	case game.EventTypeMurder, game.EventTypeBanishment, game.EventTypeUltimatumDeath:
		for i := range m.roster {
			if m.roster[i].id != e.Target {
				continue
			}
			m.roster[i].alive = false
			if role, ok := e.Data["role"].(string); ok {
				m.roster[i].role = game.Role(role)
			}
		}
	}
}

func (m *Model) formatEvent(e game.Event) string {
	tag := TimestampStyle.Render(fmt.Sprintf("d%02d %-9s", e.Day, e.Phase))
	body := e.Narrative
	if body == "" {
		body = strings.ReplaceAll(string(e.Type), "_", " ")
		if e.Target != "" {
			body += ": " + m.nameOf(e.Target)
		}
	}
	line := tag + " " + eventStyle(e.Type).Render(body)
	if e.Hidden {
		line += HiddenStyle.Render("  [hidden]")
	}
	return line
}

func (m *Model) nameOf(id game.PlayerID) string {
	if name, ok := m.names[id]; ok {
		return name
	}
	return string(id)
}

// showOutcome appends the result banner to the timeline.
func (m *Model) showOutcome() {
	m.finished = true
	m.timeline = append(m.timeline, "")
	switch {
	case m.runErr != nil:
		m.timeline = append(m.timeline,
			ErrorBannerStyle.Render(fmt.Sprintf("game aborted: %v", m.runErr)))
	case m.outcome != nil:
		o := m.outcome
		m.timeline = append(m.timeline,
			BannerStyle.Render(fmt.Sprintf("%s win after %d days (%s)", winnerLabel(o.Winner), o.Days, o.Reason)),
			FeedStyle.Render(fmt.Sprintf("pot %d, split between %d contestants", o.Pot, len(o.PotSplit))))
	}
	if n := m.dropped.Load(); n > 0 {
		m.timeline = append(m.timeline,
			HelpStyle.Render(fmt.Sprintf("(%d events dropped from the feed)", n)))
	}
	m.syncViewport()
	m.vp.GotoBottom()
}

// syncViewport refreshes the viewport content, keeping the view pinned to
// the bottom unless the user has scrolled away.
func (m *Model) syncViewport() {
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(strings.Join(m.timeline, "\n"))
	if atBottom {
		m.vp.GotoBottom()
	}
}

func (m *Model) layout() {
	feedWidth := m.width - rosterWidth - 8
	if feedWidth < 1 {
		feedWidth = 1
	}
	feedHeight := m.height - 4
	if feedHeight < 1 {
		feedHeight = 1
	}
	m.vp.Width = feedWidth
	m.vp.Height = feedHeight
	m.syncViewport()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := m.headerView()
	feed := PanelStyle.Render(m.vp.View())
	roster := PanelStyle.Width(rosterWidth + 2).Height(m.vp.Height).Render(m.rosterView())
	body := lipgloss.JoinHorizontal(lipgloss.Top, feed, roster)
	footer := HelpStyle.Render("space pause • +/- speed • ↑/↓ scroll • q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) headerView() string {
	phase := string(m.phase)
	if phase == "" {
		phase = "waiting"
	}
	parts := []string{
		HeaderStyle.Render(m.gameID),
		StatusStyle.Render(fmt.Sprintf("Day %d/%d • %s", m.day, m.maxDays, phase)),
		PotStyle.Render(fmt.Sprintf("Pot %d", m.pot)),
		StatusStyle.Render(fmt.Sprintf("%dms/event", m.interval.Milliseconds())),
	}
	if m.paused {
		parts = append(parts, AnomalyStyle.Render("PAUSED"))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) rosterView() string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Contestants"))
	for _, r := range m.roster {
		b.WriteString("\n")
		name := r.name
		if len(name) > rosterWidth-6 {
			name = name[:rosterWidth-7] + "…"
		}
		switch {
		case !r.alive && r.role == game.RoleAdversary:
			b.WriteString(DeadStyle.Render("✗ " + name))
			b.WriteString(" ")
			b.WriteString(RevealedStyle.Render(string(r.role)))
		case !r.alive && r.role != "":
			b.WriteString(DeadStyle.Render("✗ " + name))
			b.WriteString(" ")
			b.WriteString(StatusStyle.Render(string(r.role)))
		case !r.alive:
			b.WriteString(DeadStyle.Render("✗ " + name))
		default:
			b.WriteString(AliveStyle.Render("● " + name))
		}
	}
	return b.String()
}

func eventStyle(t game.EventType) lipgloss.Style {
	switch t {
	case game.EventTypeMurder, game.EventTypeUltimatumDeath:
		return DeathStyle
	case game.EventTypeBanishment:
		return BanishStyle
	case game.EventTypeChallengeResult, game.EventTypeTokenAwarded:
		return ChallengeStyle
	case game.EventTypeRecruitmentOffer, game.EventTypeRecruitmentAccepted, game.EventTypeRecruitmentDeclined:
		return RecruitStyle
	case game.EventTypeEndgameVote, game.EventTypeEndgameResult, game.EventTypePayoffChoice, game.EventTypePotSplit, game.EventTypeGameEnd:
		return EndgameStyle
	case game.EventTypeAnomaly:
		return AnomalyStyle
	default:
		return FeedStyle
	}
}

func winnerLabel(r game.Role) string {
	switch r {
	case game.RoleInnocent:
		return "Innocents"
	case game.RoleAdversary:
		return "Adversaries"
	default:
		return string(r)
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
