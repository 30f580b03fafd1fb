package game

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/gameid"
	"github.com/lox/traitorsforbots/internal/randutil"
)

// ErrGameFinished is returned when Run is called on a completed game.
var ErrGameFinished = errors.New("game already finished")

// EndReason explains why a game terminated.
type EndReason string

const (
	// EndReasonAdversariesEliminated: every adversary is dead.
	EndReasonAdversariesEliminated EndReason = "adversaries_eliminated"
	// EndReasonAdversaryParity: living adversaries reached parity with
	// living innocents before the endgame.
	EndReasonAdversaryParity EndReason = "adversary_parity"
	// EndReasonInnocentsEliminated: no innocents remain.
	EndReasonInnocentsEliminated EndReason = "innocents_eliminated"
	// EndReasonUnanimousStop: every living player voted to stop.
	EndReasonUnanimousStop EndReason = "unanimous_stop"
	// EndReasonMaxDays: the safety cap on days was reached.
	EndReasonMaxDays EndReason = "max_days"
)

// Outcome is the terminal result of one game.
type Outcome struct {
	GameID string    `json:"game_id"`
	Winner Role      `json:"winner"`
	Reason EndReason `json:"reason"`
	Days   int       `json:"days"`
	Pot    int       `json:"pot"`

	// PotSplit is each surviving winner's cut. Burned pots and rounding
	// remainders simply do not appear.
	PotSplit map[PlayerID]int `json:"pot_split,omitempty"`

	AdversariesAlive int `json:"adversaries_alive"`
	InnocentsAlive   int `json:"innocents_alive"`
}

// SuspicionSnapshot is one frozen copy of the ledger, tagged with when it
// was taken. Matrix rows follow the roster's casting order.
type SuspicionSnapshot struct {
	Day    int         `json:"day"`
	Phase  Phase       `json:"phase"`
	Matrix [][]float64 `json:"matrix"`
}

// Contestant is the pre-game description of a player: identity plus the
// persona profile supplied by the casting layer. Roles are assigned by the
// engine at start.
type Contestant struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	Traits Traits   `json:"traits"`
	Skills Skills   `json:"skills"`
}

// Game is the orchestrator for a single run. It exclusively owns the
// roster, ledger, vote history, tokens and event log; decision providers
// only ever see value snapshots. One goroutine drives Run from start to
// finish, fanning out provider calls per phase and joining them before any
// state changes.
type Game struct {
	cfg        Config
	id         string
	seed       int64
	roster     *Roster
	ledger     *Ledger
	tokens     *TokenManager
	providers  *Registry
	events     *Log
	announcer  Announcer
	canned     Announcer
	scorer     ChallengeScorer
	clock      quartz.Clock
	rng        *rand.Rand
	logger     zerolog.Logger
	sinks      []Sink
	fixedRoles map[PlayerID]Role

	day         int
	phase       Phase
	pot         int
	voteRounds  []voteRound
	murders     int
	banishments int

	// nightDiscussion holds the players shortlisted or balloted during the
	// previous night, used to bias the next morning's arrival order.
	nightDiscussion []PlayerID
	lastVictim      PlayerID
	lastBlocked     PlayerID

	dayStartSeq int
	reflectSeq  int
	snapshots   []SuspicionSnapshot

	started bool
	outcome *Outcome
}

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the structured logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Game) { g.logger = logger }
}

// WithClock injects the clock used for decision timeouts and event
// timestamps. Defaults to the real clock.
func WithClock(clock quartz.Clock) Option {
	return func(g *Game) { g.clock = clock }
}

// WithRNG overrides the seed-derived random source.
func WithRNG(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// WithProviders injects the per-game provider registry.
func WithProviders(reg *Registry) Option {
	return func(g *Game) { g.providers = reg }
}

// WithAnnouncer sets the narrative announcer. Failures fall back to canned
// lines.
func WithAnnouncer(a Announcer) Option {
	return func(g *Game) { g.announcer = a }
}

// WithSinks registers event sinks that receive every log entry.
func WithSinks(sinks ...Sink) Option {
	return func(g *Game) { g.sinks = append(g.sinks, sinks...) }
}

// WithScorer replaces the default challenge scorer.
func WithScorer(s ChallengeScorer) Option {
	return func(g *Game) { g.scorer = s }
}

// WithGameID fixes the game's identifier instead of generating one.
func WithGameID(id string) Option {
	return func(g *Game) { g.id = id }
}

// WithAssignedRoles pins role assignment instead of drawing it from the
// RNG. The adversary count must match the config.
func WithAssignedRoles(roles map[PlayerID]Role) Option {
	return func(g *Game) { g.fixedRoles = roles }
}

// NewGame validates the config, casts the roster and assigns roles. A
// returned error means the game must not start.
func NewGame(cfg Config, cast []Contestant, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cast) != cfg.Players {
		return nil, fmt.Errorf("cast size %d does not match configured players %d", len(cast), cfg.Players)
	}

	g := &Game{
		cfg:    cfg,
		logger: zerolog.Nop(),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.id == "" {
		g.id = gameid.New()
	}
	g.logger = g.logger.With().
		Str("component", "engine").
		Str("game_id", gameid.Short(g.id)).
		Logger()

	g.seed = cfg.Seed
	if g.rng == nil {
		if g.seed == 0 {
			g.seed = g.clock.Now().UnixNano()
		}
		g.rng = randutil.New(g.seed)
	}

	players := make([]*Player, len(cast))
	for i, c := range cast {
		players[i] = &Player{
			ID:     c.ID,
			Name:   c.Name,
			Role:   RoleInnocent,
			Alive:  true,
			Traits: c.Traits.Sanitized(),
			Skills: c.Skills.Sanitized(),
		}
	}
	roster, err := NewRoster(players)
	if err != nil {
		return nil, err
	}
	g.roster = roster

	if err := g.assignRoles(players); err != nil {
		return nil, err
	}

	g.ledger = NewLedger(roster.IDs())
	g.tokens = NewTokenManager(roster)
	if g.providers == nil {
		g.providers = NewRegistry()
	}
	names := make(map[PlayerID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	g.canned = NewCannedAnnouncer(names)
	if g.announcer == nil {
		g.announcer = g.canned
	}
	if g.scorer == nil {
		g.scorer = skillScorer{}
	}
	g.events = NewLog(func() time.Time { return g.clock.Now() }, g.logger, g.sinks...)
	return g, nil
}

func (g *Game) assignRoles(players []*Player) error {
	if g.fixedRoles != nil {
		n := 0
		for id, role := range g.fixedRoles {
			p, ok := g.roster.Get(id)
			if !ok {
				return fmt.Errorf("assigned role for unknown player %q", id)
			}
			p.Role = role
			if role == RoleAdversary {
				n++
			}
		}
		if n != g.cfg.Adversaries {
			return fmt.Errorf("assigned %d adversaries, config wants %d", n, g.cfg.Adversaries)
		}
		return nil
	}
	for _, i := range g.rng.Perm(len(players))[:g.cfg.Adversaries] {
		players[i].Role = RoleAdversary
	}
	return nil
}

// ID returns the game's identifier.
func (g *Game) ID() string { return g.id }

// Seed returns the effective RNG seed for this run.
func (g *Game) Seed() int64 { return g.seed }

// Events exposes the append-only event log.
func (g *Game) Events() *Log { return g.events }

// Roster exposes the roster for read-only callers such as announcers.
func (g *Game) Roster() *Roster { return g.roster }

// Outcome returns the terminal result, or nil while the game is running.
func (g *Game) Outcome() *Outcome { return g.outcome }

// Run plays the game to completion and returns the outcome. It may be
// called once; ctx cancellation aborts cleanly at the next phase boundary.
func (g *Game) Run(ctx context.Context) (*Outcome, error) {
	if g.started {
		return g.outcome, ErrGameFinished
	}
	g.started = true

	g.logger.Info().
		Int("players", g.cfg.Players).
		Int("adversaries", g.cfg.Adversaries).
		Int("max_days", g.cfg.MaxDays).
		Int64("seed", g.seed).
		Msg("Game starting")

	g.appendEvent(Event{
		Type: EventTypeGameStart,
		Data: map[string]any{
			"players":     g.roster.Len(),
			"adversaries": g.cfg.Adversaries,
			"max_days":    g.cfg.MaxDays,
		},
	})
	g.snapshot(PhaseReveal)

	for g.day = 1; g.day <= g.cfg.MaxDays; g.day++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("game aborted on day %d: %w", g.day, err)
		}
		done, err := g.runDay(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	if g.outcome == nil {
		g.endByMaxDays()
	}
	g.finishGame(ctx)
	return g.outcome, nil
}

// runDay sequences one day's phases. It returns true when the game reached
// a terminal state.
func (g *Game) runDay(ctx context.Context) (bool, error) {
	g.phase = PhaseReveal
	g.dayStartSeq = g.events.Len()
	g.appendEvent(Event{Type: EventTypeDayStart})
	g.logger.Debug().Int("day", g.day).Msg("Day starting")

	if g.day > 1 {
		g.runReveal()
		if g.checkWin() {
			return true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("game aborted in day %d: %w", g.day, err)
	}
	g.runChallenge(ctx)

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("game aborted in day %d: %w", g.day, err)
	}
	g.runSocial(ctx)
	g.snapshot(PhaseSocial)

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("game aborted in day %d: %w", g.day, err)
	}
	if g.endgameActive() {
		if g.runEndgameVote(ctx) {
			return true, nil
		}
	} else {
		g.runVote(ctx)
		if g.checkWin() {
			return true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("game aborted in day %d: %w", g.day, err)
	}
	g.runNight(ctx)
	if g.checkWin() {
		return true, nil
	}
	return false, nil
}

// runReveal announces the night's result and stages the arrival sequence.
func (g *Game) runReveal() {
	g.phase = PhaseReveal

	e := Event{Type: EventTypeReveal}
	if g.lastVictim != "" {
		e.Target = g.lastVictim
	} else if g.lastBlocked != "" {
		e.Data = map[string]any{"blocked": true}
	}
	g.appendEvent(e)

	order := g.arrivalOrder()
	g.appendEvent(Event{
		Type: EventTypeArrival,
		Data: map[string]any{"order": idStrings(order)},
	})

	g.lastVictim = ""
	g.lastBlocked = ""
}

// arrivalOrder shuffles the living players, nudging anyone the adversaries
// discussed overnight towards the back of the queue.
func (g *Game) arrivalOrder() []PlayerID {
	alive := g.roster.AliveIDs()
	type arrival struct {
		id    PlayerID
		score float64
	}
	arrivals := make([]arrival, len(alive))
	for i, id := range alive {
		score := g.rng.Float64()
		if g.cfg.BiasedArrivals && containsID(g.nightDiscussion, id) {
			score += 0.75
		}
		arrivals[i] = arrival{id: id, score: score}
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].score < arrivals[j].score })
	out := make([]PlayerID, len(arrivals))
	for i, a := range arrivals {
		out[i] = a.id
	}
	return out
}

// runSocial fans out reflections over everything that happened since the
// last pass and applies the returned suspicion shifts, then lets the
// reveal-token holder spend their investigation.
func (g *Game) runSocial(ctx context.Context) {
	g.phase = PhaseSocial
	alive := g.roster.Alive()

	since := g.reflectSeq
	g.reflectSeq = g.events.Len()

	results := fanOut(ctx, alive, func(ctx context.Context, p *Player) decided[[]SuspicionShift] {
		view := g.viewFor(p)
		events := visibleSince(g.events, since, p.ID)
		return decide(ctx, g, p, "reflect",
			func(ctx context.Context, dp DecisionProvider) ([]SuspicionShift, error) {
				return dp.Reflect(ctx, view, events)
			},
			func([]SuspicionShift) bool { return true },
		)
	})

	for i, p := range alive {
		if !results[i].ok {
			// Reflection is advisory; a failed provider just sits the
			// round out.
			continue
		}
		for _, shift := range results[i].value {
			g.ledger.Adjust(p.ID, shift.Target, shift.Delta)
		}
	}

	g.runInvestigation(ctx)
}

// runInvestigation lets the reveal-token holder learn one role. Returning
// an empty target keeps the token for another day.
func (g *Game) runInvestigation(ctx context.Context) {
	holder, ok := g.tokens.Holder(TokenReveal)
	if !ok {
		return
	}
	candidates := excludeID(g.roster.AliveIDs(), holder.ID)
	if len(candidates) == 0 {
		return
	}

	view := g.viewFor(holder)
	res := decide(ctx, g, holder, "investigate",
		func(ctx context.Context, dp DecisionProvider) (PlayerID, error) {
			return dp.DecideInvestigateTarget(ctx, view, candidates)
		},
		func(id PlayerID) bool { return id == "" || containsID(candidates, id) },
	)
	if !res.ok {
		// Unlike votes there is a legal "do nothing" here, so provider
		// faults hold the token rather than burning it on a random target.
		return
	}
	if res.value == "" {
		return
	}

	target, _ := g.roster.Get(res.value)
	g.tokens.Consume(holder, TokenReveal)
	g.appendEvent(Event{
		Type:   EventTypeInvestigation,
		Actor:  holder.ID,
		Target: target.ID,
		Data:   map[string]any{"role": target.Role.String()},
		Hidden: true,
	})
}

// runVote banishes by plurality and handles the recruitment aftermath.
func (g *Game) runVote(ctx context.Context) {
	g.phase = PhaseVote
	voters := g.roster.Alive()

	banished, ok := g.runBanishmentVote(ctx, voters)
	if !ok {
		return
	}
	g.consumeDoubleVotes(voters)

	p, found := g.roster.Get(banished)
	if !found || !p.Alive {
		g.anomaly(fmt.Sprintf("banishment vote selected invalid player %q", banished))
		alive := g.roster.AliveIDs()
		if len(alive) == 0 {
			return
		}
		banished = g.pick(alive)
		p, _ = g.roster.Get(banished)
	}

	g.eliminate(p, EventTypeBanishment, map[string]any{"role": p.Role.String()})
	g.banishments++

	if p.Role == RoleAdversary {
		g.runRecruitment(ctx)
	}
}

// consumeDoubleVotes burns the double-vote token of any voter who used it
// this phase. The weight applies to every round of the phase and the token
// expires with the phase.
func (g *Game) consumeDoubleVotes(voters []*Player) {
	for _, p := range voters {
		if p.DoubleVote {
			g.tokens.Consume(p, TokenDoubleVote)
		}
	}
}

// eliminate marks a player dead, retires their tokens and logs the event.
func (g *Game) eliminate(p *Player, eventType EventType, data map[string]any) {
	if !g.roster.kill(p.ID) {
		g.anomaly(fmt.Sprintf("attempted to eliminate dead player %q", p.ID))
		return
	}
	g.tokens.OnDeath(p)
	g.appendEvent(Event{Type: eventType, Target: p.ID, Data: data})
	g.logger.Info().
		Int("day", g.day).
		Str("player", string(p.ID)).
		Str("role", p.Role.String()).
		Str("cause", eventType.String()).
		Msg("Player eliminated")
}

// endgameActive reports whether the endgame sub-games have replaced the
// normal vote phase.
func (g *Game) endgameActive() bool {
	return g.cfg.EndgameThreshold > 0 && len(g.roster.Alive()) <= g.cfg.EndgameThreshold
}

// checkWin evaluates the terminal conditions and records the outcome when
// one holds. It reads state without mutating it, so repeated calls agree.
func (g *Game) checkWin() bool {
	if g.outcome != nil {
		return true
	}
	adversaries := g.roster.CountAlive(RoleAdversary)
	innocents := g.roster.CountAlive(RoleInnocent)

	switch {
	case adversaries == 0:
		g.setOutcome(RoleInnocent, EndReasonAdversariesEliminated)
	case innocents == 0:
		g.setOutcome(RoleAdversary, EndReasonInnocentsEliminated)
	case adversaries >= innocents && !g.endgameActive():
		// Once the endgame is live the table decides for itself; parity
		// no longer ends the game automatically.
		g.setOutcome(RoleAdversary, EndReasonAdversaryParity)
	default:
		return false
	}
	return true
}

func (g *Game) setOutcome(winner Role, reason EndReason) {
	g.outcome = &Outcome{
		GameID:           g.id,
		Winner:           winner,
		Reason:           reason,
		Days:             g.day,
		Pot:              g.pot,
		AdversariesAlive: g.roster.CountAlive(RoleAdversary),
		InnocentsAlive:   g.roster.CountAlive(RoleInnocent),
	}
}

// endByMaxDays applies the safety-cap resolution: whichever side still has
// adversaries standing takes it.
func (g *Game) endByMaxDays() {
	g.day = g.cfg.MaxDays
	winner := RoleInnocent
	if g.roster.CountAlive(RoleAdversary) > 0 {
		winner = RoleAdversary
	}
	g.setOutcome(winner, EndReasonMaxDays)
	g.logger.Info().
		Int("max_days", g.cfg.MaxDays).
		Str("winner", winner.String()).
		Msg("Max days reached, applying fallback resolution")
}

// finishGame settles the pot, snapshots the final ledger and logs the
// closing event.
func (g *Game) finishGame(ctx context.Context) {
	g.settlePot(ctx)
	g.snapshot(g.phase)
	g.appendEvent(Event{
		Type: EventTypeGameEnd,
		Data: map[string]any{
			"winner": g.outcome.Winner.String(),
			"reason": string(g.outcome.Reason),
			"days":   g.outcome.Days,
			"pot":    g.pot,
		},
	})
	g.logger.Info().
		Str("winner", g.outcome.Winner.String()).
		Str("reason", string(g.outcome.Reason)).
		Int("days", g.outcome.Days).
		Int("pot", g.pot).
		Msg("Game over")
}

// snapshot freezes the current ledger tagged with day and phase.
func (g *Game) snapshot(phase Phase) {
	g.snapshots = append(g.snapshots, SuspicionSnapshot{
		Day:    g.day,
		Phase:  phase,
		Matrix: g.ledger.Snapshot(),
	})
}

// viewFor builds the read-only state snapshot handed to p's provider.
func (g *Game) viewFor(p *Player) PlayerView {
	alive := g.roster.Alive()
	publics := make([]PublicPlayer, len(alive))
	for i, q := range alive {
		publics[i] = q.Public()
	}

	view := PlayerView{
		GameID:    g.id,
		Day:       g.day,
		MaxDays:   g.cfg.MaxDays,
		Phase:     g.phase,
		Pot:       g.pot,
		You:       p.Public(),
		Role:      p.Role,
		Traits:    p.Traits,
		Skills:    p.Skills,
		Players:   publics,
		Suspicion: g.ledger.Row(p.ID),
		Events:    visibleSince(g.events, g.dayStartSeq, p.ID),
	}
	if p.Role == RoleAdversary {
		for _, q := range alive {
			if q.Role == RoleAdversary && q.ID != p.ID {
				view.Allies = append(view.Allies, q.ID)
			}
		}
	}
	return view
}

// visibleSince filters the log from seq onwards down to what viewer may
// see.
func visibleSince(log *Log, seq int, viewer PlayerID) []Event {
	var out []Event
	for _, e := range log.Since(seq) {
		if e.VisibleTo(viewer) {
			out = append(out, e)
		}
	}
	return out
}

// appendEvent stamps, narrates and appends an event to the log.
func (g *Game) appendEvent(e Event) Event {
	e.Day = g.day
	if e.Phase == "" {
		e.Phase = g.phase
	}
	e.Narrative = g.narrate(e)
	return g.events.Append(e)
}

// narrate asks the announcer for a line and falls back to the canned one.
func (g *Game) narrate(e Event) string {
	line, err := g.announcer.Narrate(e)
	if err != nil || line == "" {
		if err != nil {
			g.logger.Warn().Err(err).Str("type", e.Type.String()).Msg("Announcer failed, using canned line")
		}
		line, _ = g.canned.Narrate(e)
	}
	return line
}

// anomaly records an engine-level irregularity in the log.
func (g *Game) anomaly(detail string) {
	g.logger.Warn().
		Int("day", g.day).
		Str("phase", string(g.phase)).
		Str("detail", detail).
		Msg("Engine anomaly")
	g.appendEvent(Event{
		Type: EventTypeAnomaly,
		Data: map[string]any{"detail": detail},
	})
}

// pick draws uniformly from ids on the orchestrator goroutine.
func (g *Game) pick(ids []PlayerID) PlayerID {
	return randutil.Pick(g.rng, sortedIDs(ids))
}
