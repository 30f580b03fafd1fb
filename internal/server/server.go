// Package server hosts games over websockets. Remote agents connect,
// announce themselves, and wait in a lobby; when enough have gathered the
// server casts a game around them, fills the remaining seats with
// scripted house personalities, and relays every decision and event over
// the wire.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/archive"
	"github.com/lox/traitorsforbots/internal/game"
	"github.com/lox/traitorsforbots/internal/persona"
	"github.com/lox/traitorsforbots/internal/provider/scripted"
	"github.com/lox/traitorsforbots/internal/randutil"
	"github.com/lox/traitorsforbots/internal/wire"
	"github.com/lox/traitorsforbots/protocol"
)

// helloTimeout bounds how long a fresh connection may dawdle before
// introducing itself.
const helloTimeout = 10 * time.Second

// Server accepts agent connections and runs games around them.
type Server struct {
	logger zerolog.Logger
	config Config
	clock  quartz.Clock
	store  *archive.Store

	rng   *rand.Rand
	rngMu sync.Mutex

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	register     chan *Agent
	unregister   chan *Agent
	matchTrigger chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once

	gameCtx    context.Context
	gameCancel context.CancelFunc

	// waiting and gamesStarted are owned by the run loop.
	waiting      []*Agent
	gamesStarted int

	lobbySize   atomic.Int64
	gamesDone   atomic.Int64
	activeGames sync.WaitGroup

	limitReached chan struct{}
	limitOnce    sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.config = cfg }
}

// WithArchive persists every completed game to the given store.
func WithArchive(store *archive.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithClock injects a fake clock for tests.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// NewServer builds a host around the given lobby-level RNG. Each game
// draws its seed from it, so a seeded server replays identically.
func NewServer(logger zerolog.Logger, rng *rand.Rand, opts ...Option) *Server {
	s := &Server{
		logger: logger.With().Str("component", "server").Logger(),
		config: DefaultConfig(),
		rng:    rng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:     make(chan *Agent),
		unregister:   make(chan *Agent),
		matchTrigger: make(chan struct{}, 1),
		stop:         make(chan struct{}),
		limitReached: make(chan struct{}),
	}
	s.gameCtx, s.gameCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the lobby loop and serves websocket upgrades on addr. It
// blocks until Shutdown, like http.Server.ListenAndServe.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	go s.run()

	s.logger.Info().
		Str("addr", addr).
		Int("players", s.config.Players).
		Int("adversaries", s.config.Adversaries).
		Int("min_agents", s.config.MinAgents).
		Bool("fill_scripted", s.config.FillScripted).
		Msg("Server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting connections, aborts running games and waits
// for them to unwind.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.gameCancel()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.activeGames.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// GamesCompleted returns how many games have finished.
func (s *Server) GamesCompleted() int64 { return s.gamesDone.Load() }

// GameLimitReached closes once the configured game limit is hit.
func (s *Server) GameLimitReached() <-chan struct{} { return s.limitReached }

func (s *Server) nextSeed() int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int64()
}

func (s *Server) triggerMatch() {
	select {
	case s.matchTrigger <- struct{}{}:
	default:
	}
}

func (s *Server) dropAgent(a *Agent) {
	select {
	case s.unregister <- a:
	case <-s.stop:
	}
}

func (s *Server) run() {
	for {
		select {
		case a := <-s.register:
			s.waiting = append(s.waiting, a)
			s.lobbySize.Store(int64(len(s.waiting)))
			s.logger.Info().Str("name", a.Name).Int("waiting", len(s.waiting)).Msg("Agent joined lobby")
			s.triggerMatch()

		case a := <-s.unregister:
			for i, w := range s.waiting {
				if w == a {
					s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
					break
				}
			}
			s.lobbySize.Store(int64(len(s.waiting)))
			s.logger.Info().Str("name", a.Name).Int("waiting", len(s.waiting)).Msg("Agent left lobby")

		case <-s.matchTrigger:
			s.tryMatch()

		case <-s.stop:
			for _, a := range s.waiting {
				a.Close()
			}
			s.waiting = nil
			s.lobbySize.Store(0)
			return
		}
	}
}

// tryMatch seats as many games as the lobby allows. A full house of
// connected agents starts immediately; otherwise a game starts as soon
// as MinAgents have gathered, with scripted personalities in the empty
// seats.
func (s *Server) tryMatch() {
	for {
		if s.config.GameLimit > 0 && s.gamesStarted >= s.config.GameLimit {
			return
		}
		take := s.config.seatCount(len(s.waiting))
		if take == 0 {
			return
		}

		seated := append([]*Agent(nil), s.waiting[:take]...)
		s.waiting = append([]*Agent(nil), s.waiting[take:]...)
		s.lobbySize.Store(int64(len(s.waiting)))
		s.gamesStarted++

		s.activeGames.Add(1)
		go s.runGame(seated)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	hello, err := readHello(conn)
	if err != nil {
		s.logger.Warn().Err(err).Msg("handshake failed")
		_ = conn.Close()
		return
	}

	name := strings.TrimSpace(hello.Name)
	if name == "" {
		name = "agent-" + uuid.NewString()[:8]
	}

	agent := newAgent(s.logger, s, conn, name, game.PlayerID(persona.Slug(name)))
	go agent.writePump()
	go agent.readPump()

	if err := agent.SendMessage(protocol.TypeWelcome, protocol.Welcome{
		AgentID:  agent.ID,
		PlayerID: string(agent.PlayerID()),
		Name:     name,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("welcome failed")
		agent.Close()
		return
	}

	select {
	case s.register <- agent:
	case <-s.stop:
		agent.Close()
	}
}

// readHello performs the synchronous handshake before the pumps start.
func readHello(conn *websocket.Conn) (protocol.Hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Hello{}, fmt.Errorf("read hello: %w", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return protocol.Hello{}, fmt.Errorf("parse hello: %w", err)
	}
	if msg.Type != protocol.TypeHello {
		return protocol.Hello{}, fmt.Errorf("expected hello, got %s", msg.Type)
	}
	var hello protocol.Hello
	if err := msg.Decode(&hello); err != nil {
		return protocol.Hello{}, fmt.Errorf("decode hello: %w", err)
	}
	return hello, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","waiting":%d,"games_completed":%d}`,
		s.lobbySize.Load(), s.gamesDone.Load())
}

// runGame casts a game around the seated agents and plays it to the end.
func (s *Server) runGame(seated []*Agent) {
	defer s.activeGames.Done()

	seed := s.nextSeed()
	gameRng := randutil.New(seed)
	cast := persona.Generate(gameRng, s.config.Players)

	seatMap := s.seatAgents(cast, seated)

	reg := game.NewRegistry()
	for pid, a := range seatMap {
		reg.Bind(pid, newRemoteProvider(a))
	}
	for _, c := range cast {
		if _, taken := seatMap[c.ID]; !taken {
			reg.Bind(c.ID, scripted.New(c.Traits, randutil.New(gameRng.Int64())))
		}
	}

	gcfg := s.config.GameConfig()
	gcfg.Seed = seed

	opts := []game.Option{
		game.WithLogger(s.logger),
		game.WithRNG(gameRng),
		game.WithProviders(reg),
		game.WithSinks(s.broadcastSink(seatMap)),
	}
	if s.clock != nil {
		opts = append(opts, game.WithClock(s.clock))
	}

	g, err := game.NewGame(gcfg, cast, opts...)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to cast game")
		s.reseat(seated)
		return
	}

	logger := s.logger.With().Str("game_id", g.ID()).Logger()
	logger.Info().Int("agents", len(seated)).Int64("seed", seed).Msg("Game starting")

	s.sendGameStart(g, seatMap)

	outcome, err := g.Run(s.gameCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("game aborted")
		s.reseat(seated)
		return
	}

	if s.store != nil {
		s.archiveGame(logger, g)
	}
	s.sendGameEnd(g, seatMap, outcome)

	logger.Info().
		Str("winner", string(outcome.Winner)).
		Str("reason", string(outcome.Reason)).
		Int("days", outcome.Days).
		Msg("Game complete")

	done := s.gamesDone.Add(1)
	if s.config.GameLimit > 0 && done >= int64(s.config.GameLimit) {
		s.limitOnce.Do(func() { close(s.limitReached) })
	}
	s.reseat(seated)
}

// seatAgents overwrites generated contestants with the connected agents'
// identities, keeping the generated trait profiles for challenge rolls.
func (s *Server) seatAgents(cast []game.Contestant, seated []*Agent) map[game.PlayerID]*Agent {
	used := make(map[game.PlayerID]bool, len(cast))
	for _, c := range cast {
		used[c.ID] = true
	}

	seatMap := make(map[game.PlayerID]*Agent, len(seated))
	for i, a := range seated {
		delete(used, cast[i].ID)
		pid := a.PlayerID()
		for used[pid] {
			pid += "x"
		}
		used[pid] = true
		cast[i].ID = pid
		cast[i].Name = a.Name
		seatMap[pid] = a
	}
	return seatMap
}

// reseat returns still-connected agents to the lobby for the next game.
func (s *Server) reseat(seated []*Agent) {
	for _, a := range seated {
		if a.Closed() {
			continue
		}
		select {
		case s.register <- a:
		case <-s.stop:
			a.Close()
		}
	}
}

// broadcastSink relays events to seated agents, each seeing only what
// their player may see.
func (s *Server) broadcastSink(seatMap map[game.PlayerID]*Agent) game.Sink {
	return game.SinkFunc(func(e game.Event) error {
		info := wire.EventFromGame(e)
		for pid, a := range seatMap {
			if !e.VisibleTo(pid) {
				continue
			}
			if err := a.SendMessage(protocol.TypeEvent, info); err != nil && !errors.Is(err, ErrAgentClosed) {
				s.logger.Debug().Err(err).Str("name", a.Name).Msg("event delivery failed")
			}
		}
		return nil
	})
}

func (s *Server) sendGameStart(g *game.Game, seatMap map[game.PlayerID]*Agent) {
	roster := g.Roster()
	publics := wire.PlayersFromGame(roster.Publics())

	for pid, a := range seatMap {
		p, ok := roster.Get(pid)
		if !ok {
			continue
		}
		var allies []game.PlayerID
		if p.Role == game.RoleAdversary {
			for _, adv := range roster.AliveByRole(game.RoleAdversary) {
				if adv.ID != pid {
					allies = append(allies, adv.ID)
				}
			}
		}
		err := a.SendMessage(protocol.TypeGameStart, protocol.GameStart{
			GameID:      g.ID(),
			PlayerID:    string(pid),
			Name:        p.Name,
			Role:        string(p.Role),
			Allies:      wire.IDStrings(allies),
			Players:     publics,
			MaxDays:     s.config.MaxDays,
			Adversaries: s.config.Adversaries,
		})
		if err != nil {
			s.logger.Debug().Err(err).Str("name", a.Name).Msg("game start delivery failed")
		}
	}
}

func (s *Server) sendGameEnd(g *game.Game, seatMap map[game.PlayerID]*Agent, outcome *game.Outcome) {
	roster := g.Roster()
	split := make(map[string]int, len(outcome.PotSplit))
	for pid, amount := range outcome.PotSplit {
		split[string(pid)] = amount
	}

	for pid, a := range seatMap {
		p, ok := roster.Get(pid)
		if !ok {
			continue
		}
		err := a.SendMessage(protocol.TypeGameEnd, protocol.GameEnd{
			GameID:   g.ID(),
			Winner:   string(outcome.Winner),
			Reason:   string(outcome.Reason),
			Days:     outcome.Days,
			Pot:      outcome.Pot,
			PotSplit: split,
			YourRole: string(p.Role),
			YouWon:   p.Role == outcome.Winner,
		})
		if err != nil {
			s.logger.Debug().Err(err).Str("name", a.Name).Msg("game end delivery failed")
		}
	}
}

func (s *Server) archiveGame(logger zerolog.Logger, g *game.Game) {
	exp, err := g.Export()
	if err != nil {
		logger.Warn().Err(err).Msg("export failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.SaveExport(ctx, exp); err != nil {
		logger.Warn().Err(err).Msg("archive failed")
		return
	}
	logger.Debug().Msg("game archived")
}
