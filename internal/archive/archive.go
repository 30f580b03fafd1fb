// Package archive persists finished games to SQLite. Games are written
// whole, after Run returns; there are no partial rows to clean up after a
// crash. Events land in their own table so replays and analysis can query
// by day or type without decoding a full export.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/traitorsforbots/internal/game"
)

// ErrNotFound is returned when the requested game is not archived.
var ErrNotFound = errors.New("game not found")

const schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id   TEXT PRIMARY KEY,
	seed      INTEGER NOT NULL,
	winner    TEXT NOT NULL,
	reason    TEXT NOT NULL,
	days      INTEGER NOT NULL,
	pot       INTEGER NOT NULL,
	config    TEXT NOT NULL,
	pot_split TEXT NOT NULL,
	saved_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS roster (
	game_id   TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	player_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	role      TEXT NOT NULL,
	alive     INTEGER NOT NULL,
	traits    TEXT NOT NULL,
	skills    TEXT NOT NULL,
	PRIMARY KEY (game_id, position)
);

CREATE TABLE IF NOT EXISTS events (
	game_id   TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	day       INTEGER NOT NULL,
	phase     TEXT NOT NULL,
	type      TEXT NOT NULL,
	at        INTEGER NOT NULL,
	actor     TEXT NOT NULL DEFAULT '',
	target    TEXT NOT NULL DEFAULT '',
	hidden    INTEGER NOT NULL DEFAULT 0,
	narrative TEXT NOT NULL DEFAULT '',
	data      TEXT,
	PRIMARY KEY (game_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_events_day ON events(game_id, day);

CREATE TABLE IF NOT EXISTS suspicion_snapshots (
	game_id TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	idx     INTEGER NOT NULL,
	day     INTEGER NOT NULL,
	phase   TEXT NOT NULL,
	matrix  TEXT NOT NULL,
	PRIMARY KEY (game_id, idx)
);

CREATE TABLE IF NOT EXISTS vote_rounds (
	game_id TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	idx     INTEGER NOT NULL,
	day     INTEGER NOT NULL,
	round   INTEGER NOT NULL,
	record  TEXT NOT NULL,
	ballots TEXT NOT NULL,
	PRIMARY KEY (game_id, idx)
);
`

// Store provides SQLite-backed persistence for finished games.
type Store struct {
	sqlDB *sql.DB
}

// GameSummary is one row from the archive listing.
type GameSummary struct {
	GameID  string
	Winner  game.Role
	Reason  game.EndReason
	Days    int
	Pot     int
	SavedAt time.Time
}

// Open opens (and if necessary initializes) an archive at the given path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveExport writes one finished game in a single transaction. Saving the
// same game twice replaces the earlier copy.
func (s *Store) SaveExport(ctx context.Context, e *game.Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("export is required")
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("refusing to archive: %w", err)
	}

	config, err := json.Marshal(e.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	potSplit, err := json.Marshal(e.PotSplit)
	if err != nil {
		return fmt.Errorf("encode pot split: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Clear any earlier copy so a re-save never leaves mixed children.
	for _, table := range []string{"vote_rounds", "suspicion_snapshots", "events", "roster", "games"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE game_id = ?", e.GameID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO games (game_id, seed, winner, reason, days, pot, config, pot_split, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.GameID, e.Seed, string(e.Winner), string(e.Reason), e.Days, e.Pot,
		string(config), string(potSplit), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	if err := insertRoster(ctx, tx, e); err != nil {
		return err
	}
	if err := insertEvents(ctx, tx, e); err != nil {
		return err
	}
	if err := insertSnapshots(ctx, tx, e); err != nil {
		return err
	}
	if err := insertVotes(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRoster(ctx context.Context, tx *sql.Tx, e *game.Export) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO roster (game_id, position, player_id, name, role, alive, traits, skills)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare roster insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range e.Roster {
		traits, err := json.Marshal(p.Traits)
		if err != nil {
			return fmt.Errorf("encode traits for %s: %w", p.ID, err)
		}
		skills, err := json.Marshal(p.Skills)
		if err != nil {
			return fmt.Errorf("encode skills for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.GameID, i, string(p.ID), p.Name, string(p.Role), boolToInt(p.Alive),
			string(traits), string(skills),
		); err != nil {
			return fmt.Errorf("insert roster row %d: %w", i, err)
		}
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, e *game.Export) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (game_id, seq, day, phase, type, at, actor, target, hidden, narrative, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range e.Events {
		var data sql.NullString
		if len(ev.Data) > 0 {
			raw, err := json.Marshal(ev.Data)
			if err != nil {
				return fmt.Errorf("encode event %d data: %w", ev.Seq, err)
			}
			data = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.GameID, ev.Seq, ev.Day, string(ev.Phase), string(ev.Type),
			ev.At.UTC().UnixMilli(), string(ev.Actor), string(ev.Target),
			boolToInt(ev.Hidden), ev.Narrative, data,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, e *game.Export) error {
	for i, snap := range e.Suspicion {
		matrix, err := json.Marshal(snap.Matrix)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO suspicion_snapshots (game_id, idx, day, phase, matrix) VALUES (?, ?, ?, ?, ?)`,
			e.GameID, i, snap.Day, string(snap.Phase), string(matrix),
		); err != nil {
			return fmt.Errorf("insert snapshot %d: %w", i, err)
		}
	}
	return nil
}

func insertVotes(ctx context.Context, tx *sql.Tx, e *game.Export) error {
	for i, round := range e.Votes {
		record, err := json.Marshal(round.Record)
		if err != nil {
			return fmt.Errorf("encode vote record %d: %w", i, err)
		}
		ballots, err := json.Marshal(round.Ballots)
		if err != nil {
			return fmt.Errorf("encode ballots %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vote_rounds (game_id, idx, day, round, record, ballots) VALUES (?, ?, ?, ?, ?, ?)`,
			e.GameID, i, round.Day, round.Round, string(record), string(ballots),
		); err != nil {
			return fmt.Errorf("insert vote round %d: %w", i, err)
		}
	}
	return nil
}

// LoadExport reconstructs a previously archived game.
func (s *Store) LoadExport(ctx context.Context, gameID string) (*game.Export, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := &game.Export{GameID: gameID}
	var config, potSplit string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT seed, winner, reason, days, pot, config, pot_split FROM games WHERE game_id = ?`,
		gameID,
	).Scan(&e.Seed, &e.Winner, &e.Reason, &e.Days, &e.Pot, &config, &potSplit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &e.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal([]byte(potSplit), &e.PotSplit); err != nil {
		return nil, fmt.Errorf("decode pot split: %w", err)
	}

	if e.Roster, err = s.loadRoster(ctx, gameID); err != nil {
		return nil, err
	}
	if e.Events, err = s.loadEvents(ctx, gameID); err != nil {
		return nil, err
	}
	if e.Suspicion, err = s.loadSnapshots(ctx, gameID); err != nil {
		return nil, err
	}
	if e.Votes, err = s.loadVotes(ctx, gameID); err != nil {
		return nil, err
	}

	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("archived game %s is corrupt: %w", gameID, err)
	}
	return e, nil
}

func (s *Store) loadRoster(ctx context.Context, gameID string) ([]game.RosterEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, name, role, alive, traits, skills FROM roster WHERE game_id = ? ORDER BY position`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	var roster []game.RosterEntry
	for rows.Next() {
		var entry game.RosterEntry
		var alive int
		var traits, skills string
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Role, &alive, &traits, &skills); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		entry.Alive = alive != 0
		if err := json.Unmarshal([]byte(traits), &entry.Traits); err != nil {
			return nil, fmt.Errorf("decode traits for %s: %w", entry.ID, err)
		}
		if err := json.Unmarshal([]byte(skills), &entry.Skills); err != nil {
			return nil, fmt.Errorf("decode skills for %s: %w", entry.ID, err)
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return roster, nil
}

func (s *Store) loadEvents(ctx context.Context, gameID string) ([]game.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, day, phase, type, at, actor, target, hidden, narrative, data
		 FROM events WHERE game_id = ? ORDER BY seq`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []game.Event
	for rows.Next() {
		var ev game.Event
		var at int64
		var hidden int
		var data sql.NullString
		if err := rows.Scan(&ev.Seq, &ev.Day, &ev.Phase, &ev.Type, &at,
			&ev.Actor, &ev.Target, &hidden, &ev.Narrative, &data); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.At = time.UnixMilli(at).UTC()
		ev.Hidden = hidden != 0
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event %d data: %w", ev.Seq, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) loadSnapshots(ctx context.Context, gameID string) ([]game.SuspicionSnapshot, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT day, phase, matrix FROM suspicion_snapshots WHERE game_id = ? ORDER BY idx`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []game.SuspicionSnapshot
	for rows.Next() {
		var snap game.SuspicionSnapshot
		var matrix string
		if err := rows.Scan(&snap.Day, &snap.Phase, &matrix); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(matrix), &snap.Matrix); err != nil {
			return nil, fmt.Errorf("decode snapshot matrix: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

func (s *Store) loadVotes(ctx context.Context, gameID string) ([]game.VoteRoundExport, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT day, round, record, ballots FROM vote_rounds WHERE game_id = ? ORDER BY idx`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	var votes []game.VoteRoundExport
	for rows.Next() {
		var round game.VoteRoundExport
		var record, ballots string
		if err := rows.Scan(&round.Day, &round.Round, &record, &ballots); err != nil {
			return nil, fmt.Errorf("scan vote row: %w", err)
		}
		if err := json.Unmarshal([]byte(record), &round.Record); err != nil {
			return nil, fmt.Errorf("decode vote record: %w", err)
		}
		if err := json.Unmarshal([]byte(ballots), &round.Ballots); err != nil {
			return nil, fmt.Errorf("decode ballots: %w", err)
		}
		votes = append(votes, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

// ListGames returns archived games, most recent first.
func (s *Store) ListGames(ctx context.Context) ([]GameSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT game_id, winner, reason, days, pot, saved_at FROM games ORDER BY saved_at DESC, game_id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		var savedAt int64
		if err := rows.Scan(&g.GameID, &g.Winner, &g.Reason, &g.Days, &g.Pot, &savedAt); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		g.SavedAt = time.UnixMilli(savedAt).UTC()
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return out, nil
}

// LatestGameID returns the id of the most recently archived game.
func (s *Store) LatestGameID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var id string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT game_id FROM games ORDER BY saved_at DESC, game_id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: archive is empty", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("latest game: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
