// internal/store/sqlite.go
//
// SQLite implementation of the Store interface.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations from sql/*.sql (idempotent, recorded in _migrations).
//   - Session snapshots (JSON column), high scores, totals, history, players.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/juthoor/internal/game"
)

//go:embed sql/*.sql
var migrations embed.FS

var _ Store = (*SQLite)(nil)

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite database file and
// applies migrations.
//
// - Ensures parent directory exists for relative DSNs (e.g. ./data/juthoor.db).
// - Configures busy timeout and WAL journaling mode.
// - Use ":memory:" for a throwaway database (tests).
func OpenSQLite(dsn string) (*SQLite, error) {
	memoryDB := dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
	if !memoryDB {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	full := dsn + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	if strings.Contains(dsn, "?") {
		full = dsn + "&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", full)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memoryDB {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle (useful for tests).
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

/**
 * migrate applies SQL migrations from the embedded sql directory.
 *
 * - Uses a _migrations table to track applied files.
 * - Executes each *.sql file in lexical order.
 * - Skips if already applied.
 * - Detects "self-managed" scripts (with BEGIN TRANSACTION or PRAGMA FOREIGN_KEYS=OFF)
 *   and runs them outside of an outer transaction.
 */
func migrate(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		name := path.Base(f)
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		sqlText := string(sqlBytes)

		upper := strings.ToUpper(sqlText)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.Exec(sqlText); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
				return fmt.Errorf("record %s: %w", name, err)
			}
			log.Info().Str("migration", name).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("applied")
	}
	return nil
}

/* ---------------------------- sessions ---------------------------------- */

func (s *SQLite) GetSession(ctx context.Context, mode game.Mode, playerID string) (*Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE player_id=? AND mode=?`, playerID, string(mode),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLite) SaveSession(ctx context.Context, mode game.Mode, playerID string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (player_id, mode, snapshot, saved_at) VALUES (?,?,?,?)
        ON CONFLICT(player_id, mode) DO UPDATE SET snapshot=excluded.snapshot, saved_at=excluded.saved_at`,
		playerID, string(mode), string(raw), now(),
	)
	return err
}

func (s *SQLite) ClearSession(ctx context.Context, mode game.Mode, playerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE player_id=? AND mode=?`, playerID, string(mode))
	return err
}

/* ------------------------ progress & scores ----------------------------- */

func (s *SQLite) RecordCompletedLevel(ctx context.Context, playerID string, mode game.Mode, level int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_levels (player_id, mode, level) VALUES (?,?,?)`,
		playerID, string(mode), level,
	)
	return err
}

func (s *SQLite) CompletedLevels(ctx context.Context, playerID string, mode game.Mode) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level FROM completed_levels WHERE player_id=? AND mode=? ORDER BY level`,
		playerID, string(mode),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int{}
	for rows.Next() {
		var lvl int
		if err := rows.Scan(&lvl); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

// RecordHighScore keeps the larger of the stored and the given score.
func (s *SQLite) RecordHighScore(ctx context.Context, playerID string, mode game.Mode, score int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO high_scores (player_id, mode, score, updated_at) VALUES (?,?,?,?)
        ON CONFLICT(player_id, mode) DO UPDATE SET
            score=MAX(high_scores.score, excluded.score),
            updated_at=excluded.updated_at`,
		playerID, string(mode), score, now(),
	)
	return err
}

func (s *SQLite) HighScore(ctx context.Context, playerID string, mode game.Mode) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM high_scores WHERE player_id=? AND mode=?`, playerID, string(mode),
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return score, err
}

func (s *SQLite) AddToTotalScore(ctx context.Context, playerID string, delta int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO player_totals (player_id, total_score) VALUES (?, ?)
        ON CONFLICT(player_id) DO UPDATE SET total_score = player_totals.total_score + excluded.total_score`,
		playerID, delta,
	)
	return err
}

func (s *SQLite) RecordStreak(ctx context.Context, playerID string, streak int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO player_totals (player_id, best_streak) VALUES (?, ?)
        ON CONFLICT(player_id) DO UPDATE SET best_streak = MAX(player_totals.best_streak, excluded.best_streak)`,
		playerID, streak,
	)
	return err
}

func (s *SQLite) Totals(ctx context.Context, playerID string) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx,
		`SELECT total_score, best_streak FROM player_totals WHERE player_id=?`, playerID,
	).Scan(&t.TotalScore, &t.BestStreak)
	if errors.Is(err, sql.ErrNoRows) {
		return Totals{}, nil
	}
	return t, err
}

/* ----------------------------- history ---------------------------------- */

func (s *SQLite) AppendGameHistory(ctx context.Context, e HistoryEntry) error {
	if e.PlayedAt.IsZero() {
		e.PlayedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO game_history (id, player_id, mode, score, max_streak, levels_completed, played_at)
        VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.PlayerID, string(e.Mode), e.Score, e.MaxStreak, e.LevelsCompleted,
		e.PlayedAt.UTC().Format(timeFormat),
	)
	return err
}

func (s *SQLite) GameHistory(ctx context.Context, playerID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, player_id, mode, score, max_streak, levels_completed, played_at
        FROM game_history WHERE player_id=? ORDER BY played_at DESC LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		var mode, played string
		if err := rows.Scan(&e.ID, &e.PlayerID, &mode, &e.Score, &e.MaxStreak, &e.LevelsCompleted, &played); err != nil {
			return nil, err
		}
		e.Mode = game.Mode(mode)
		e.PlayedAt = mustParse(played)
		out = append(out, e)
	}
	return out, rows.Err()
}

/**
 * Leaderboard fetches the top high scores for a mode.
 *
 * - Ordered by score DESC, then updated_at ASC (earlier achiever first).
 * - Default limit is 20 if not specified.
 */
func (s *SQLite) Leaderboard(ctx context.Context, mode game.Mode, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT h.player_id, COALESCE(p.username, ''), h.score
        FROM high_scores h LEFT JOIN players p ON p.id = h.player_id
        WHERE h.mode=?
        ORDER BY h.score DESC, h.updated_at ASC
        LIMIT ?`, string(mode), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

/* ----------------------------- players ---------------------------------- */

func (s *SQLite) CreatePlayer(ctx context.Context, p Player) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		p.ID, p.Username, p.PasswordHash, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrUsernameTaken
	}
	return err
}

func (s *SQLite) PlayerByName(ctx context.Context, username string) (*Player, error) {
	return s.scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE username=? COLLATE NOCASE`, username))
}

func (s *SQLite) PlayerByID(ctx context.Context, id string) (*Player, error) {
	return s.scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE id=?`, id))
}

func (s *SQLite) scanPlayer(row *sql.Row) (*Player, error) {
	var p Player
	var created string
	if err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = mustParse(created)
	return &p, nil
}

// timeFormat is fixed-width so TEXT columns sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// now is the timestamp stored in TEXT columns.
func now() string { return time.Now().UTC().Format(timeFormat) }

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
