// internal/store/store.go
//
// Persistence port for the game core.
//
// The session machine only ever talks to the Store interface. Two
// implementations are selected at startup:
//   - memory: map-backed key-value fallback (this package, memory.go)
//   - sqlite: embedded relational store (sqlite.go)
//
// Besides the session snapshot calls the core needs, the port also carries
// player accounts and leaderboard reads used by the HTTP layer.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/juthoor/internal/game"
)

var (
	// ErrNotFound is returned when a snapshot or player does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned by CreatePlayer on a duplicate name.
	ErrUsernameTaken = errors.New("username taken")
)

// Snapshot is the persisted part of a session. Round content is not
// persisted; it is regenerated on restore.
type Snapshot struct {
	Mode            game.Mode       `json:"mode"`
	Difficulty      game.Difficulty `json:"difficulty"`
	Level           int             `json:"level"`
	RoundInLevel    int             `json:"roundInLevel"`
	Score           int             `json:"score"`
	Streak          int             `json:"streak"`
	MaxStreak       int             `json:"maxStreak"`
	HintsUsed       int             `json:"hintsUsed"`
	LevelsCompleted int             `json:"levelsCompleted"`
	LevelComplete   bool            `json:"levelComplete,omitempty"`
	Paused          bool            `json:"paused"`
	SavedAt         time.Time       `json:"savedAt"`
}

// HistoryEntry records one finished level run.
type HistoryEntry struct {
	ID              string    `json:"id"`
	PlayerID        string    `json:"playerId"`
	Mode            game.Mode `json:"mode"`
	Score           int       `json:"score"`
	MaxStreak       int       `json:"maxStreak"`
	LevelsCompleted int       `json:"levelsCompleted"`
	PlayedAt        time.Time `json:"playedAt"`
}

// Player is a registered account.
type Player struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Totals aggregates per-player counters.
type Totals struct {
	TotalScore int `json:"totalScore"`
	BestStreak int `json:"bestStreak"`
}

// LeaderboardRow is one line of a per-mode high-score table.
type LeaderboardRow struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username,omitempty"`
	Score    int    `json:"score"`
}

// Store defines the persistence interface.
type Store interface {
	// GetSession returns ErrNotFound when no snapshot exists.
	GetSession(ctx context.Context, mode game.Mode, playerID string) (*Snapshot, error)
	SaveSession(ctx context.Context, mode game.Mode, playerID string, s Snapshot) error
	ClearSession(ctx context.Context, mode game.Mode, playerID string) error

	RecordCompletedLevel(ctx context.Context, playerID string, mode game.Mode, level int) error
	CompletedLevels(ctx context.Context, playerID string, mode game.Mode) ([]int, error)

	// RecordHighScore stores score; callers only call it with a new best.
	RecordHighScore(ctx context.Context, playerID string, mode game.Mode, score int) error
	// HighScore returns 0 when the player has none.
	HighScore(ctx context.Context, playerID string, mode game.Mode) (int, error)

	AddToTotalScore(ctx context.Context, playerID string, delta int) error
	RecordStreak(ctx context.Context, playerID string, streak int) error
	Totals(ctx context.Context, playerID string) (Totals, error)

	AppendGameHistory(ctx context.Context, e HistoryEntry) error
	GameHistory(ctx context.Context, playerID string, limit int) ([]HistoryEntry, error)
	Leaderboard(ctx context.Context, mode game.Mode, limit int) ([]LeaderboardRow, error)

	CreatePlayer(ctx context.Context, p Player) error
	PlayerByName(ctx context.Context, username string) (*Player, error)
	PlayerByID(ctx context.Context, id string) (*Player, error)

	Close() error
}
