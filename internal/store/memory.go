// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// This is the key-value fallback used when no database is configured, and
// the store most tests run against.
//
// Characteristics:
//   - Plain maps keyed by "mode|player" (or player id).
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/robalobadob/juthoor/internal/game"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu         sync.RWMutex
	sessions   map[string]Snapshot       // keyed by sessionKey
	completed  map[string]game.Set[int]  // keyed by sessionKey
	highScores map[string]int            // keyed by sessionKey
	totals     map[string]Totals         // keyed by player id
	history    map[string][]HistoryEntry // keyed by player id, oldest first
	players    map[string]Player         // keyed by id
	names      map[string]string         // lower(username) -> id
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		sessions:   make(map[string]Snapshot),
		completed:  make(map[string]game.Set[int]),
		highScores: make(map[string]int),
		totals:     make(map[string]Totals),
		history:    make(map[string][]HistoryEntry),
		players:    make(map[string]Player),
		names:      make(map[string]string),
	}
}

func sessionKey(mode game.Mode, playerID string) string {
	return string(mode) + "|" + playerID
}

func (m *memory) GetSession(ctx context.Context, mode game.Mode, playerID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionKey(mode, playerID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memory) SaveSession(ctx context.Context, mode game.Mode, playerID string, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey(mode, playerID)] = s
	return nil
}

func (m *memory) ClearSession(ctx context.Context, mode game.Mode, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(mode, playerID))
	return nil
}

func (m *memory) RecordCompletedLevel(ctx context.Context, playerID string, mode game.Mode, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sessionKey(mode, playerID)
	if m.completed[k] == nil {
		m.completed[k] = game.NewSet[int]()
	}
	m.completed[k].Add(level)
	return nil
}

func (m *memory) CompletedLevels(ctx context.Context, playerID string, mode game.Mode) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.completed[sessionKey(mode, playerID)]))
	for lvl := range m.completed[sessionKey(mode, playerID)] {
		out = append(out, lvl)
	}
	sort.Ints(out)
	return out, nil
}

func (m *memory) RecordHighScore(ctx context.Context, playerID string, mode game.Mode, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sessionKey(mode, playerID)
	if score > m.highScores[k] {
		m.highScores[k] = score
	}
	return nil
}

func (m *memory) HighScore(ctx context.Context, playerID string, mode game.Mode) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.highScores[sessionKey(mode, playerID)], nil
}

func (m *memory) AddToTotalScore(ctx context.Context, playerID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.totals[playerID]
	t.TotalScore += delta
	m.totals[playerID] = t
	return nil
}

func (m *memory) RecordStreak(ctx context.Context, playerID string, streak int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.totals[playerID]
	if streak > t.BestStreak {
		t.BestStreak = streak
	}
	m.totals[playerID] = t
	return nil
}

func (m *memory) Totals(ctx context.Context, playerID string) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals[playerID], nil
}

func (m *memory) AppendGameHistory(ctx context.Context, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.PlayerID] = append(m.history[e.PlayerID], e)
	return nil
}

// GameHistory returns the newest entries first.
func (m *memory) GameHistory(ctx context.Context, playerID string, limit int) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[playerID]
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	out := make([]HistoryEntry, 0, limit)
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out, nil
}

func (m *memory) Leaderboard(ctx context.Context, mode game.Mode, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := string(mode) + "|"
	out := []LeaderboardRow{}
	for k, score := range m.highScores {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		id := strings.TrimPrefix(k, prefix)
		out = append(out, LeaderboardRow{PlayerID: id, Username: m.players[id].Username, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) CreatePlayer(ctx context.Context, p Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := strings.ToLower(p.Username)
	if _, taken := m.names[name]; taken {
		return ErrUsernameTaken
	}
	m.players[p.ID] = p
	m.names[name] = p.ID
	return nil
}

func (m *memory) PlayerByName(ctx context.Context, username string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.players[id]
	return &p, nil
}

func (m *memory) PlayerByID(ctx context.Context, id string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memory) Close() error { return nil }
