package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/lexicon"
	"github.com/robalobadob/juthoor/internal/session"
	"github.com/robalobadob/juthoor/internal/store"
)

var errBoom = errors.New("disk full")

// failingStore rejects every write and the high-score read.
type failingStore struct{ store.Store }

func (failingStore) SaveSession(context.Context, game.Mode, string, store.Snapshot) error {
	return errBoom
}
func (failingStore) RecordCompletedLevel(context.Context, string, game.Mode, int) error {
	return errBoom
}
func (failingStore) RecordHighScore(context.Context, string, game.Mode, int) error {
	return errBoom
}
func (failingStore) HighScore(context.Context, string, game.Mode) (int, error) {
	return 0, errBoom
}
func (failingStore) AddToTotalScore(context.Context, string, int) error {
	return errBoom
}
func (failingStore) RecordStreak(context.Context, string, int) error {
	return errBoom
}
func (failingStore) AppendGameHistory(context.Context, store.HistoryEntry) error {
	return errBoom
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock { return &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)} }

type harness struct {
	bundle *content.Bundle
	lex    *lexicon.Store
	store  store.Store
	clock  *clock
	exits  []game.Mode
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := content.LoadDefault()
	require.NoError(t, err)
	lex, err := lexicon.New(b.Roots)
	require.NoError(t, err)
	return &harness{bundle: b, lex: lex, store: store.NewMemoryStore(), clock: newClock()}
}

func (h *harness) machine(mode game.Mode, rules session.Rules, seed int64) *session.Machine {
	return session.New(mode, "player-1", rules, session.Deps{
		Lexicon: h.lex,
		Content: h.bundle,
		Store:   h.store,
		Navigator: session.NavigatorFunc(func(mode game.Mode, _ string) {
			h.exits = append(h.exits, mode)
		}),
		Rand:  rand.New(rand.NewSource(seed)),
		Clock: h.clock.Now,
	})
}

// answer submits the round's valid roots (a perfect round).
func answer(t *testing.T, m *session.Machine) session.Outcome {
	t.Helper()
	out, err := m.SubmitRoots(context.Background(), m.Round().ValidRoots)
	require.NoError(t, err)
	return out
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 1)
	assert.Equal(t, session.NotStarted, m.State())

	require.NoError(t, m.Start(context.Background(), ""))
	assert.Equal(t, session.InProgress, m.State())
	require.NotNil(t, m.Round())
	assert.Equal(t, game.Easy, m.Round().Difficulty)
	assert.Equal(t, []string{m.Round().Key}, m.UsedRoots())

	v := m.View()
	assert.Equal(t, 1, v.Level)
	assert.Equal(t, 0, v.RoundInLevel)
	assert.Equal(t, 3, v.RoundsPerLevel)

	assert.Error(t, m.Start(context.Background(), "legendary"))
}

func TestLevelCompletesAfterLastRound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 2)
	require.NoError(t, m.Start(ctx, game.Easy))

	for round := 0; round < 2; round++ {
		out := answer(t, m)
		assert.False(t, out.LastRound)
		state, err := m.AdvanceRound(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.InProgress, state)
		assert.Equal(t, round+1, m.View().RoundInLevel)
	}

	out := answer(t, m)
	assert.True(t, out.LastRound)
	state, err := m.AdvanceRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.LevelComplete, state, "roundInLevel=2 completes the level instead of generating round 4")
	assert.Len(t, m.UsedRoots(), 3)

	levels, err := h.store.CompletedLevels(ctx, "player-1", game.ModeRoots)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, levels)

	hist, err := h.store.GameHistory(ctx, "player-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, m.View().Score, hist[0].Score)
	assert.Equal(t, 3, hist[0].MaxStreak)
	assert.Equal(t, 1, hist[0].LevelsCompleted)

	tot, err := h.store.Totals(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, m.View().Score, tot.TotalScore)
	assert.Equal(t, 3, tot.BestStreak)

	snap, err := h.store.GetSession(ctx, game.ModeRoots, "player-1")
	require.NoError(t, err)
	assert.True(t, snap.LevelComplete)

	p, ok := m.Proverb()
	require.True(t, ok)
	assert.Equal(t, h.bundle.Proverbs[0], p)
}

func TestSubmitRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 3)
	require.NoError(t, m.Start(ctx, game.Easy))

	_, err := m.AdvanceRound(ctx)
	assert.ErrorIs(t, err, session.ErrNotRevealed)

	_, err = m.SubmitRoots(ctx, nil)
	assert.ErrorIs(t, err, game.ErrEmptySelection)
	assert.False(t, m.View().Revealed, "rejected submissions do not change state")

	_, err = m.SubmitQutrab(ctx, nil)
	assert.ErrorIs(t, err, session.ErrWrongMode)

	answer(t, m)
	_, err = m.SubmitRoots(ctx, m.Round().ValidRoots)
	assert.ErrorIs(t, err, session.ErrRoundRevealed)
}

func TestScoreStreakAndHighScore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rules := session.DefaultRules()
	rules.RoundsPerLevel = map[game.Difficulty]int{game.Easy: 5}
	m := h.machine(game.ModeRoots, rules, 4)
	require.NoError(t, m.Start(ctx, game.Easy))

	n1 := len(m.Round().ValidRoots)
	out := answer(t, m)
	assert.Equal(t, n1*10, out.Points)
	assert.Equal(t, 1, out.Streak)
	assert.True(t, out.NewHighScore)

	_, err := m.AdvanceRound(ctx)
	require.NoError(t, err)
	n2 := len(m.Round().ValidRoots)
	out = answer(t, m)
	assert.Equal(t, n2*10+1, out.Points, "streak bonus floor(1*10*0.1)")
	assert.Equal(t, 2, out.Streak)
	assert.Equal(t, n1*10+n2*10+1, out.Score)

	hs, err := h.store.HighScore(ctx, "player-1", game.ModeRoots)
	require.NoError(t, err)
	assert.Equal(t, out.Score, hs)

	// A wrong pick resets the streak.
	_, err = m.AdvanceRound(ctx)
	require.NoError(t, err)
	var wrong string
	for _, p := range m.Round().Permutations {
		if !m.Round().IsValidRoot(p) {
			wrong = p
			break
		}
	}
	require.NotEmpty(t, wrong)
	out, err = m.SubmitRoots(ctx, append([]string{wrong}, m.Round().ValidRoots...))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Streak)
	assert.Equal(t, 2, m.View().MaxStreak)
}

func TestDifficultyEscalates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rules := session.DefaultRules()
	rules.RoundsPerLevel = map[game.Difficulty]int{game.Easy: 1, game.Medium: 1, game.Hard: 1}
	m := h.machine(game.ModeRoots, rules, 5)
	require.NoError(t, m.Start(ctx, game.Easy))

	want := []game.Difficulty{game.Easy, game.Easy, game.Easy, game.Medium, game.Medium, game.Medium, game.Hard, game.Hard}
	for level, d := range want {
		require.Equal(t, level+1, m.View().Level)
		require.Equal(t, d, m.View().Difficulty, "level %d", level+1)
		answer(t, m)
		state, err := m.AdvanceRound(ctx)
		require.NoError(t, err)
		require.Equal(t, session.LevelComplete, state)
		require.NoError(t, m.AdvanceLevel(ctx))
		require.Equal(t, 0, m.View().RoundInLevel)
	}

	assert.ErrorIs(t, m.AdvanceLevel(ctx), session.ErrInvalidTransition)
}

func TestPauseResumeRestore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 6)
	require.NoError(t, m.Start(ctx, game.Easy))
	answer(t, m)
	_, err := m.AdvanceRound(ctx)
	require.NoError(t, err)
	before := m.View()

	require.NoError(t, m.Pause(ctx))
	assert.Equal(t, session.Paused, m.State())
	_, err = m.SubmitRoots(ctx, []string{"كتب"})
	assert.ErrorIs(t, err, session.ErrPaused)
	_, err = m.Rotate()
	assert.ErrorIs(t, err, session.ErrPaused)
	assert.ErrorIs(t, m.Pause(ctx), session.ErrInvalidTransition)

	snap, err := h.store.GetSession(ctx, game.ModeRoots, "player-1")
	require.NoError(t, err)
	assert.True(t, snap.Paused)
	assert.Equal(t, before.Level, snap.Level)
	assert.Equal(t, before.RoundInLevel, snap.RoundInLevel)
	assert.Equal(t, before.Score, snap.Score)
	assert.Equal(t, before.Streak, snap.Streak)

	require.NoError(t, m.Resume())
	assert.Equal(t, session.InProgress, m.State())
	assert.ErrorIs(t, m.Resume(), session.ErrInvalidTransition)

	// Cold start: counters come back, round content is regenerated.
	cold := h.machine(game.ModeRoots, session.DefaultRules(), 99)
	require.NoError(t, cold.Restore(ctx))
	after := cold.View()
	assert.Equal(t, session.InProgress, after.State)
	assert.Equal(t, before.Level, after.Level)
	assert.Equal(t, before.RoundInLevel, after.RoundInLevel)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.Streak, after.Streak)
	assert.Equal(t, before.HighScore, after.HighScore)
	assert.NotNil(t, cold.Round())
	assert.False(t, after.Revealed)
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	m := h.machine(game.ModeQutrab, session.DefaultRules(), 1)
	assert.ErrorIs(t, m.Restore(context.Background()), session.ErrNoSavedSession)
}

func TestRestoreLevelComplete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rules := session.DefaultRules()
	rules.RoundsPerLevel = map[game.Difficulty]int{game.Easy: 1}
	m := h.machine(game.ModeRoots, rules, 7)
	require.NoError(t, m.Start(ctx, game.Easy))
	answer(t, m)
	_, err := m.AdvanceRound(ctx)
	require.NoError(t, err)
	require.True(t, m.ConfirmExit(ctx).Saved)

	cold := h.machine(game.ModeRoots, rules, 8)
	require.NoError(t, cold.Restore(ctx))
	assert.Equal(t, session.LevelComplete, cold.State())
	require.NoError(t, cold.AdvanceLevel(ctx))
	assert.Equal(t, 2, cold.View().Level)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 9)
	require.NoError(t, m.Start(ctx, game.Easy))
	answer(t, m)
	require.NoError(t, m.Pause(ctx))

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, session.NotStarted, m.State())
	assert.Empty(t, m.UsedRoots())
	assert.Zero(t, m.View().Score)
	_, err := h.store.GetSession(ctx, game.ModeRoots, "player-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExitConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 10)

	assert.ErrorIs(t, m.RequestExit(), session.ErrInvalidTransition)
	require.NoError(t, m.Start(ctx, game.Easy))

	require.NoError(t, m.RequestExit())
	assert.Equal(t, session.ExitRequested, m.State())
	require.NoError(t, m.CancelExit())
	assert.Equal(t, session.InProgress, m.State())
	assert.Empty(t, h.exits)

	require.NoError(t, m.Pause(ctx))
	require.NoError(t, m.RequestExit())
	require.NoError(t, m.CancelExit())
	assert.Equal(t, session.Paused, m.State())

	require.NoError(t, m.RequestExit())
	rep := m.ConfirmExit(ctx)
	assert.True(t, rep.Saved)
	assert.NoError(t, rep.Err)
	assert.Equal(t, session.Exited, m.State())
	assert.Equal(t, []game.Mode{game.ModeRoots}, h.exits)

	snap, err := h.store.GetSession(ctx, game.ModeRoots, "player-1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Level)
}

func TestPersistenceFailuresNeverBlockPlay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store = failingStore{Store: store.NewMemoryStore()}
	rules := session.DefaultRules()
	rules.RoundsPerLevel = map[game.Difficulty]int{game.Easy: 1}
	m := h.machine(game.ModeRoots, rules, 11)

	require.NoError(t, m.Start(ctx, game.Easy))
	out := answer(t, m)
	assert.Positive(t, out.Score)
	assert.True(t, out.NewHighScore)

	state, err := m.AdvanceRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.LevelComplete, state)
	require.NoError(t, m.AdvanceLevel(ctx))
	require.NoError(t, m.Pause(ctx))

	rep := m.ConfirmExit(ctx)
	assert.False(t, rep.Saved)
	assert.ErrorIs(t, rep.Err, errBoom)
	assert.Equal(t, session.Exited, m.State(), "exit proceeds without a saved snapshot")
	assert.Equal(t, []game.Mode{game.ModeRoots}, h.exits)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 12)
	require.NoError(t, m.Start(ctx, game.Easy))
	first := m.Round().Key

	r, err := m.Rotate()
	require.NoError(t, err)
	assert.NotEqual(t, first, r.Key)
	assert.Equal(t, 0, m.View().RoundInLevel)
	assert.Len(t, m.UsedRoots(), 2)

	_, err = m.Rotate()
	assert.ErrorIs(t, err, session.ErrRotationPending)

	h.clock.Advance(time.Second)
	_, err = m.Rotate()
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	answer(t, m)
	_, err = m.Rotate()
	assert.ErrorIs(t, err, session.ErrRoundRevealed)

	q := h.machine(game.ModeQutrab, session.DefaultRules(), 12)
	require.NoError(t, q.Start(ctx, game.Easy))
	_, err = q.Rotate()
	assert.ErrorIs(t, err, session.ErrWrongMode)
}

func TestHints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rules := session.DefaultRules()
	rules.RoundsPerLevel = map[game.Difficulty]int{game.Easy: 5}
	m := h.machine(game.ModeRoots, rules, 13)
	require.NoError(t, m.Start(ctx, game.Easy))

	// Score is floored at zero.
	root := m.Round().ValidRoots[0]
	hint, err := m.Hint()
	require.NoError(t, err)
	assert.Equal(t, []rune(root)[0], []rune(hint.FirstLetter)[0])
	assert.Equal(t, m.Round().Meanings[root], hint.Meaning)
	assert.Equal(t, 10, hint.Cost)
	assert.Zero(t, hint.Score)
	assert.Equal(t, 1, m.View().HintsUsed)

	for i := 1; i < len(m.Round().ValidRoots); i++ {
		_, err = m.Hint()
		require.NoError(t, err)
	}
	_, err = m.Hint()
	assert.ErrorIs(t, err, session.ErrNoMoreHints)
	assert.Equal(t, len(m.Round().ValidRoots), m.View().HintsUsed, "exhausted hints are not charged")

	// With points banked, the cost comes off the session score.
	answer(t, m)
	_, err = m.AdvanceRound(ctx)
	require.NoError(t, err)
	before := m.View().Score
	require.Positive(t, before)
	hint, err = m.Hint()
	require.NoError(t, err)
	assert.Equal(t, max(before-10, 0), hint.Score)
	assert.Equal(t, hint.Score, m.View().Score)
}

func TestQutrabSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeQutrab, session.DefaultRules(), 14)
	require.NoError(t, m.Start(ctx, game.Easy))

	q := m.QutrabRound()
	require.NotNil(t, q)
	assert.Equal(t, game.Easy, q.Triangle.Difficulty, "first round honours the chosen difficulty")
	assert.Nil(t, m.Round())

	_, err := m.SubmitQutrab(ctx, []game.Pick{{WordKey: game.Fatha, MeaningID: 1}})
	assert.ErrorIs(t, err, game.ErrIncompleteMatches)
	_, err = m.SubmitRoots(ctx, []string{"كتب"})
	assert.ErrorIs(t, err, session.ErrWrongMode)

	hint, err := m.Hint()
	require.NoError(t, err)
	assert.Equal(t, q.Words[0].Key, hint.WordKey)
	v, _ := q.Triangle.Variant(hint.WordKey)
	assert.Equal(t, v.Meaning, hint.Meaning)
	card, ok := q.MeaningCard(hint.MeaningID)
	require.True(t, ok)
	assert.Equal(t, hint.Meaning, card.Meaning)

	out, err := m.SubmitQutrab(ctx, correctPicks(q))
	require.NoError(t, err)
	require.NotNil(t, out.Qutrab)
	assert.Equal(t, 3, out.Qutrab.Correct)
	assert.Equal(t, 30, out.Points)
	assert.Equal(t, 1, out.Streak)

	seen := map[int]bool{q.Triangle.ID: true}
	for i := 0; i < 2; i++ {
		_, err = m.AdvanceRound(ctx)
		require.NoError(t, err)
		id := m.QutrabRound().Triangle.ID
		assert.False(t, seen[id], "triangle %d repeated", id)
		seen[id] = true
		_, err = m.SubmitQutrab(ctx, correctPicks(m.QutrabRound()))
		require.NoError(t, err)
	}
}

func TestViewHidesAnswersUntilRevealed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 15)

	v := m.View()
	assert.Nil(t, v.Letters)

	require.NoError(t, m.Start(ctx, game.Easy))
	v = m.View()
	require.NotNil(t, v.Letters)
	assert.Len(t, v.Permutations, 6)
	assert.Nil(t, v.Answer)

	answer(t, m)
	v = m.View()
	require.NotNil(t, v.Answer)
	assert.Equal(t, m.Round().ValidRoots, v.Answer.ValidRoots)
	require.NotNil(t, v.Last)
	assert.NotNil(t, v.Last.Roots)

	q := h.machine(game.ModeQutrab, session.DefaultRules(), 15)
	require.NoError(t, q.Start(ctx, game.Easy))
	v = q.View()
	assert.Len(t, v.Words, 3)
	require.Len(t, v.Meanings, 3)
	assert.Nil(t, v.QutrabAnswer)
	for _, c := range v.Meanings {
		assert.Empty(t, c.Key, "meaning cards carry no variant before reveal")
		assert.NotZero(t, c.ID)
	}
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var decoded struct {
		Meanings []map[string]any `json:"meanings"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, c := range decoded.Meanings {
		assert.NotContains(t, c, "key")
		assert.Contains(t, c, "id")
	}
}

// correctPicks pairs every word with its own meaning card.
func correctPicks(q *game.QutrabRoundData) []game.Pick {
	picks := make([]game.Pick, 0, len(q.Words))
	for _, w := range q.Words {
		card, _ := q.MeaningCardFor(w.Key)
		picks = append(picks, game.Pick{WordKey: w.Key, MeaningID: card.ID})
	}
	return picks
}

func TestRootFact(t *testing.T) {
	h := newHarness(t)
	m := h.machine(game.ModeRoots, session.DefaultRules(), 16)
	f, ok := m.RootFact("كتب")
	require.True(t, ok)
	assert.NotEmpty(t, f.Fact)
}
