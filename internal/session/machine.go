// internal/session/machine.go
//
// Session State Machine for one player in one mode.
//
// States:
//   not_started → in_progress ⇄ paused
//   in_progress → level_complete → in_progress (next level)
//   any started state → exit_requested → exited | (cancel) previous state
//
// Responsibilities:
//   - Drive round generation (roots or qutrab) on start, rotate and advance.
//   - Score submissions and update score, streak and high score.
//   - Keep anti-repeat history (used letter combinations / triangle ids).
//   - Persist at pause, level completion and exit. Persistence failures
//     are logged and swallowed; they never block play.
//
// A Machine is not safe for concurrent use: it models one logical actor
// processing player events in order. Callers serialize access.

package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/store"
)

// State is the machine's coarse state.
type State string

const (
	NotStarted    State = "not_started"
	InProgress    State = "in_progress"
	Paused        State = "paused"
	LevelComplete State = "level_complete"
	ExitRequested State = "exit_requested"
	Exited        State = "exited"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrPaused            = errors.New("session is paused")
	ErrRoundRevealed     = errors.New("round already answered")
	ErrNotRevealed       = errors.New("round not answered yet")
	ErrRotationPending   = errors.New("rotation in progress")
	ErrWrongMode         = errors.New("not available in this mode")
	ErrNoSavedSession    = errors.New("no saved session")
	ErrNoMoreHints       = errors.New("no more hints for this round")
)

// Navigator is told when the player leaves the game.
type Navigator interface {
	Exit(mode game.Mode, playerID string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(mode game.Mode, playerID string)

// Exit calls f.
func (f NavigatorFunc) Exit(mode game.Mode, playerID string) { f(mode, playerID) }

// Deps are the collaborators a Machine consumes. Lexicon is required for
// roots mode, Content (triangles) for qutrab mode. Store, Navigator, Rand
// and Clock are optional.
type Deps struct {
	Lexicon   game.Lexicon
	Content   *content.Bundle
	Store     store.Store
	Navigator Navigator
	Rand      game.Rand
	Clock     func() time.Time
}

// Outcome is returned by a submission.
type Outcome struct {
	Roots        *game.RootsResult  `json:"roots,omitempty"`
	Qutrab       *game.QutrabResult `json:"qutrab,omitempty"`
	Points       int                `json:"points"`
	Score        int                `json:"score"`
	Streak       int                `json:"streak"`
	HighScore    int                `json:"highScore"`
	NewHighScore bool               `json:"newHighScore"`
	LastRound    bool               `json:"lastRound"`
}

// ExitReport tells the caller whether progress was saved before leaving.
// Exit proceeds either way.
type ExitReport struct {
	Saved bool  `json:"saved"`
	Err   error `json:"-"`
}

// Machine is one player's session in one mode.
type Machine struct {
	id       string
	mode     game.Mode
	playerID string
	rules    Rules

	lex    game.Lexicon
	bundle *content.Bundle
	roots  *game.RoundGenerator
	qutrab *game.QutrabGenerator
	store  store.Store
	nav    Navigator
	rng    game.Rand
	now    func() time.Time
	logger zerolog.Logger

	state      State
	exitReturn State

	difficulty      game.Difficulty
	level           int
	roundInLevel    int
	score           int
	levelStartScore int
	streak          int
	maxStreak       int
	hintsUsed       int
	levelsCompleted int
	highScore       int

	usedRoots     game.Set[string]
	usedTriangles game.Set[int]
	qutrabRounds  int

	round       *game.RoundData
	qround      *game.QutrabRoundData
	revealed    bool
	last        *Outcome
	roundHints  int
	lastRotated time.Time
}

// New builds a machine in the NotStarted state.
func New(mode game.Mode, playerID string, rules Rules, deps Deps) *Machine {
	m := &Machine{
		id:            uuid.NewString(),
		mode:          mode,
		playerID:      playerID,
		rules:         rules,
		lex:           deps.Lexicon,
		bundle:        deps.Content,
		store:         deps.Store,
		nav:           deps.Navigator,
		rng:           deps.Rand,
		now:           deps.Clock,
		state:         NotStarted,
		usedRoots:     game.NewSet[string](),
		usedTriangles: game.NewSet[int](),
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.lex != nil {
		m.roots = game.NewRoundGenerator(m.lex, rules.Policies)
	}
	var triangles []game.QutrabTriangle
	if m.bundle != nil {
		triangles = m.bundle.Triangles
	}
	m.qutrab = game.NewQutrabGenerator(triangles)
	m.logger = log.With().Str("session", m.id).Str("player", playerID).Str("mode", string(mode)).Logger()
	return m
}

// ID returns the machine's unique id.
func (m *Machine) ID() string { return m.id }

// Mode returns the puzzle mode.
func (m *Machine) Mode() game.Mode { return m.mode }

// PlayerID returns the owning player.
func (m *Machine) PlayerID() string { return m.playerID }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Round returns the current roots round (nil in qutrab mode).
func (m *Machine) Round() *game.RoundData { return m.round }

// QutrabRound returns the current qutrab round (nil in roots mode).
func (m *Machine) QutrabRound() *game.QutrabRoundData { return m.qround }

// UsedRoots returns a copy of the anti-repeat history of letter combinations.
func (m *Machine) UsedRoots() []string {
	out := make([]string, 0, len(m.usedRoots))
	for k := range m.usedRoots {
		out = append(out, k)
	}
	return out
}

/* ------------------------------ lifecycle ------------------------------- */

// Start begins a fresh session at d (rules.DefaultDifficulty if empty).
// Counters and anti-repeat history are reset.
func (m *Machine) Start(ctx context.Context, d game.Difficulty) error {
	if d == "" {
		d = m.rules.DefaultDifficulty
	}
	if !d.Valid() {
		return fmt.Errorf("start: unknown difficulty %q", d)
	}
	m.resetCounters()
	m.difficulty = d
	m.loadHighScore(ctx)
	if err := m.newRound(); err != nil {
		return err
	}
	m.state = InProgress
	m.logger.Info().Str("difficulty", string(d)).Msg("session started")
	return nil
}

// Restore resumes a persisted session after a cold start. Level, round,
// score and streak come back; round content is generated fresh.
func (m *Machine) Restore(ctx context.Context) error {
	if m.store == nil {
		return ErrNoSavedSession
	}
	snap, err := m.store.GetSession(ctx, m.mode, m.playerID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSavedSession
	}
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	m.resetCounters()
	m.difficulty = snap.Difficulty
	if !m.difficulty.Valid() {
		m.difficulty = m.rules.DefaultDifficulty
	}
	m.level = max(snap.Level, 1)
	m.roundInLevel = max(snap.RoundInLevel, 0)
	m.score = max(snap.Score, 0)
	m.levelStartScore = m.score
	m.streak = max(snap.Streak, 0)
	m.maxStreak = max(snap.MaxStreak, m.streak)
	m.hintsUsed = snap.HintsUsed
	m.levelsCompleted = snap.LevelsCompleted
	m.loadHighScore(ctx)

	if snap.LevelComplete {
		m.state = LevelComplete
		return nil
	}
	if m.roundInLevel >= m.rules.RoundsFor(m.difficulty) {
		m.roundInLevel = m.rules.RoundsFor(m.difficulty) - 1
	}
	if err := m.newRound(); err != nil {
		return err
	}
	m.state = InProgress
	m.logger.Info().Int("level", m.level).Int("round", m.roundInLevel).Msg("session restored")
	return nil
}

// Pause blocks input and saves a snapshot.
func (m *Machine) Pause(ctx context.Context) error {
	if m.state != InProgress {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, m.state)
	}
	m.state = Paused
	m.save(ctx, true)
	return nil
}

// Resume clears the paused flag.
func (m *Machine) Resume() error {
	if m.state != Paused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, m.state)
	}
	m.state = InProgress
	return nil
}

// Reset clears persisted state for this mode and returns to NotStarted.
func (m *Machine) Reset(ctx context.Context) error {
	if m.store != nil {
		if err := m.store.ClearSession(ctx, m.mode, m.playerID); err != nil {
			m.logger.Warn().Err(err).Msg("clear session")
		}
	}
	m.resetCounters()
	m.state = NotStarted
	return nil
}

// RequestExit asks for confirmation before leaving.
func (m *Machine) RequestExit() error {
	switch m.state {
	case InProgress, Paused, LevelComplete:
		m.exitReturn = m.state
		m.state = ExitRequested
		return nil
	}
	return fmt.Errorf("%w: exit from %s", ErrInvalidTransition, m.state)
}

// CancelExit returns to the state exit was requested from.
func (m *Machine) CancelExit() error {
	if m.state != ExitRequested {
		return fmt.Errorf("%w: cancel exit from %s", ErrInvalidTransition, m.state)
	}
	m.state = m.exitReturn
	return nil
}

// ConfirmExit saves progress (always, best effort) and notifies the
// navigator. It may be called directly without RequestExit.
func (m *Machine) ConfirmExit(ctx context.Context) ExitReport {
	var rep ExitReport
	from := m.state
	if from == ExitRequested {
		from = m.exitReturn
	}
	if from != NotStarted && from != Exited {
		rep.Saved, rep.Err = m.trySave(ctx, true, from == LevelComplete)
		if rep.Err != nil {
			m.logger.Warn().Err(rep.Err).Msg("exit without saved progress")
		}
	}
	m.state = Exited
	if m.nav != nil {
		m.nav.Exit(m.mode, m.playerID)
	}
	return rep
}

/* ------------------------------ gameplay -------------------------------- */

// Rotate replaces the current roots round with a new one at the same
// difficulty. Level and round counters are unchanged.
func (m *Machine) Rotate() (*game.RoundData, error) {
	if m.mode != game.ModeRoots {
		return nil, ErrWrongMode
	}
	if err := m.requirePlaying(); err != nil {
		return nil, err
	}
	if m.revealed {
		return nil, ErrRoundRevealed
	}
	now := m.now()
	if !m.lastRotated.IsZero() && now.Sub(m.lastRotated) < m.rules.RotateCooldown {
		return nil, ErrRotationPending
	}
	if err := m.newRound(); err != nil {
		return nil, err
	}
	m.lastRotated = now
	return m.round, nil
}

// SubmitRoots scores the player's selected permutations.
func (m *Machine) SubmitRoots(ctx context.Context, selected []string) (Outcome, error) {
	if m.mode != game.ModeRoots {
		return Outcome{}, ErrWrongMode
	}
	if err := m.requireAnswerable(); err != nil {
		return Outcome{}, err
	}
	if len(selected) == 0 {
		return Outcome{}, game.ErrEmptySelection
	}
	res := game.ScoreRoots(m.round, selected, m.streak, m.rules.PointsFor(m.difficulty))
	out := m.apply(ctx, res.PointsEarned, res.Perfect())
	out.Roots = &res
	m.last = &out
	return out, nil
}

// SubmitQutrab scores three word→meaning picks. Picks name meaning cards
// by their per-round ID.
func (m *Machine) SubmitQutrab(ctx context.Context, picks []game.Pick) (Outcome, error) {
	if m.mode != game.ModeQutrab {
		return Outcome{}, ErrWrongMode
	}
	if err := m.requireAnswerable(); err != nil {
		return Outcome{}, err
	}
	matches, err := m.qround.Resolve(picks)
	if err != nil {
		return Outcome{}, err
	}
	res := game.ScoreQutrab(matches, m.streak, m.rules.PointsFor(m.difficulty))
	out := m.apply(ctx, res.PointsEarned, res.Perfect())
	out.Qutrab = &res
	m.last = &out
	return out, nil
}

// AdvanceRound moves to the next round, or completes the level after the
// last one.
func (m *Machine) AdvanceRound(ctx context.Context) (State, error) {
	if err := m.requirePlaying(); err != nil {
		return m.state, err
	}
	if !m.revealed {
		return m.state, ErrNotRevealed
	}
	if m.roundInLevel+1 < m.rules.RoundsFor(m.difficulty) {
		m.roundInLevel++
		if err := m.newRound(); err != nil {
			return m.state, err
		}
		return m.state, nil
	}
	m.completeLevel(ctx)
	return m.state, nil
}

// AdvanceLevel starts the next level, escalating difficulty at the
// configured thresholds.
func (m *Machine) AdvanceLevel(ctx context.Context) error {
	if m.state != LevelComplete {
		return fmt.Errorf("%w: next level from %s", ErrInvalidTransition, m.state)
	}
	m.level++
	prev := m.difficulty
	m.difficulty = m.rules.DifficultyFor(m.level, m.difficulty)
	if m.difficulty != prev {
		m.logger.Info().Int("level", m.level).Str("difficulty", string(m.difficulty)).Msg("difficulty escalated")
	}
	m.roundInLevel = 0
	m.levelStartScore = m.score
	if err := m.newRound(); err != nil {
		return err
	}
	m.state = InProgress
	return nil
}

/* ------------------------------ internals ------------------------------- */

func (m *Machine) resetCounters() {
	m.difficulty = m.rules.DefaultDifficulty
	m.level = 1
	m.roundInLevel = 0
	m.score = 0
	m.levelStartScore = 0
	m.streak = 0
	m.maxStreak = 0
	m.hintsUsed = 0
	m.levelsCompleted = 0
	m.usedRoots = game.NewSet[string]()
	m.usedTriangles = game.NewSet[int]()
	m.qutrabRounds = 0
	m.round = nil
	m.qround = nil
	m.revealed = false
	m.last = nil
	m.roundHints = 0
	m.lastRotated = time.Time{}
}

// newRound generates the next round for the mode and records it in the
// anti-repeat history.
func (m *Machine) newRound() error {
	switch m.mode {
	case game.ModeRoots:
		if m.roots == nil {
			return fmt.Errorf("roots mode: %w", game.ErrEmptyCandidatePool)
		}
		r, err := m.roots.Generate(m.rng, m.difficulty, m.usedRoots)
		if err != nil {
			return fmt.Errorf("generate round: %w", err)
		}
		m.usedRoots.Add(r.Key)
		m.round = r
	case game.ModeQutrab:
		d := m.difficulty
		if m.qutrabRounds > 0 {
			d = ""
		}
		q, err := m.qutrab.Generate(m.rng, d, m.usedTriangles)
		if err != nil {
			return fmt.Errorf("generate qutrab round: %w", err)
		}
		m.usedTriangles.Add(q.Triangle.ID)
		m.qutrabRounds++
		m.qround = q
	default:
		return fmt.Errorf("%w: %q", ErrWrongMode, m.mode)
	}
	m.revealed = false
	m.last = nil
	m.roundHints = 0
	return nil
}

func (m *Machine) requirePlaying() error {
	switch m.state {
	case InProgress:
		return nil
	case Paused:
		return ErrPaused
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, m.state)
}

func (m *Machine) requireAnswerable() error {
	if err := m.requirePlaying(); err != nil {
		return err
	}
	if m.revealed {
		return ErrRoundRevealed
	}
	return nil
}

// apply folds a scored round into the session and reveals the round.
func (m *Machine) apply(ctx context.Context, points int, perfect bool) Outcome {
	m.score = max(m.score+max(points, 0), 0)
	m.streak = game.NextStreak(m.streak, perfect)
	if m.streak > m.maxStreak {
		m.maxStreak = m.streak
		m.persist("record streak", func() error { return m.store.RecordStreak(ctx, m.playerID, m.streak) })
	}
	newHigh := false
	if m.score > m.highScore {
		m.highScore = m.score
		newHigh = true
		m.persist("record high score", func() error {
			return m.store.RecordHighScore(ctx, m.playerID, m.mode, m.highScore)
		})
	}
	m.revealed = true
	return Outcome{
		Points:       points,
		Score:        m.score,
		Streak:       m.streak,
		HighScore:    m.highScore,
		NewHighScore: newHigh,
		LastRound:    m.roundInLevel+1 >= m.rules.RoundsFor(m.difficulty),
	}
}

func (m *Machine) completeLevel(ctx context.Context) {
	m.state = LevelComplete
	m.levelsCompleted++
	delta := max(m.score-m.levelStartScore, 0)
	m.logger.Info().Int("level", m.level).Int("score", m.score).Msg("level complete")

	m.persist("record completed level", func() error {
		return m.store.RecordCompletedLevel(ctx, m.playerID, m.mode, m.level)
	})
	m.persist("add to total score", func() error { return m.store.AddToTotalScore(ctx, m.playerID, delta) })
	m.persist("append game history", func() error {
		return m.store.AppendGameHistory(ctx, store.HistoryEntry{
			ID:              uuid.NewString(),
			PlayerID:        m.playerID,
			Mode:            m.mode,
			Score:           m.score,
			MaxStreak:       m.maxStreak,
			LevelsCompleted: m.levelsCompleted,
			PlayedAt:        m.now().UTC(),
		})
	})
	m.save(ctx, false)
}

func (m *Machine) loadHighScore(ctx context.Context) {
	m.highScore = 0
	if m.store == nil {
		return
	}
	hs, err := m.store.HighScore(ctx, m.playerID, m.mode)
	if err != nil {
		m.logger.Warn().Err(err).Msg("load high score")
		return
	}
	m.highScore = hs
}

// Snapshot returns the persistable view of the session.
func (m *Machine) Snapshot() store.Snapshot {
	return store.Snapshot{
		Mode:            m.mode,
		Difficulty:      m.difficulty,
		Level:           m.level,
		RoundInLevel:    m.roundInLevel,
		Score:           m.score,
		Streak:          m.streak,
		MaxStreak:       m.maxStreak,
		HintsUsed:       m.hintsUsed,
		LevelsCompleted: m.levelsCompleted,
		LevelComplete:   m.state == LevelComplete,
		Paused:          m.state == Paused,
		SavedAt:         m.now().UTC(),
	}
}

// save writes a snapshot, logging failures.
func (m *Machine) save(ctx context.Context, paused bool) {
	if _, err := m.trySave(ctx, paused, m.state == LevelComplete); err != nil {
		m.logger.Warn().Err(err).Msg("save session")
	}
}

func (m *Machine) trySave(ctx context.Context, paused, levelComplete bool) (bool, error) {
	if m.store == nil {
		return false, nil
	}
	snap := m.Snapshot()
	snap.Paused = paused
	snap.LevelComplete = levelComplete
	if err := m.store.SaveSession(ctx, m.mode, m.playerID, snap); err != nil {
		return false, err
	}
	return true, nil
}

// persist runs a best-effort store call.
func (m *Machine) persist(op string, fn func() error) {
	if m.store == nil {
		return
	}
	if err := fn(); err != nil {
		m.logger.Warn().Err(err).Str("op", op).Msg("persistence failure")
	}
}
