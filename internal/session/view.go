package session

import "github.com/robalobadob/juthoor/internal/game"

// View is the presentation snapshot of a session. Answers (valid roots,
// correct pairings) are included only once the round is revealed.
type View struct {
	ID              string          `json:"id"`
	Mode            game.Mode       `json:"mode"`
	State           State           `json:"state"`
	Difficulty      game.Difficulty `json:"difficulty"`
	Level           int             `json:"level"`
	RoundInLevel    int             `json:"roundInLevel"`
	RoundsPerLevel  int             `json:"roundsPerLevel"`
	Score           int             `json:"score"`
	HighScore       int             `json:"highScore"`
	Streak          int             `json:"streak"`
	MaxStreak       int             `json:"maxStreak"`
	HintsUsed       int             `json:"hintsUsed"`
	LevelsCompleted int             `json:"levelsCompleted"`
	Revealed        bool            `json:"revealed"`

	Letters      *game.LetterTriple `json:"letters,omitempty"`
	Permutations []string           `json:"permutations,omitempty"`

	Base     string             `json:"base,omitempty"`
	Words    []game.WordCard    `json:"words,omitempty"`
	Meanings []game.MeaningCard `json:"meanings,omitempty"`

	Answer       *game.RoundData      `json:"answer,omitempty"`
	QutrabAnswer *game.QutrabTriangle `json:"qutrabAnswer,omitempty"`
	Last         *Outcome             `json:"last,omitempty"`
}

// View renders the current session for a client.
func (m *Machine) View() View {
	v := View{
		ID:              m.id,
		Mode:            m.mode,
		State:           m.state,
		Difficulty:      m.difficulty,
		Level:           m.level,
		RoundInLevel:    m.roundInLevel,
		RoundsPerLevel:  m.rules.RoundsFor(m.difficulty),
		Score:           m.score,
		HighScore:       m.highScore,
		Streak:          m.streak,
		MaxStreak:       m.maxStreak,
		HintsUsed:       m.hintsUsed,
		LevelsCompleted: m.levelsCompleted,
		Revealed:        m.revealed,
		Last:            m.last,
	}
	if m.state == NotStarted || m.state == LevelComplete || m.state == Exited {
		return v
	}
	if r := m.round; r != nil && m.mode == game.ModeRoots {
		letters := r.Letters
		v.Letters = &letters
		v.Permutations = append([]string(nil), r.Permutations[:]...)
		if m.revealed {
			v.Answer = r
		}
	}
	if q := m.qround; q != nil && m.mode == game.ModeQutrab {
		v.Base = q.Triangle.Base
		v.Words = q.Words
		v.Meanings = make([]game.MeaningCard, len(q.Meanings))
		for i, c := range q.Meanings {
			v.Meanings[i] = game.MeaningCard{ID: c.ID, Meaning: c.Meaning}
		}
		if m.revealed {
			t := q.Triangle
			v.QutrabAnswer = &t
		}
	}
	return v
}
