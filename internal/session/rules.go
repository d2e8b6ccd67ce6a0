package session

import (
	"sort"
	"time"

	"github.com/robalobadob/juthoor/internal/game"
)

// Threshold escalates difficulty once the level exceeds AfterLevel.
type Threshold struct {
	AfterLevel int             `toml:"after_level" yaml:"after_level" json:"afterLevel"`
	Difficulty game.Difficulty `toml:"difficulty" yaml:"difficulty" json:"difficulty"`
}

// Rules holds every tunable of session progression and scoring.
type Rules struct {
	DefaultDifficulty game.Difficulty
	RoundsPerLevel    map[game.Difficulty]int
	BasePoints        map[game.Difficulty]int
	Escalation        []Threshold
	HintCost          int
	RotateCooldown    time.Duration
	Policies          game.Policies
}

// DefaultRules: 3/4/5 rounds per level, 10/15/20 base points, medium after
// level 3, hard after level 6, 10-point hints.
func DefaultRules() Rules {
	return Rules{
		DefaultDifficulty: game.Easy,
		RoundsPerLevel:    map[game.Difficulty]int{game.Easy: 3, game.Medium: 4, game.Hard: 5},
		BasePoints:        map[game.Difficulty]int{game.Easy: 10, game.Medium: 15, game.Hard: 20},
		Escalation: []Threshold{
			{AfterLevel: 3, Difficulty: game.Medium},
			{AfterLevel: 6, Difficulty: game.Hard},
		},
		HintCost:       10,
		RotateCooldown: 600 * time.Millisecond,
		Policies:       game.DefaultPolicies(),
	}
}

// RoundsFor returns the rounds in a level at d (3 if unset).
func (r Rules) RoundsFor(d game.Difficulty) int {
	if n := r.RoundsPerLevel[d]; n > 0 {
		return n
	}
	return 3
}

// PointsFor returns the base points per correct answer at d (10 if unset).
func (r Rules) PointsFor(d game.Difficulty) int {
	if n := r.BasePoints[d]; n > 0 {
		return n
	}
	return 10
}

// DifficultyFor returns the tier for level: the highest threshold the
// level has passed, never lower than current.
func (r Rules) DifficultyFor(level int, current game.Difficulty) game.Difficulty {
	ts := append([]Threshold(nil), r.Escalation...)
	sort.Slice(ts, func(i, j int) bool { return ts[i].AfterLevel < ts[j].AfterLevel })
	out := current
	for _, t := range ts {
		if level > t.AfterLevel && t.Difficulty.Rank() > out.Rank() {
			out = t.Difficulty
		}
	}
	return out
}
