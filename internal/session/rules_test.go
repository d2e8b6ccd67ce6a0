package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/session"
)

func TestRules_DifficultyFor(t *testing.T) {
	r := session.DefaultRules()
	cases := []struct {
		level   int
		current game.Difficulty
		want    game.Difficulty
	}{
		{1, game.Easy, game.Easy},
		{3, game.Easy, game.Easy},
		{4, game.Easy, game.Medium},
		{6, game.Medium, game.Medium},
		{7, game.Medium, game.Hard},
		{7, game.Easy, game.Hard},
		{2, game.Hard, game.Hard},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.DifficultyFor(tc.level, tc.current), "level %d from %s", tc.level, tc.current)
	}
}

func TestRules_DifficultyForUnsortedThresholds(t *testing.T) {
	r := session.Rules{Escalation: []session.Threshold{
		{AfterLevel: 6, Difficulty: game.Hard},
		{AfterLevel: 2, Difficulty: game.Medium},
	}}
	assert.Equal(t, game.Medium, r.DifficultyFor(3, game.Easy))
	assert.Equal(t, game.Hard, r.DifficultyFor(9, game.Easy))
}

func TestRules_Defaults(t *testing.T) {
	r := session.DefaultRules()
	assert.Equal(t, 3, r.RoundsFor(game.Easy))
	assert.Equal(t, 4, r.RoundsFor(game.Medium))
	assert.Equal(t, 5, r.RoundsFor(game.Hard))
	assert.Equal(t, 20, r.PointsFor(game.Hard))

	var empty session.Rules
	assert.Equal(t, 3, empty.RoundsFor(game.Hard))
	assert.Equal(t, 10, empty.PointsFor(game.Hard))
}
