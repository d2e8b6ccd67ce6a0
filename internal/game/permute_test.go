package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/lexicon"
)

// newLexicon builds a lexicon of the given roots, all at tier d.
func newLexicon(t *testing.T, d game.Difficulty, roots ...string) *lexicon.Store {
	t.Helper()
	entries := make([]game.RootEntry, 0, len(roots))
	for _, r := range roots {
		entries = append(entries, game.RootEntry{Root: r, Meaning: "معنى " + r, Difficulty: d})
	}
	lex, err := lexicon.New(entries)
	require.NoError(t, err)
	return lex
}

func TestPermute_KatabaExample(t *testing.T) {
	perms := game.Permute(game.LetterTriple{"ك", "ت", "ب"})
	assert.Equal(t, [6]string{"كتب", "كبت", "تكب", "تبك", "بكت", "بتك"}, perms)
}

func TestPermute_DistinctLettersCoverAllOrderings(t *testing.T) {
	triples := []game.LetterTriple{
		{"ك", "ت", "ب"},
		{"ح", "م", "ل"},
		{"ع", "ر", "ف"},
		{"س", "م", "ر"},
	}
	for _, tr := range triples {
		perms := game.Permute(tr)
		seen := map[string]bool{}
		for _, p := range perms {
			assert.Equal(t, tr.Key(), game.Normalize(p), "every permutation shares the triple's key")
			seen[p] = true
		}
		assert.Len(t, seen, 6, "triple %s", tr)
	}
}

func TestPermute_RepeatedLettersKeepSlots(t *testing.T) {
	perms := game.Permute(game.LetterTriple{"م", "د", "د"})
	assert.Equal(t, [6]string{"مدد", "مدد", "دمد", "ددم", "دمد", "ددم"}, perms)
}

func TestClassify_OrderAndDedup(t *testing.T) {
	lex := newLexicon(t, game.Hard, "حمل", "لحم", "ملح", "حلم")
	perms := game.Permute(game.LetterTriple{"ح", "م", "ل"})

	valid := game.Classify(perms[:], lex)
	assert.Equal(t, []string{"حمل", "حلم", "ملح", "لحم"}, valid)

	doubled := append(perms[:], perms[:]...)
	assert.Equal(t, valid, game.Classify(doubled, lex))
}

func TestClassify_KatabaOnlyOneValid(t *testing.T) {
	lex := newLexicon(t, game.Easy, "كتب", "درس")
	perms := game.Permute(game.LetterTriple{"ك", "ت", "ب"})
	assert.Equal(t, []string{"كتب"}, game.Classify(perms[:], lex))
}

func TestSplitRoot(t *testing.T) {
	tr, ok := game.SplitRoot(" كتب ")
	require.True(t, ok)
	assert.Equal(t, game.LetterTriple{"ك", "ت", "ب"}, tr)

	for _, bad := range []string{"", "كت", "كتبر", "abc", "كـب", "ك1ب"} {
		_, ok := game.SplitRoot(bad)
		assert.False(t, ok, "%q", bad)
	}
}

func TestNormalize_OrderIndependent(t *testing.T) {
	assert.Equal(t, game.Normalize("كتب"), game.Normalize("بتك"))
	assert.Equal(t, game.Normalize("حمل"), game.Normalize("لحم"))
	assert.NotEqual(t, game.Normalize("كتب"), game.Normalize("حمل"))
}

func TestSet_NilSafe(t *testing.T) {
	var s game.Set[string]
	assert.False(t, s.Has("x"))

	s = game.NewSet("a", "b")
	assert.True(t, s.Has("a"))
	s.Add("c")
	assert.True(t, s.Has("c"))
	assert.Len(t, s, 3)
}
