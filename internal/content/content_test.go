package content_test

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/juthoor/assets"
	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
)

// embeddedWith copies the embedded datasets into a MapFS and overrides
// the named files.
func embeddedWith(t *testing.T, overrides map[string]string) fstest.MapFS {
	t.Helper()
	m := fstest.MapFS{}
	for _, name := range []string{content.LexiconFile, content.QutrabFile, content.ProverbsFile, content.RootFactsFile} {
		raw, err := fs.ReadFile(assets.Content(), name)
		require.NoError(t, err)
		m[name] = &fstest.MapFile{Data: raw}
	}
	for name, data := range overrides {
		m[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return m
}

func TestLoadDefault(t *testing.T) {
	b, err := content.LoadDefault()
	require.NoError(t, err)

	assert.NotEmpty(t, b.Roots)
	assert.NotEmpty(t, b.Triangles)
	assert.NotEmpty(t, b.Proverbs)
	assert.NotEmpty(t, b.Facts)

	tiers := map[game.Difficulty]int{}
	for _, e := range b.Roots {
		tiers[e.Difficulty]++
	}
	for _, d := range game.Difficulties {
		assert.Positive(t, tiers[d], "tier %s", d)
	}
	for _, tr := range b.Triangles {
		for _, k := range game.VariantKeys {
			v, ok := tr.Variant(k)
			require.True(t, ok)
			assert.NotEmpty(t, v.Word, "triangle %d %s", tr.ID, k)
			assert.NotEmpty(t, v.Meaning, "triangle %d %s", tr.ID, k)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	b, err := content.Load(embeddedWith(t, map[string]string{
		content.LexiconFile:  `[{"root":"كتب","meaning":"الكتابة","difficulty":"easy"}]`,
		content.ProverbsFile: `[{"text":"أ","meaning":"1"},{"text":"ب","meaning":"2"}]`,
	}), assets.Content())
	require.NoError(t, err)

	require.Len(t, b.Roots, 1)
	assert.Equal(t, "كتب", b.Roots[0].Root)

	p, ok := b.ProverbForLevel(1)
	require.True(t, ok)
	assert.Equal(t, "أ", p.Text)
	p, _ = b.ProverbForLevel(4)
	assert.Equal(t, "ب", p.Text, "(4-1) mod 2")
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"schema: missing meaning": {
			content.LexiconFile: `[{"root":"كتب","difficulty":"easy"}]`,
		},
		"schema: unknown difficulty": {
			content.LexiconFile: `[{"root":"كتب","meaning":"م","difficulty":"legendary"}]`,
		},
		"not three arabic letters": {
			content.LexiconFile: `[{"root":"abcd","meaning":"م","difficulty":"easy"}]`,
		},
		"duplicate root": {
			content.LexiconFile: `[{"root":"كتب","meaning":"م","difficulty":"easy"},{"root":"كَتَبَ","meaning":"م","difficulty":"hard"}]`,
		},
		"duplicate triangle id": {
			content.QutrabFile: `[
			 {"id":1,"base":"حلم","difficulty":"easy","fatha":{"word":"أ","meaning":"أ"},"damma":{"word":"ب","meaning":"ب"},"kasra":{"word":"ج","meaning":"ج"}},
			 {"id":1,"base":"حب","difficulty":"easy","fatha":{"word":"أ","meaning":"أ"},"damma":{"word":"ب","meaning":"ب"},"kasra":{"word":"ج","meaning":"ج"}}]`,
		},
		"schema: missing variant": {
			content.QutrabFile: `[{"id":1,"base":"حلم","difficulty":"easy","fatha":{"word":"أ","meaning":"أ"}}]`,
		},
		"malformed json": {
			content.ProverbsFile: `[{"text":`,
		},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := content.Load(embeddedWith(t, files), assets.Content())
			assert.ErrorIs(t, err, content.ErrInvalidContent)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	m := embeddedWith(t, nil)
	delete(m, content.RootFactsFile)
	_, err := content.Load(m, assets.Content())
	assert.Error(t, err)
}

func TestBundle_Fact(t *testing.T) {
	b, err := content.LoadDefault()
	require.NoError(t, err)

	f, ok := b.Fact("كَتَبَ")
	require.True(t, ok)
	assert.NotEmpty(t, f.Fact)

	_, ok = b.Fact("زءم")
	assert.False(t, ok)
}

func TestBundle_NoProverbs(t *testing.T) {
	_, ok := (&content.Bundle{}).ProverbForLevel(1)
	assert.False(t, ok)
}
