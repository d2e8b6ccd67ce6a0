package game

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// RoundGenerator composes the Letter Selector and Permutation Engine into
// complete roots-mode rounds.
type RoundGenerator struct {
	Lexicon  Lexicon
	Selector *LetterSelector
}

// NewRoundGenerator wires a generator over lex with the given policies.
func NewRoundGenerator(lex Lexicon, policies Policies) *RoundGenerator {
	return &RoundGenerator{Lexicon: lex, Selector: NewLetterSelector(lex, policies)}
}

// Generate builds a round at difficulty d, avoiding letter combinations in
// used. It does not modify used: the caller records round.Key.
//
// An empty tier degrades to a selection over the whole lexicon (still under
// d's policy). Only an empty lexicon yields ErrEmptyCandidatePool.
func (g *RoundGenerator) Generate(rng Rand, d Difficulty, used Set[string]) (*RoundData, error) {
	sel, err := g.Selector.Select(rng, d, used)
	if errors.Is(err, ErrEmptyCandidatePool) {
		log.Debug().Str("difficulty", string(d)).Msg("empty difficulty tier; selecting from whole lexicon")
		sel, err = g.Selector.SelectFrom(rng, g.Lexicon.All(), g.Selector.Policies.For(d), used)
	}
	if err != nil {
		return nil, err
	}
	return g.build(sel, d), nil
}

// Build assembles the round for a fixed triple, bypassing selection.
func (g *RoundGenerator) Build(t LetterTriple, d Difficulty) *RoundData {
	perms := Permute(t)
	return g.build(Selection{
		Letters:    t,
		Key:        t.Key(),
		ValidRoots: Classify(perms[:], g.Lexicon),
	}, d)
}

func (g *RoundGenerator) build(sel Selection, d Difficulty) *RoundData {
	r := &RoundData{
		Letters:      sel.Letters,
		Permutations: Permute(sel.Letters),
		ValidRoots:   sel.ValidRoots,
		Meanings:     make(map[string]string, len(sel.ValidRoots)),
		Examples:     make(map[string][]string, len(sel.ValidRoots)),
		Difficulty:   d,
		Key:          sel.Key,
		Fallback:     sel.Fallback,
	}
	for _, root := range sel.ValidRoots {
		e, ok := g.Lexicon.Lookup(root)
		if !ok {
			continue
		}
		r.Meanings[root] = e.Meaning
		if len(e.Examples) > 0 {
			r.Examples[root] = append([]string(nil), e.Examples...)
		}
	}
	return r
}
