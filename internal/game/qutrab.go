package game

import "fmt"

// QutrabGenerator builds vowel-matching rounds from a static catalog.
// It is independent of the root lexicon.
type QutrabGenerator struct {
	Catalog []QutrabTriangle
}

// NewQutrabGenerator wires a generator over catalog.
func NewQutrabGenerator(catalog []QutrabTriangle) *QutrabGenerator {
	return &QutrabGenerator{Catalog: catalog}
}

// Generate picks an unused triangle and shuffles its words and meanings
// independently. An empty d means any difficulty.
//
// Pool narrowing falls back step by step so a round is always produced
// from a non-empty catalog: tier+unused, then any tier+unused, then the
// whole catalog.
func (g *QutrabGenerator) Generate(rng Rand, d Difficulty, used Set[int]) (*QutrabRoundData, error) {
	if len(g.Catalog) == 0 {
		return nil, ErrEmptyCandidatePool
	}
	pool := g.pool(d, used)
	if len(pool) == 0 && d != "" {
		pool = g.pool("", used)
	}
	if len(pool) == 0 {
		pool = g.Catalog
	}
	return Arrange(rng, pool[rng.Intn(len(pool))]), nil
}

// Arrange lays out one triangle as a round: two independent shuffles.
func Arrange(rng Rand, t QutrabTriangle) *QutrabRoundData {
	words := make([]WordCard, 0, len(VariantKeys))
	meanings := make([]MeaningCard, 0, len(VariantKeys))
	for _, k := range VariantKeys {
		v, _ := t.Variant(k)
		words = append(words, WordCard{Key: k, Word: v.Word})
		meanings = append(meanings, MeaningCard{Key: k, Meaning: v.Meaning})
	}
	fisherYates(rng, len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	fisherYates(rng, len(meanings), func(i, j int) { meanings[i], meanings[j] = meanings[j], meanings[i] })
	for i := range meanings {
		meanings[i].ID = i + 1
	}
	return &QutrabRoundData{Triangle: t, Words: words, Meanings: meanings}
}

// Pick is a client answer: a word card paired with a meaning card ID.
type Pick struct {
	WordKey   VariantKey `json:"wordKey"`
	MeaningID int        `json:"meaningId"`
}

// Resolve maps picks onto the round's hidden meaning keys and validates
// the result as a complete one-to-one answer.
func (q *QutrabRoundData) Resolve(picks []Pick) ([]Match, error) {
	if len(picks) != len(VariantKeys) {
		return nil, fmt.Errorf("%w: got %d of %d", ErrIncompleteMatches, len(picks), len(VariantKeys))
	}
	out := make([]Match, 0, len(picks))
	for _, p := range picks {
		card, ok := q.MeaningCard(p.MeaningID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown meaning card %d", ErrInvalidMatch, p.MeaningID)
		}
		out = append(out, Match{WordKey: p.WordKey, MeaningKey: card.Key})
	}
	if err := ValidateMatches(out); err != nil {
		return nil, err
	}
	return out, nil
}

// MeaningCard returns the card with the given ID.
func (q *QutrabRoundData) MeaningCard(id int) (MeaningCard, bool) {
	for _, c := range q.Meanings {
		if c.ID == id {
			return c, true
		}
	}
	return MeaningCard{}, false
}

// MeaningCardFor returns the card holding key's meaning.
func (q *QutrabRoundData) MeaningCardFor(key VariantKey) (MeaningCard, bool) {
	for _, c := range q.Meanings {
		if c.Key == key {
			return c, true
		}
	}
	return MeaningCard{}, false
}

func (g *QutrabGenerator) pool(d Difficulty, used Set[int]) []QutrabTriangle {
	out := make([]QutrabTriangle, 0, len(g.Catalog))
	for _, t := range g.Catalog {
		if d != "" && t.Difficulty != d {
			continue
		}
		if used.Has(t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// fisherYates shuffles n items in place, walking from the end and
// swapping each slot with a uniformly drawn slot at or before it.
func fisherYates(rng Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, rng.Intn(i+1))
	}
}
