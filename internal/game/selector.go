package game

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrEmptyCandidatePool is returned when there is nothing to choose from
// (an empty difficulty tier or catalog).
var ErrEmptyCandidatePool = errors.New("empty candidate pool")

// SelectorPolicy bounds the Letter Selector's retry loop.
// A candidate is accepted when its valid-root count is in [MinValid, MaxValid].
type SelectorPolicy struct {
	MaxAttempts int `toml:"max_attempts" yaml:"max_attempts" json:"maxAttempts"`
	MinValid    int `toml:"min_valid" yaml:"min_valid" json:"minValid"`
	MaxValid    int `toml:"max_valid" yaml:"max_valid" json:"maxValid"`
}

// DefaultPolicy applies to any tier without an explicit policy.
var DefaultPolicy = SelectorPolicy{MaxAttempts: 100, MinValid: 1, MaxValid: 3}

// Policies maps tiers to selector policies.
type Policies map[Difficulty]SelectorPolicy

// DefaultPolicies widens the accepted range for hard, where letter sets
// more often form several roots (حمل / لحم / ملح / حلم).
func DefaultPolicies() Policies {
	return Policies{
		Easy:   DefaultPolicy,
		Medium: DefaultPolicy,
		Hard:   {MaxAttempts: 100, MinValid: 1, MaxValid: 5},
	}
}

// For returns the policy for d, falling back to DefaultPolicy.
func (p Policies) For(d Difficulty) SelectorPolicy {
	if pol, ok := p[d]; ok && pol.MaxAttempts > 0 {
		return pol
	}
	return DefaultPolicy
}

// Selection is the Letter Selector's answer.
type Selection struct {
	Letters    LetterTriple
	Key        string
	ValidRoots []string
	Attempts   int
	// Fallback is set when the attempt budget ran out and the constraints
	// (valid-count range, anti-repeat) were relaxed.
	Fallback bool
}

// LetterSelector picks letter triples whose permutations contain a
// controlled number of valid roots.
type LetterSelector struct {
	Lexicon  Lexicon
	Policies Policies
}

// NewLetterSelector wires a selector over lex. A nil policies map uses
// DefaultPolicies.
func NewLetterSelector(lex Lexicon, policies Policies) *LetterSelector {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &LetterSelector{Lexicon: lex, Policies: policies}
}

// Select picks a triple from the entries of tier d, avoiding keys in used.
// Returns ErrEmptyCandidatePool if the tier has no entries.
func (s *LetterSelector) Select(rng Rand, d Difficulty, used Set[string]) (Selection, error) {
	return s.SelectFrom(rng, s.Lexicon.EntriesByDifficulty(d), s.Policies.For(d), used)
}

// SelectFrom runs the selection loop over an explicit candidate pool.
//
// Each attempt draws a random entry, shuffles its letters into
// presentation order and classifies the six permutations. The first
// candidate whose valid count is within the policy range and whose key is
// not in used wins. When the budget is spent, a random entry is returned
// without either constraint so the game never stalls.
func (s *LetterSelector) SelectFrom(rng Rand, pool []RootEntry, pol SelectorPolicy, used Set[string]) (Selection, error) {
	if len(pool) == 0 {
		return Selection{}, ErrEmptyCandidatePool
	}
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		t, ok := SplitRoot(pool[rng.Intn(len(pool))].Root)
		if !ok {
			continue
		}
		shuffleTriple(rng, &t)
		valid := s.classify(t)
		if len(valid) < pol.MinValid || len(valid) > pol.MaxValid {
			continue
		}
		if used.Has(t.Key()) {
			continue
		}
		return Selection{Letters: t, Key: t.Key(), ValidRoots: valid, Attempts: attempt}, nil
	}

	log.Debug().Int("pool", len(pool)).Int("attempts", pol.MaxAttempts).Msg("letter selection exhausted; using fallback")
	t, ok := SplitRoot(pool[rng.Intn(len(pool))].Root)
	if !ok {
		// Malformed draw: take the first well-formed entry instead.
		for _, e := range pool {
			if t, ok = SplitRoot(e.Root); ok {
				break
			}
		}
		if !ok {
			return Selection{}, ErrEmptyCandidatePool
		}
	}
	shuffleTriple(rng, &t)
	return Selection{
		Letters:    t,
		Key:        t.Key(),
		ValidRoots: s.classify(t),
		Attempts:   pol.MaxAttempts,
		Fallback:   true,
	}, nil
}

func (s *LetterSelector) classify(t LetterTriple) []string {
	perms := Permute(t)
	return Classify(perms[:], s.Lexicon)
}

func shuffleTriple(rng Rand, t *LetterTriple) {
	rng.Shuffle(len(t), func(i, j int) { t[i], t[j] = t[j], t[i] })
}
