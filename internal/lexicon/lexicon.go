// internal/lexicon/lexicon.go
//
// Lexicon Store: the read-only dictionary of valid trilateral roots.
//
// Responsibilities:
//   - Hold RootEntry records keyed by root for O(1) validity checks.
//   - Group entries by difficulty tier for the Letter Selector.
//   - Report counts for diagnostics.
//
// A Store is built once from typed content and never mutated, so it is
// shared across sessions without locking.

package lexicon

import (
	"fmt"
	"strings"

	"github.com/robalobadob/juthoor/internal/game"
)

// Store is an immutable root dictionary. It implements game.Lexicon.
type Store struct {
	entries []game.RootEntry
	byRoot  map[string]game.RootEntry
	byTier  map[game.Difficulty][]game.RootEntry
}

// New builds a Store from entries. Roots are canonicalized (trimmed, vowel
// marks stripped); duplicates and malformed roots are rejected.
func New(entries []game.RootEntry) (*Store, error) {
	s := &Store{
		entries: make([]game.RootEntry, 0, len(entries)),
		byRoot:  make(map[string]game.RootEntry, len(entries)),
		byTier:  make(map[game.Difficulty][]game.RootEntry, len(game.Difficulties)),
	}
	for _, e := range entries {
		e.Root = Canonical(e.Root)
		if _, ok := game.SplitRoot(e.Root); !ok {
			return nil, fmt.Errorf("lexicon: root %q is not three Arabic letters", e.Root)
		}
		if !e.Difficulty.Valid() {
			return nil, fmt.Errorf("lexicon: root %q has unknown difficulty %q", e.Root, e.Difficulty)
		}
		if _, dup := s.byRoot[e.Root]; dup {
			return nil, fmt.Errorf("lexicon: duplicate root %q", e.Root)
		}
		s.entries = append(s.entries, e)
		s.byRoot[e.Root] = e
		s.byTier[e.Difficulty] = append(s.byTier[e.Difficulty], e)
	}
	return s, nil
}

// Lookup returns the entry for root, if any.
func (s *Store) Lookup(root string) (game.RootEntry, bool) {
	e, ok := s.byRoot[Canonical(root)]
	return e, ok
}

// IsValid reports whether root is in the lexicon.
func (s *Store) IsValid(root string) bool {
	_, ok := s.byRoot[Canonical(root)]
	return ok
}

// EntriesByDifficulty returns the entries of tier d (possibly empty).
// The slice is shared; callers must not modify it.
func (s *Store) EntriesByDifficulty(d game.Difficulty) []game.RootEntry {
	return s.byTier[d]
}

// All returns every entry in load order. The slice is shared.
func (s *Store) All() []game.RootEntry { return s.entries }

// Stats returns entry counts per tier and in total.
func (s *Store) Stats() (perTier map[game.Difficulty]int, total int) {
	perTier = make(map[game.Difficulty]int, len(game.Difficulties))
	for _, d := range game.Difficulties {
		perTier[d] = len(s.byTier[d])
	}
	return perTier, len(s.entries)
}

// Canonical trims s and removes Arabic vowel marks (fathatan..sukun,
// superscript alef) and tatweel, so "كَتَبَ" looks up as "كتب".
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if (r >= 0x064B && r <= 0x0652) || r == 0x0670 || r == 0x0640 {
			return -1
		}
		return r
	}, s)
}
