// internal/game/types.go
//
// Core type definitions for the root-puzzle engine.
// Defines:
//   - Difficulty and Mode enums.
//   - RootEntry / QutrabTriangle: static catalog records.
//   - LetterTriple, RoundData, QutrabRoundData: per-round values.
//   - Lexicon and Rand: the collaborators round generation consumes.

package game

import (
	"fmt"
	"strings"
)

// Difficulty tiers content and round generation.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every tier from easiest to hardest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

// Rank orders tiers (easy=0, medium=1, hard=2). Unknown tiers rank -1.
func (d Difficulty) Rank() int {
	for i, x := range Difficulties {
		if x == d {
			return i
		}
	}
	return -1
}

// ParseDifficulty accepts "easy", "medium" or "hard" (case-insensitive).
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// Mode selects which puzzle a session plays.
type Mode string

const (
	ModeRoots  Mode = "roots"  // rotate three letters, find valid roots
	ModeQutrab Mode = "qutrab" // match vowel-marked words to meanings
)

// ParseMode accepts "roots" or "qutrab".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRoots, ModeQutrab:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// RootEntry is a lexicon record for one trilateral root.
type RootEntry struct {
	Root       string     `json:"root"`
	Meaning    string     `json:"meaning"`
	MeaningEn  string     `json:"meaningEn"`
	Examples   []string   `json:"examples,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
}

// LetterTriple holds exactly three letters in presentation order.
type LetterTriple [3]string

// String concatenates the letters in order.
func (t LetterTriple) String() string { return t[0] + t[1] + t[2] }

// Key is the order-independent identity of the triple (see Normalize).
func (t LetterTriple) Key() string { return Normalize(t.String()) }

// RoundData describes one roots-mode round. It is built fresh for every
// round and never mutated after construction.
type RoundData struct {
	Letters      LetterTriple        `json:"letters"`
	Permutations [6]string           `json:"permutations"`
	ValidRoots   []string            `json:"validRoots"`
	Meanings     map[string]string   `json:"meanings"`
	Examples     map[string][]string `json:"examples,omitempty"`
	Difficulty   Difficulty          `json:"difficulty"`
	Key          string              `json:"key"`
	Fallback     bool                `json:"fallback,omitempty"`
}

// IsValidRoot reports whether root is one of the round's valid roots.
func (r *RoundData) IsValidRoot(root string) bool {
	for _, v := range r.ValidRoots {
		if v == root {
			return true
		}
	}
	return false
}

// VariantKey names one of the three vowel variants of a Qutrab triangle.
type VariantKey string

const (
	Fatha VariantKey = "fatha"
	Damma VariantKey = "damma"
	Kasra VariantKey = "kasra"
)

// VariantKeys lists the variants in catalog order.
var VariantKeys = []VariantKey{Fatha, Damma, Kasra}

// Variant is one vowel reading of a triangle.
type Variant struct {
	Word    string `json:"word"`
	Meaning string `json:"meaning"`
	Example string `json:"example,omitempty"`
}

// QutrabTriangle is a catalog entry whose meaning changes with the vowel
// on its first letter.
type QutrabTriangle struct {
	ID         int        `json:"id"`
	Base       string     `json:"base"`
	Fatha      Variant    `json:"fatha"`
	Damma      Variant    `json:"damma"`
	Kasra      Variant    `json:"kasra"`
	Difficulty Difficulty `json:"difficulty"`
}

// Variant returns the reading for key. ok is false for unknown keys.
func (q QutrabTriangle) Variant(key VariantKey) (v Variant, ok bool) {
	switch key {
	case Fatha:
		return q.Fatha, true
	case Damma:
		return q.Damma, true
	case Kasra:
		return q.Kasra, true
	}
	return Variant{}, false
}

// WordCard is a word shown on the left-hand side of a Qutrab round.
type WordCard struct {
	Key  VariantKey `json:"key"`
	Word string     `json:"word"`
}

// MeaningCard is a meaning shown on the right-hand side of a Qutrab round.
// ID is its 1-based position in the shuffled column; Key never leaves the
// server, so clients answer by ID.
type MeaningCard struct {
	ID      int        `json:"id"`
	Key     VariantKey `json:"-"`
	Meaning string     `json:"meaning"`
}

// QutrabRoundData is one matching round: words and meanings are shuffled
// independently of each other.
type QutrabRoundData struct {
	Triangle QutrabTriangle `json:"triangle"`
	Words    []WordCard     `json:"words"`
	Meanings []MeaningCard  `json:"meanings"`
}

// Lexicon is the read-only root dictionary round generation consults.
type Lexicon interface {
	Lookup(root string) (RootEntry, bool)
	IsValid(root string) bool
	EntriesByDifficulty(d Difficulty) []RootEntry
	All() []RootEntry
}

// Rand is the random source used for every choice and shuffle.
// *math/rand.Rand satisfies it; tests inject a seeded one.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Set is a small membership set used for anti-repeat history.
type Set[T comparable] map[T]struct{}

// NewSet builds a set holding items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set contains nothing.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v.
func (s Set[T]) Add(v T) { s[v] = struct{}{} }
