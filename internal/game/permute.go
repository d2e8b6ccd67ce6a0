package game

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// orderings are the six index orders of a three-letter set, in the
// sequence rounds present them.
var orderings = [6][3]int{
	{0, 1, 2},
	{0, 2, 1},
	{1, 0, 2},
	{1, 2, 0},
	{2, 0, 1},
	{2, 1, 0},
}

// Permute concatenates the letters in all six orderings.
// Repeated letters produce repeated strings; each ordering keeps its slot.
func Permute(t LetterTriple) [6]string {
	var out [6]string
	for i, o := range orderings {
		out[i] = t[o[0]] + t[o[1]] + t[o[2]]
	}
	return out
}

// Validator is the subset of Lexicon that Classify needs.
type Validator interface {
	IsValid(root string) bool
}

// Classify returns the permutations that are valid roots, in permutation
// order and without duplicates.
func Classify(perms []string, v Validator) []string {
	out := make([]string, 0, 2)
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if v.IsValid(p) {
			out = append(out, p)
		}
	}
	return out
}

// Normalize returns the canonical letter combination of s: its letters
// sorted by code point. Every permutation of a triple normalizes to the
// same key.
func Normalize(s string) string {
	r := []rune(strings.TrimSpace(s))
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return string(r)
}

// SplitRoot decomposes a three-letter root into a triple.
// ok is false unless root is exactly three Arabic letters.
func SplitRoot(root string) (t LetterTriple, ok bool) {
	root = strings.TrimSpace(root)
	if utf8.RuneCountInString(root) != 3 {
		return t, false
	}
	i := 0
	for _, r := range root {
		if !IsArabicLetter(r) {
			return LetterTriple{}, false
		}
		t[i] = string(r)
		i++
	}
	return t, true
}

// IsArabicLetter reports whether r is a base Arabic letter (hamza through
// yaa), excluding tatweel and vowel marks.
func IsArabicLetter(r rune) bool {
	return r >= 0x0621 && r <= 0x064A && r != 0x0640
}
