// internal/game/scoring.go
//
// Scoring for both puzzle modes.
//
// Roots mode:
//   points = max(0, correct*base - incorrect*floor(base/2) - missed*floor(base/4) + bonus)
// Qutrab mode:
//   points = correct*base + bonus
// where bonus = floor(streak*base*0.1) for the streak held before the round.
//
// Both scorers are total: any input produces a result. Submission rules
// (at least one selection, exactly three matches) are checked separately.

package game

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelection    = errors.New("select at least one root")
	ErrIncompleteMatches = errors.New("match all three words before submitting")
	ErrInvalidMatch      = errors.New("invalid match")
)

// RootsResult is the outcome of a roots-mode answer.
type RootsResult struct {
	PointsEarned int      `json:"pointsEarned"`
	Correct      int      `json:"correct"`
	Incorrect    int      `json:"incorrect"`
	Missed       int      `json:"missed"`
	StreakBonus  int      `json:"streakBonus"`
	CorrectRoots []string `json:"correctRoots"`
	WrongRoots   []string `json:"wrongRoots"`
	MissedRoots  []string `json:"missedRoots"`
}

// Perfect reports a round with no incorrect or missed selections.
func (r RootsResult) Perfect() bool {
	return r.Incorrect == 0 && r.Missed == 0 && r.Correct > 0
}

// StreakBonus is floor(streak * base * 0.1), or 0 without a streak.
func StreakBonus(streak, base int) int {
	if streak <= 0 || base <= 0 {
		return 0
	}
	return streak * base / 10
}

// NextStreak applies the streak law: a perfect round extends it, anything
// else resets it.
func NextStreak(streak int, perfect bool) int {
	if perfect {
		return streak + 1
	}
	return 0
}

// ScoreRoots scores selected against the round's valid roots.
// Duplicate selections count once.
func ScoreRoots(round *RoundData, selected []string, streak, base int) RootsResult {
	var res RootsResult
	picked := make(Set[string], len(selected))
	for _, s := range selected {
		if picked.Has(s) {
			continue
		}
		picked.Add(s)
		if round.IsValidRoot(s) {
			res.CorrectRoots = append(res.CorrectRoots, s)
		} else {
			res.WrongRoots = append(res.WrongRoots, s)
		}
	}
	for _, v := range round.ValidRoots {
		if !picked.Has(v) {
			res.MissedRoots = append(res.MissedRoots, v)
		}
	}
	res.Correct = len(res.CorrectRoots)
	res.Incorrect = len(res.WrongRoots)
	res.Missed = len(res.MissedRoots)
	res.StreakBonus = StreakBonus(streak, base)

	pts := res.Correct*base - res.Incorrect*(base/2) - res.Missed*(base/4) + res.StreakBonus
	if pts < 0 {
		pts = 0
	}
	res.PointsEarned = pts
	return res
}

// Match pairs a word card with a meaning card.
type Match struct {
	WordKey    VariantKey `json:"wordKey"`
	MeaningKey VariantKey `json:"meaningKey"`
}

// Correct reports whether the word was paired with its own meaning.
func (m Match) Correct() bool { return m.WordKey == m.MeaningKey }

// QutrabResult is the outcome of a Qutrab answer.
type QutrabResult struct {
	PointsEarned int     `json:"pointsEarned"`
	Correct      int     `json:"correct"`
	StreakBonus  int     `json:"streakBonus"`
	Matches      []Match `json:"matches"`
}

// Perfect reports that all three words were paired correctly.
func (r QutrabResult) Perfect() bool { return r.Correct == len(VariantKeys) }

// ValidateMatches enforces a complete answer: exactly three matches, each
// word and each meaning used once, each key a known variant.
func ValidateMatches(matches []Match) error {
	if len(matches) != len(VariantKeys) {
		return fmt.Errorf("%w: got %d of %d", ErrIncompleteMatches, len(matches), len(VariantKeys))
	}
	words := make(Set[VariantKey], len(matches))
	meanings := make(Set[VariantKey], len(matches))
	for _, m := range matches {
		if !knownVariant(m.WordKey) || !knownVariant(m.MeaningKey) {
			return fmt.Errorf("%w: unknown variant in %s/%s", ErrInvalidMatch, m.WordKey, m.MeaningKey)
		}
		if words.Has(m.WordKey) {
			return fmt.Errorf("%w: word %s matched twice", ErrInvalidMatch, m.WordKey)
		}
		if meanings.Has(m.MeaningKey) {
			return fmt.Errorf("%w: meaning %s matched twice", ErrInvalidMatch, m.MeaningKey)
		}
		words.Add(m.WordKey)
		meanings.Add(m.MeaningKey)
	}
	return nil
}

// ScoreQutrab scores a set of matches.
func ScoreQutrab(matches []Match, streak, base int) QutrabResult {
	res := QutrabResult{Matches: append([]Match(nil), matches...)}
	for _, m := range matches {
		if m.Correct() {
			res.Correct++
		}
	}
	res.StreakBonus = StreakBonus(streak, base)
	res.PointsEarned = res.Correct*base + res.StreakBonus
	return res
}

func knownVariant(k VariantKey) bool {
	for _, v := range VariantKeys {
		if v == k {
			return true
		}
	}
	return false
}
