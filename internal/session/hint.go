package session

import (
	"unicode/utf8"

	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
)

// Hint reveals part of the current round's answer.
// Roots mode fills FirstLetter and Meaning for one valid root; qutrab mode
// fills WordKey, Word, Meaning and MeaningID for one correct pairing.
type Hint struct {
	Cost        int             `json:"cost"`
	Score       int             `json:"score"`
	FirstLetter string          `json:"firstLetter,omitempty"`
	Meaning     string          `json:"meaning,omitempty"`
	WordKey     game.VariantKey `json:"wordKey,omitempty"`
	Word        string          `json:"word,omitempty"`
	MeaningID   int             `json:"meaningId,omitempty"`
}

// Hint charges the hint cost (score floored at 0) and reveals the next
// unhinted piece of the round. When nothing is left to reveal it returns
// ErrNoMoreHints without charging.
func (m *Machine) Hint() (Hint, error) {
	if err := m.requireAnswerable(); err != nil {
		return Hint{}, err
	}
	var h Hint
	switch m.mode {
	case game.ModeRoots:
		if m.roundHints >= len(m.round.ValidRoots) {
			return Hint{}, ErrNoMoreHints
		}
		root := m.round.ValidRoots[m.roundHints]
		r, _ := utf8.DecodeRuneInString(root)
		h.FirstLetter = string(r)
		h.Meaning = m.round.Meanings[root]
	case game.ModeQutrab:
		if m.roundHints >= len(m.qround.Words) {
			return Hint{}, ErrNoMoreHints
		}
		card := m.qround.Words[m.roundHints]
		v, _ := m.qround.Triangle.Variant(card.Key)
		h.WordKey, h.Word, h.Meaning = card.Key, card.Word, v.Meaning
		if mc, ok := m.qround.MeaningCardFor(card.Key); ok {
			h.MeaningID = mc.ID
		}
	default:
		return Hint{}, ErrWrongMode
	}

	m.roundHints++
	m.hintsUsed++
	m.score = max(m.score-m.rules.HintCost, 0)
	h.Cost = m.rules.HintCost
	h.Score = m.score
	return h, nil
}

// Proverb returns the proverb shown for the current level.
func (m *Machine) Proverb() (content.Proverb, bool) {
	if m.bundle == nil {
		return content.Proverb{}, false
	}
	return m.bundle.ProverbForLevel(m.level)
}

// RootFact returns enrichment for a root, if any.
func (m *Machine) RootFact(root string) (content.RootFact, bool) {
	if m.bundle == nil {
		return content.RootFact{}, false
	}
	return m.bundle.Fact(root)
}
