// internal/httpserver/routes_daily.go
//
// HTTP route for the "root of the day".
//   - GET /daily/round?difficulty=easy → the same letters for every player today
//
// Deterministic letter selection is based on date + salt (daily.Rand); the
// answer (valid roots) is only returned with ?reveal=1 so clients can show
// it after play.

package httpserver

import (
	"net/http"

	"github.com/robalobadob/juthoor/internal/daily"
	"github.com/robalobadob/juthoor/internal/game"
)

// dailyRes is returned by /daily/round.
type dailyRes struct {
	Date         string            `json:"date"`
	Difficulty   game.Difficulty   `json:"difficulty"`
	Letters      game.LetterTriple `json:"letters"`
	Permutations [6]string         `json:"permutations"`
	ValidCount   int               `json:"validCount"`
	Answer       *game.RoundData   `json:"answer,omitempty"`
}

// handleDailyRound builds today's roots round from the date-seeded source.
func (s *Server) handleDailyRound(w http.ResponseWriter, r *http.Request) {
	if s.lex == nil {
		writeError(w, http.StatusServiceUnavailable, "no_content")
		return
	}
	d := game.Easy
	if v := r.URL.Query().Get("difficulty"); v != "" {
		parsed, err := game.ParseDifficulty(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_difficulty")
			return
		}
		d = parsed
	}

	now := s.now()
	gen := game.NewRoundGenerator(s.lex, s.rules.Policies)
	round, err := gen.Generate(daily.Rand(now, s.cfg.Daily.Salt), d, nil)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	res := dailyRes{
		Date:         daily.DateKey(now),
		Difficulty:   d,
		Letters:      round.Letters,
		Permutations: round.Permutations,
		ValidCount:   len(round.ValidRoots),
	}
	if r.URL.Query().Get("reveal") == "1" {
		res.Answer = round
	}
	writeJSON(w, http.StatusOK, res)
}
