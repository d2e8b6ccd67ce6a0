// internal/httpserver/server.go
//
// HTTP server wiring for the Juthoor backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/roots/{root}", "/leaderboard/{mode}".
//   - Session endpoints (optional auth): mounted under /session/{mode}.
//   - Daily round (optional auth): GET /daily/round.
//   - Auth + profile endpoints: /auth/*, /stats/me, /history/mine.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Guests play under an anonymous cookie id; nothing is claimed on signup.
//   - Each (player, mode) pair owns one session.Machine; requests for the
//     same pair are serialized by the registry entry's mutex.

package httpserver

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/juthoor/internal/config"
	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/lexicon"
	"github.com/robalobadob/juthoor/internal/session"
	"github.com/robalobadob/juthoor/internal/store"
)

// Options are the collaborators of a Server. Clock and NewRand default to
// wall time and time-seeded math/rand.
type Options struct {
	Config  *config.Config
	Store   store.Store
	Lexicon *lexicon.Store
	Content *content.Bundle
	Clock   func() time.Time
	NewRand func() game.Rand
}

// Server bundles router, session registry and shared game data.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	store    store.Store
	lex      *lexicon.Store
	bundle   *content.Bundle
	rules    session.Rules
	now      func() time.Time
	newRand  func() game.Rand
	sessions *registry
}

// New constructs a Server, installs middleware, and registers routes.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		store:   opts.Store,
		lex:     opts.Lexicon,
		bundle:  opts.Content,
		rules:   cfg.Rules(),
		now:     opts.Clock,
		newRand: opts.NewRand,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newRand == nil {
		var seq int64
		s.newRand = func() game.Rand {
			seed := time.Now().UnixNano() + atomic.AddInt64(&seq, 1)
			return rand.New(rand.NewSource(seed))
		}
	}
	s.sessions = newRegistry(s.newMachine, s.now, time.Duration(cfg.Server.SessionIdleMinutes)*time.Minute)

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(cfg.Server.ClientOrigin))   // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "juthoor",
			"endpoints": []string{"/health", "/session/{mode}", "/daily/round", "/leaderboard/{mode}", "/roots/{root}", "/auth/*"},
		})
	})
	s.r.Get("/health", s.handleHealth)

	// Sessions: OPTIONAL AUTH (guests play under an anon id)
	s.r.With(s.withOptionalAuth()).Route("/session/{mode}", s.mountSession)

	// Daily round: OPTIONAL AUTH
	s.r.With(s.withOptionalAuth()).Get("/daily/round", s.handleDailyRound)

	s.r.Get("/leaderboard/{mode}", s.handleLeaderboard)
	s.r.Get("/roots/{root}", s.handleRoot)

	// Auth + profile/stats
	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------ public -------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	perTier, total := map[game.Difficulty]int{}, 0
	if s.lex != nil {
		perTier, total = s.lex.Stats()
	}
	triangles := 0
	if s.bundle != nil {
		triangles = len(s.bundle.Triangles)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"roots":     total,
		"tiers":     perTier,
		"triangles": triangles,
		"sessions":  s.sessions.len(),
	})
}

// handleLeaderboard returns the top high scores for a mode (?limit=, default 20).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	mode, err := game.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_mode")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := s.store.Leaderboard(r.Context(), mode, limit)
	if err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if rows == nil {
		rows = []store.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "top": rows})
}

type rootRes struct {
	game.RootEntry
	Fact *content.RootFact `json:"fact,omitempty"`
}

// handleRoot looks up one root and its enrichment facts.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	if s.lex == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	e, ok := s.lex.Lookup(root)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_root")
		return
	}
	res := rootRes{RootEntry: e}
	if s.bundle != nil {
		if f, ok := s.bundle.Fact(e.Root); ok {
			res.Fact = &f
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// ------------------------------- util --------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeSessionError maps session and game errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrPaused):
		writeError(w, http.StatusConflict, "paused")
	case errors.Is(err, session.ErrRoundRevealed):
		writeError(w, http.StatusConflict, "round_answered")
	case errors.Is(err, session.ErrNotRevealed):
		writeError(w, http.StatusConflict, "round_not_answered")
	case errors.Is(err, session.ErrRotationPending):
		writeError(w, http.StatusTooManyRequests, "rotation_pending")
	case errors.Is(err, session.ErrNoMoreHints):
		writeError(w, http.StatusConflict, "no_more_hints")
	case errors.Is(err, session.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, session.ErrWrongMode):
		writeError(w, http.StatusBadRequest, "wrong_mode")
	case errors.Is(err, session.ErrNoSavedSession):
		writeError(w, http.StatusNotFound, "no_saved_session")
	case errors.Is(err, game.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, "empty_selection")
	case errors.Is(err, game.ErrIncompleteMatches):
		writeError(w, http.StatusBadRequest, "incomplete_matches")
	case errors.Is(err, game.ErrInvalidMatch):
		writeError(w, http.StatusBadRequest, "invalid_match")
	case errors.Is(err, game.ErrEmptyCandidatePool):
		writeError(w, http.StatusServiceUnavailable, "no_content")
	default:
		log.Error().Err(err).Msg("session request")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}
