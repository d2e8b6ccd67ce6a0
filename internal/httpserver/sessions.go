// internal/httpserver/sessions.go
//
// HTTP routes for puzzle sessions, one machine per (player, mode):
//   - GET  /session/{mode}               → current view (never creates a machine)
//   - POST /session/{mode}/start         → {difficulty?}
//   - POST /session/{mode}/restore       → resume the saved snapshot
//   - POST /session/{mode}/rotate        → new letters (roots only)
//   - POST /session/{mode}/submit        → {selected:[...]} or {matches:[{wordKey, meaningId}]}
//   - POST /session/{mode}/advance       → next round or level complete
//   - POST /session/{mode}/next-level    → start the next level
//   - POST /session/{mode}/pause|resume|reset|hint
//   - POST /session/{mode}/exit/request|exit/cancel|exit
//
// Machines live in memory and are evicted when idle; snapshots reach the
// store through the machine.

package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/session"
)

// entry serializes requests against one machine.
type entry struct {
	mu   sync.Mutex
	m    *session.Machine
	seen time.Time // guarded by registry.mu
}

// registry holds live machines keyed by mode|player. Entries untouched
// for idle are evicted; a machine still in progress is paused (and so
// saved) on the way out and comes back through /restore.
type registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	create    func(mode game.Mode, playerID string) *session.Machine
	now       func() time.Time
	idle      time.Duration
	lastSweep time.Time
}

func newRegistry(create func(game.Mode, string) *session.Machine, now func() time.Time, idle time.Duration) *registry {
	return &registry{entries: make(map[string]*entry), create: create, now: now, idle: idle}
}

func registryKey(mode game.Mode, playerID string) string { return string(mode) + "|" + playerID }

// get returns the entry for (mode, player), creating a machine if needed.
func (g *registry) get(mode game.Mode, playerID string) *entry {
	key := registryKey(mode, playerID)
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.maybeSweep(now)
	e, ok := g.entries[key]
	if !ok {
		e = &entry{m: g.create(mode, playerID)}
		g.entries[key] = e
	}
	e.seen = now
	return e
}

// peek returns the entry for (mode, player) without creating one.
func (g *registry) peek(mode game.Mode, playerID string) (*entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[registryKey(mode, playerID)]
	if ok {
		e.seen = g.now()
	}
	return e, ok
}

// maybeSweep runs sweep at most every idle/2. Caller holds g.mu.
func (g *registry) maybeSweep(now time.Time) {
	if g.idle <= 0 || now.Sub(g.lastSweep) < g.idle/2 {
		return
	}
	g.lastSweep = now
	g.sweep(now)
}

// sweep evicts entries idle for at least g.idle. Entries busy with a
// request are skipped. Caller holds g.mu.
func (g *registry) sweep(now time.Time) int {
	evicted := 0
	for key, e := range g.entries {
		if now.Sub(e.seen) < g.idle || !e.mu.TryLock() {
			continue
		}
		if e.m.State() == session.InProgress {
			if err := e.m.Pause(context.Background()); err != nil {
				log.Warn().Err(err).Str("session", e.m.ID()).Msg("pause idle session")
			}
		}
		e.mu.Unlock()
		delete(g.entries, key)
		evicted++
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Int("live", len(g.entries)).Msg("idle sessions evicted")
	}
	return evicted
}

// drop forgets the machine for (mode, player). Called on exit.
func (g *registry) drop(mode game.Mode, playerID string) {
	g.mu.Lock()
	delete(g.entries, registryKey(mode, playerID))
	g.mu.Unlock()
}

func (g *registry) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (s *Server) newMachine(mode game.Mode, playerID string) *session.Machine {
	deps := session.Deps{
		Content:   s.bundle,
		Store:     s.store,
		Navigator: session.NavigatorFunc(s.sessions.drop),
		Rand:      s.newRand(),
		Clock:     s.now,
	}
	if s.lex != nil {
		deps.Lexicon = s.lex
	}
	return session.New(mode, playerID, s.rules, deps)
}

// ------------------------------ routes -------------------------------------

type sessionRes struct {
	Session session.View     `json:"session"`
	Proverb *content.Proverb `json:"proverb,omitempty"`
}

type startReq struct {
	Difficulty string `json:"difficulty"`
}

type submitReq struct {
	Selected []string    `json:"selected"`
	Matches  []game.Pick `json:"matches"`
}

type submitRes struct {
	Outcome session.Outcome `json:"outcome"`
	Session session.View    `json:"session"`
}

type exitRes struct {
	Saved   bool         `json:"saved"`
	Session session.View `json:"session"`
}

type hintRes struct {
	Hint    session.Hint `json:"hint"`
	Session session.View `json:"session"`
}

// sessionHandler resolves the machine for the request and runs fn under its lock.
type sessionHandler func(w http.ResponseWriter, r *http.Request, m *session.Machine)

func (s *Server) mountSession(r chi.Router) {
	// Reading never registers a machine: a player with none yet sees a
	// detached NotStarted view.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		mode, err := game.ParseMode(chi.URLParam(r, "mode"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_mode")
			return
		}
		id := s.playerID(w, r)
		e, ok := s.sessions.peek(mode, id)
		if !ok {
			s.writeView(w, s.newMachine(mode, id))
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		s.writeView(w, e.m)
	})

	r.Post("/start", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		var req startReq
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		var d game.Difficulty
		if req.Difficulty != "" {
			parsed, err := game.ParseDifficulty(req.Difficulty)
			if err != nil {
				writeError(w, http.StatusBadRequest, "unknown_difficulty")
				return
			}
			d = parsed
		}
		if err := m.Start(r.Context(), d); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/restore", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.Restore(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/rotate", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if _, err := m.Rotate(); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/submit", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		var req submitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		var (
			out session.Outcome
			err error
		)
		if m.Mode() == game.ModeQutrab {
			out, err = m.SubmitQutrab(r.Context(), req.Matches)
		} else {
			out, err = m.SubmitRoots(r.Context(), req.Selected)
		}
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, submitRes{Outcome: out, Session: m.View()})
	}))

	r.Post("/advance", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if _, err := m.AdvanceRound(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/next-level", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.AdvanceLevel(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/pause", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.Pause(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/resume", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.Resume(); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/reset", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.Reset(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/hint", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		h, err := m.Hint()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hintRes{Hint: h, Session: m.View()})
	}))

	r.Post("/exit/request", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.RequestExit(); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/exit/cancel", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		if err := m.CancelExit(); err != nil {
			writeSessionError(w, err)
			return
		}
		s.writeView(w, m)
	}))

	r.Post("/exit", s.withMachine(func(w http.ResponseWriter, r *http.Request, m *session.Machine) {
		rep := m.ConfirmExit(r.Context())
		writeJSON(w, http.StatusOK, exitRes{Saved: rep.Saved, Session: m.View()})
	}))
}

// withMachine parses {mode}, resolves the player and locks their machine.
func (s *Server) withMachine(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := game.ParseMode(chi.URLParam(r, "mode"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_mode")
			return
		}
		e := s.sessions.get(mode, s.playerID(w, r))
		e.mu.Lock()
		defer e.mu.Unlock()
		fn(w, r, e.m)
	}
}

// writeView renders the session, adding the level proverb between levels.
func (s *Server) writeView(w http.ResponseWriter, m *session.Machine) {
	res := sessionRes{Session: m.View()}
	if m.State() == session.LevelComplete {
		if p, ok := m.Proverb(); ok {
			res.Proverb = &p
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}
