// internal/httpserver/auth.go
//
// Player accounts and tokens.
// Responsibilities:
//   - Signup/login/logout/me over store.Player (bcrypt password hashes).
//   - HS256 JWT issuance; token read from "Authorization: Bearer" or cookie.
//   - Optional and required auth middleware; anonymous cookie ids for guests.
//   - /stats/me and /history/mine for signed-in players.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/juthoor/internal/store"
)

const (
	anonCookieName = "juthoor_anon"
	anonCookieTTL  = 180 * 24 * time.Hour
)

// credentials is the payload for signup/login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func currentUser(ctx context.Context) *authUser {
	u, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers authentication + gated routes.
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.With(s.requireAuth()).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentUser(r.Context()))
	})

	s.r.With(s.requireAuth()).Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r.Context())
		t, err := s.store.Totals(r.Context(), me.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         me.ID,
			"totalScore": t.TotalScore,
			"bestStreak": t.BestStreak,
		})
	})

	s.r.With(s.requireAuth()).Get("/history/mine", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r.Context())
		rows, err := s.store.GameHistory(r.Context(), me.ID, 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if rows == nil {
			rows = []store.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, rows)
	})
}

// handleSignup creates a player, signs a JWT and sets the auth cookie.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	username := strings.TrimSpace(body.Username)
	if err := validateSignup(username, body.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash_failed")
		return
	}
	p := store.Player{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreatePlayer(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username_taken")
			return
		}
		log.Error().Err(err).Msg("create player")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if !s.issueToken(w, p.ID, p.Username) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": p.ID, "username": p.Username, "createdAt": p.CreatedAt})
}

// handleLogin authenticates a player and sets the auth cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := s.store.PlayerByName(r.Context(), strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(p.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !s.issueToken(w, p.ID, p.Username) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": p.ID, "username": p.Username})
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setCookie(w, s.cfg.Server.CookieName, "", -1)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) issueToken(w http.ResponseWriter, id, username string) bool {
	tok, err := s.signJWT(id, username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	s.setCookie(w, s.cfg.Server.CookieName, tok, s.tokenTTL())
	w.Header().Set("Authorization", "Bearer "+tok)
	return true
}

// --------------------------- middleware ------------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is
// present. It never 401s.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := s.authenticate(r); u != nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT for a player that still exists.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearerOrCookie(r, s.cfg.Server.CookieName) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			u := s.authenticate(r)
			if u == nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}

// authenticate returns the player behind the request token, or nil.
func (s *Server) authenticate(r *http.Request) *authUser {
	tok := bearerOrCookie(r, s.cfg.Server.CookieName)
	if tok == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Server.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil
	}
	p, err := s.store.PlayerByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return &authUser{ID: p.ID, Username: p.Username}
}

// playerID returns the signed-in player's id or the anonymous cookie id.
func (s *Server) playerID(w http.ResponseWriter, r *http.Request) string {
	if me := currentUser(r.Context()); me != nil {
		return me.ID
	}
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := "anon-" + uuid.NewString()
	s.setCookie(w, anonCookieName, id, anonCookieTTL)
	return id
}

// ------------------------------ helpers ------------------------------------

func (s *Server) tokenTTL() time.Duration {
	return time.Duration(s.cfg.Server.JWTExpiresDays) * 24 * time.Hour
}

// signJWT creates an HS256 JWT with id/username and the configured expiry.
// Expiry is checked against the same clock in authenticate.
func (s *Server) signJWT(id, username string) (string, error) {
	now := s.now()
	exp := now.Add(s.tokenTTL())
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	return t.SignedString([]byte(s.cfg.Server.JWTSecret))
}

// setCookie writes an HttpOnly cookie living for ttl; ttl < 0 deletes it.
// Lifetime goes out as Max-Age so the browser counts it from receipt.
func (s *Server) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	secure := s.cfg.Server.Production
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8-100 chars")
	}
	return nil
}
