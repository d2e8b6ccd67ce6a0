// Package config loads server and game-tuning configuration.
//
// Order of precedence (later wins):
//  1. Default()
//  2. optional file (JUTHOOR_CONFIG): .toml, .yaml/.yml or .json
//  3. environment variables (ApplyEnvOverrides)
//
// Validate runs last; Rules converts the game section into session.Rules.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/session"
)

// Config is the complete process configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server" json:"server"`
	Storage StorageConfig `toml:"storage" yaml:"storage" json:"storage"`
	Game    GameConfig    `toml:"game" yaml:"game" json:"game"`
	Daily   DailyConfig   `toml:"daily" yaml:"daily" json:"daily"`
	Log     LogConfig     `toml:"log" yaml:"log" json:"log"`
}

// ServerConfig covers the HTTP surface and player tokens.
type ServerConfig struct {
	Port           string `toml:"port" yaml:"port" json:"port"`
	ClientOrigin   string `toml:"client_origin" yaml:"client_origin" json:"clientOrigin"`
	JWTSecret      string `toml:"jwt_secret" yaml:"jwt_secret" json:"jwtSecret"`
	JWTExpiresDays int    `toml:"jwt_expires_days" yaml:"jwt_expires_days" json:"jwtExpiresDays"`
	CookieName     string `toml:"cookie_name" yaml:"cookie_name" json:"cookieName"`
	Production     bool   `toml:"production" yaml:"production" json:"production"`

	// SessionIdleMinutes evicts in-memory sessions untouched this long.
	SessionIdleMinutes int `toml:"session_idle_minutes" yaml:"session_idle_minutes" json:"sessionIdleMinutes"`
}

// StorageConfig selects the persistence implementation.
type StorageConfig struct {
	Driver string `toml:"driver" yaml:"driver" json:"driver"` // "sqlite" | "memory"
	Path   string `toml:"path" yaml:"path" json:"path"`
}

// GameConfig holds session rules. Maps are keyed by difficulty name.
type GameConfig struct {
	DefaultDifficulty string                         `toml:"default_difficulty" yaml:"default_difficulty" json:"defaultDifficulty"`
	RoundsPerLevel    map[string]int                 `toml:"rounds_per_level" yaml:"rounds_per_level" json:"roundsPerLevel"`
	BasePoints        map[string]int                 `toml:"base_points" yaml:"base_points" json:"basePoints"`
	Escalation        []session.Threshold            `toml:"escalation" yaml:"escalation" json:"escalation"`
	HintCost          int                            `toml:"hint_cost" yaml:"hint_cost" json:"hintCost"`
	RotateCooldownMs  int                            `toml:"rotate_cooldown_ms" yaml:"rotate_cooldown_ms" json:"rotateCooldownMs"`
	Selector          map[string]game.SelectorPolicy `toml:"selector" yaml:"selector" json:"selector"`
}

// DailyConfig keys the daily round seed.
type DailyConfig struct {
	Salt string `toml:"salt" yaml:"salt" json:"salt"`
}

// LogConfig sets the zerolog level.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rules := session.DefaultRules()
	c := &Config{
		Server: ServerConfig{
			Port:           "5175",
			ClientOrigin:   "http://localhost:5173",
			JWTSecret:      "dev_secret_change_me",
			JWTExpiresDays: 14,
			CookieName:     "juthoor_token",

			SessionIdleMinutes: 30,
		},
		Storage: StorageConfig{Driver: "sqlite", Path: "./data/juthoor.db"},
		Game: GameConfig{
			DefaultDifficulty: string(rules.DefaultDifficulty),
			RoundsPerLevel:    map[string]int{},
			BasePoints:        map[string]int{},
			Escalation:        rules.Escalation,
			HintCost:          rules.HintCost,
			RotateCooldownMs:  int(rules.RotateCooldown / time.Millisecond),
			Selector:          map[string]game.SelectorPolicy{},
		},
		Daily: DailyConfig{Salt: "local_dev_salt"},
		Log:   LogConfig{Level: "info"},
	}
	for d, n := range rules.RoundsPerLevel {
		c.Game.RoundsPerLevel[string(d)] = n
	}
	for d, n := range rules.BasePoints {
		c.Game.BasePoints[string(d)] = n
	}
	for d, p := range rules.Policies {
		c.Game.Selector[string(d)] = p
	}
	return c
}

// Load reads path over the defaults, applies env overrides and validates.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv loads the file named by JUTHOOR_CONFIG (if any).
func FromEnv() (*Config, error) {
	return Load(os.Getenv("JUTHOOR_CONFIG"))
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variables on top of the file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CLIENT_ORIGIN"); v != "" {
		c.Server.ClientOrigin = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.JWTExpiresDays = n
		}
	}
	if v := os.Getenv("SESSION_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.SessionIdleMinutes = n
		}
	}
	if v := os.Getenv("COOKIE_NAME"); v != "" {
		c.Server.CookieName = v
	}
	if os.Getenv("APP_ENV") == "production" {
		c.Server.Production = true
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("DAILY_SALT"); v != "" {
		c.Daily.Salt = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DEFAULT_DIFFICULTY"); v != "" {
		c.Game.DefaultDifficulty = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.JWTExpiresDays <= 0 {
		errs = append(errs, errors.New("server.jwt_expires_days must be positive"))
	}
	if c.Server.SessionIdleMinutes <= 0 {
		errs = append(errs, errors.New("server.session_idle_minutes must be positive"))
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite or memory", c.Storage.Driver))
	}
	if _, err := game.ParseDifficulty(c.Game.DefaultDifficulty); err != nil {
		errs = append(errs, fmt.Errorf("game.default_difficulty: %w", err))
	}
	for name, n := range c.Game.RoundsPerLevel {
		errs = append(errs, checkTier("game.rounds_per_level", name, n)...)
	}
	for name, n := range c.Game.BasePoints {
		errs = append(errs, checkTier("game.base_points", name, n)...)
	}
	prevLevel, prevRank := 0, -1
	for i, t := range c.Game.Escalation {
		if !t.Difficulty.Valid() {
			errs = append(errs, fmt.Errorf("game.escalation[%d]: unknown difficulty %q", i, t.Difficulty))
			continue
		}
		if t.AfterLevel <= prevLevel || t.Difficulty.Rank() <= prevRank {
			errs = append(errs, fmt.Errorf("game.escalation[%d]: thresholds must increase in level and difficulty", i))
		}
		prevLevel, prevRank = t.AfterLevel, t.Difficulty.Rank()
	}
	if c.Game.HintCost < 0 {
		errs = append(errs, errors.New("game.hint_cost must not be negative"))
	}
	if c.Game.RotateCooldownMs < 0 {
		errs = append(errs, errors.New("game.rotate_cooldown_ms must not be negative"))
	}
	for name, p := range c.Game.Selector {
		if _, err := game.ParseDifficulty(name); err != nil {
			errs = append(errs, fmt.Errorf("game.selector: %w", err))
		}
		if p.MaxAttempts <= 0 {
			errs = append(errs, fmt.Errorf("game.selector.%s.max_attempts must be positive", name))
		}
		if p.MinValid < 0 || p.MinValid > p.MaxValid || p.MaxValid > 6 {
			errs = append(errs, fmt.Errorf("game.selector.%s: need 0 <= min_valid <= max_valid <= 6", name))
		}
	}
	return errors.Join(errs...)
}

func checkTier(field, name string, n int) []error {
	var errs []error
	if _, err := game.ParseDifficulty(name); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", field, err))
	}
	if n <= 0 {
		errs = append(errs, fmt.Errorf("%s.%s must be positive", field, name))
	}
	return errs
}

// Rules converts the game section into session rules. Call after Validate.
func (c *Config) Rules() session.Rules {
	r := session.DefaultRules()
	if d, err := game.ParseDifficulty(c.Game.DefaultDifficulty); err == nil {
		r.DefaultDifficulty = d
	}
	for name, n := range c.Game.RoundsPerLevel {
		r.RoundsPerLevel[game.Difficulty(strings.ToLower(name))] = n
	}
	for name, n := range c.Game.BasePoints {
		r.BasePoints[game.Difficulty(strings.ToLower(name))] = n
	}
	if c.Game.Escalation != nil {
		r.Escalation = append([]session.Threshold(nil), c.Game.Escalation...)
	}
	r.HintCost = c.Game.HintCost
	r.RotateCooldown = time.Duration(c.Game.RotateCooldownMs) * time.Millisecond
	for name, p := range c.Game.Selector {
		r.Policies[game.Difficulty(strings.ToLower(name))] = p
	}
	return r
}
