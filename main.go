package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/juthoor/internal/config"
	"github.com/robalobadob/juthoor/internal/content"
	"github.com/robalobadob/juthoor/internal/httpserver"
	"github.com/robalobadob/juthoor/internal/lexicon"
	"github.com/robalobadob/juthoor/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	bundle, err := content.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load content")
	}
	lex, err := lexicon.New(bundle.Roots)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build lexicon")
	}
	perTier, total := lex.Stats()
	log.Info().Int("roots", total).Interface("tiers", perTier).Int("triangles", len(bundle.Triangles)).Msg("content loaded")

	st := openStore(cfg.Storage)
	defer st.Close()

	srv := httpserver.New(httpserver.Options{
		Config:  cfg,
		Store:   st,
		Lexicon: lex,
		Content: bundle,
	})
	log.Info().Str("port", cfg.Server.Port).Str("store", cfg.Storage.Driver).Msg("starting juthoor")
	if err := srv.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// openStore selects the persistence backend. A failing sqlite open degrades
// to the memory store so the game keeps working.
func openStore(c config.StorageConfig) store.Store {
	if c.Driver == "memory" {
		return store.NewMemoryStore()
	}
	db, err := store.OpenSQLite(c.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", c.Path).Msg("sqlite unavailable; falling back to memory store")
		return store.NewMemoryStore()
	}
	return db
}
