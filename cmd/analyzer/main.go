package main

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/analyzer"
	"portfolioAnalyzer/internal/config"
	"portfolioAnalyzer/internal/marketdata"
	"portfolioAnalyzer/internal/openai"
	"portfolioAnalyzer/internal/output"
	"portfolioAnalyzer/internal/server"
	"portfolioAnalyzer/internal/storage"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg := config.Load()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Str("path", cfg.DBPath).Msg("db: opened sqlite")
	if err := storage.InitSchema(db); err != nil {
		log.Fatal().Err(err).Msg("failed to init schema")
	}
	log.Info().Msg("db: schema ensured (runs, artifacts tables)")

	out, err := output.NewController(cfg.OutputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output controller")
	}
	log.Info().Str("dir", cfg.OutputDir).Msg("output: directory ready")

	var commentator analyzer.Commentator
	if cfg.OpenAIKey != "" {
		commentator = openai.NewCommentator(cfg.OpenAIKey)
		log.Info().Msg("openai: commentary enabled")
	} else {
		log.Info().Msg("openai: no api key, commentary disabled")
	}

	loader := marketdata.NewLoader(cfg.FetchTimeout, log)
	store := storage.NewStore(db)
	svc := analyzer.NewService(loader, out, store, commentator, cfg.RiskFreeRate, log)

	srv := server.New(svc, out, store, log)
	addr := ":" + cfg.Port
	if err := srv.ListenAndServe(addr); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
