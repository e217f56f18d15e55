// main.go
//
// Entry point for the Memory Match server.
// Startup: .env → config → log level → symbol pools → results database →
// live session store (+ idle reaper) → HTTP server. SIGINT/SIGTERM shut the
// server down gracefully and close every live game.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/clock"
	"github.com/robalobadob/memory-game/internal/config"
	"github.com/robalobadob/memory-game/internal/db"
	"github.com/robalobadob/memory-game/internal/deck"
	"github.com/robalobadob/memory-game/internal/httpserver"
	"github.com/robalobadob/memory-game/internal/results"
	"github.com/robalobadob/memory-game/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := deck.Init(cfg.DeckMainFile, cfg.DeckBonusFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load symbol pools")
	}
	m, b := deck.Current().Stats()
	log.Info().Int("main", m).Int("bonus", b).Msg("symbol pools loaded")

	conn, err := db.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go store.RunReaper(ctx, mem, time.Now, time.Minute, cfg.SessionIdle)

	srv := httpserver.New(cfg, mem, results.New(conn, nil), httpserver.WithClock(clock.Real{}))
	hs := srv.HTTPServer(":" + cfg.Port)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting memory-server")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server exited")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	srv.Shutdown(shutdownCtx)
}
