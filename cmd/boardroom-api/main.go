package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boardroom/internal/api"
	"boardroom/internal/catalog"
	"boardroom/internal/config"
	"boardroom/internal/db"
	"boardroom/internal/engine"
	"boardroom/internal/game"
	"boardroom/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	deck, scenarios, err := loadContent(cfg.ContentPath)
	if err != nil {
		logger.Error("load content failed", "path", cfg.ContentPath, "err", err)
		os.Exit(1)
	}

	eng, err := engine.New(deck, engine.DefaultParams())
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	// The archive is optional: without DATABASE_URL the game runs fully
	// in memory and closed rounds are simply not persisted.
	var archive game.Archive
	var historian api.Historian
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		st, err := store.New(ctx, pool)
		if err != nil {
			logger.Error("archive init failed", "err", err)
			os.Exit(1)
		}
		archive = st
		historian = st
	} else {
		logger.Warn("DATABASE_URL not set, round snapshots will not be archived")
	}

	mgr, err := game.NewManager(deck, eng, logger, game.Options{
		TeamCount:            cfg.TeamCount,
		RoundDurationSeconds: cfg.RoundDurationSeconds,
		Archive:              archive,
		Scenarios:            scenarios,
	})
	if err != nil {
		logger.Error("game init failed", "err", err)
		os.Exit(1)
	}
	go mgr.Run(ctx)

	server := api.New(cfg, logger, mgr, historian)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("boardroom api listening", "addr", cfg.Addr, "decisions", deck.Len())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func loadContent(path string) (*catalog.Catalog, []catalog.Scenario, error) {
	if path == "" {
		deck, err := catalog.Builtin()
		if err != nil {
			return nil, nil, err
		}
		return deck, catalog.BuiltinScenarios(), nil
	}
	return catalog.LoadFile(path)
}
