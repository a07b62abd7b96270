package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeiro/internal/backend"
	"financeiro/internal/config"
	apphttp "financeiro/internal/http"
	"financeiro/internal/remote"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	b, err := backend.Build(cfg)
	if err != nil {
		logger.Error("Failed to build backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if b.Cleanup != nil {
			if err := b.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	}()

	// Seed local state from the remote store before serving. A failed fetch
	// means offline mode: local data stays as it is and sync catches up later.
	if cfg.PostgresURL != "" {
		seedFromRemote(cfg, b, logger)
	} else {
		b.Ledger.SetConnected(false)
		logger.Info("No remote store configured, running local-only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, b)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting financeiro server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func seedFromRemote(cfg *config.Config, b *backend.Result, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rb, err := remote.NewPostgresBackend(ctx, cfg.PostgresURL)
	if err != nil {
		b.Ledger.SetConnected(false)
		logger.Warn("Remote store unreachable, starting in offline mode", "error", err)
		return
	}
	defer rb.Close()

	txs, drafts, err := rb.FetchAll(ctx)
	if err != nil {
		b.Ledger.SetConnected(false)
		logger.Warn("Remote fetch failed, starting in offline mode", "error", err)
		return
	}

	if err := b.Store.ReplaceAll(ctx, txs); err != nil {
		logger.Error("Failed to seed transactions from remote", "error", err)
		os.Exit(1)
	}
	if err := b.Store.ReplaceAllDrafts(ctx, drafts); err != nil {
		logger.Error("Failed to seed drafts from remote", "error", err)
		os.Exit(1)
	}

	b.Ledger.SetConnected(true)
	months := 0
	entries := 0
	for _, list := range txs {
		months++
		entries += len(list)
	}
	logger.Info("Seeded local state from remote store", "months", months, "transactions", entries)
}
