// Package backend wires a concrete store, the optional sync channel and the
// services on top of them, selected by configuration.
package backend

import (
	"fmt"
	"log/slog"

	"financeiro/internal/amqp"
	"financeiro/internal/catalog"
	"financeiro/internal/config"
	"financeiro/internal/ledger"
	"financeiro/internal/services"
	"financeiro/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result bundles everything a frontend needs to serve requests.
type Result struct {
	Store      ledger.Store
	Ledger     *services.LedgerService
	Reconciler *services.Reconciler
	Catalog    *catalog.Catalog
	Cleanup    CleanupFunc
}

// Build assembles the backend selected by cfg.DataBackend.
func Build(cfg *config.Config) (*Result, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.DataBackend {
	case "sqlite":
		return buildSQLite(cfg, cat)
	case "memory":
		return buildMemory(cfg, cat)
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}
	slog.Info("Loaded template catalog override", "path", cfg.CatalogPath, "templates", cat.Len())
	return cat, nil
}

func buildSQLite(cfg *config.Config, cat *catalog.Catalog) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	publisher, closePublisher := dialPublisher(cfg)

	ledgerSvc := services.NewLedgerService(repo, publisher)
	reconciler := services.NewReconciler(cat, ledgerSvc)

	slog.Info("Initialized SQLite backend",
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	cleanup := func() error {
		closePublisher()
		return repo.Close()
	}
	return &Result{
		Store:      repo,
		Ledger:     ledgerSvc,
		Reconciler: reconciler,
		Catalog:    cat,
		Cleanup:    cleanup,
	}, nil
}

func buildMemory(cfg *config.Config, cat *catalog.Catalog) (*Result, error) {
	store := ledger.NewMemoryStore()

	publisher, closePublisher := dialPublisher(cfg)

	ledgerSvc := services.NewLedgerService(store, publisher)
	reconciler := services.NewReconciler(cat, ledgerSvc)

	slog.Info("Initialized memory backend", "amqp_enabled", publisher != nil)

	cleanup := func() error {
		closePublisher()
		return nil
	}
	return &Result{
		Store:      store,
		Ledger:     ledgerSvc,
		Reconciler: reconciler,
		Catalog:    cat,
		Cleanup:    cleanup,
	}, nil
}

// dialPublisher connects to AMQP when configured. A broker that is down at
// startup is not fatal; mutations still land locally and the pending scan
// catches up later.
func dialPublisher(cfg *config.Config) (services.SyncPublisher, func()) {
	if cfg.AMQPURL == "" {
		return nil, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return nil, func() {}
	}
	slog.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close AMQP client", "error", err)
		}
	}
}
