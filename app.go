package main

import (
	"context"
	"fmt"

	"tesouro-scraper/config"
	"tesouro-scraper/scraper/browser"
	"tesouro-scraper/scraper/tesouro"
	"tesouro-scraper/services"
	"tesouro-scraper/storage"
	"tesouro-scraper/utils"
)

// app holds the collaborators shared by the run and serve commands.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	store    storage.Store
	pipeline *services.Pipeline
}

func newLogger(cfg *config.Config) *utils.Logger {
	level := utils.ParseLevel(cfg.LogLevel)
	logger, err := utils.NewLoggerWithFile(level, cfg.LogFile)
	if err != nil {
		logger, _ = utils.NewLoggerWithFile(level, "")
		logger.Warn("Cannot open log file %s, logging to console only: %v", cfg.LogFile, err)
	}
	return logger
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return storage.OpenPostgres(ctx, cfg.DSN())
	case "sqlite":
		return storage.OpenSQLite(ctx, cfg.SQLitePath)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want sqlite, postgres or memory)", cfg.StoreDriver)
	}
}

func newBrowser(cfg *config.Config, logger *utils.Logger) (browser.Browser, error) {
	switch cfg.Renderer {
	case "chrome":
		return browser.NewChromeBrowser(cfg.ChromeBin, cfg.Headless, cfg.RenderTimeout, logger), nil
	case "static":
		return browser.NewStaticBrowser(cfg.RenderTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown RENDERER %q (want chrome or static)", cfg.Renderer)
	}
}

// setup loads configuration and wires the pipeline. The caller must call
// close on success.
func setup(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := newLogger(cfg)

	logger.Info("=== Tesouro Direto scraper starting ===")
	logger.Info("Config: url=%s | table=#%s | renderer=%s | store=%s | tz=%s",
		cfg.TargetURL, cfg.TableID, cfg.Renderer, cfg.StoreDriver, cfg.Timezone)

	b, err := newBrowser(cfg, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.StoreDriver, err)
		if cfg.StoreDriver == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		logger.Close()
		return nil, err
	}

	var snapshots storage.RawRowWriter
	if cfg.SnapshotDir != "" {
		w, err := storage.NewSnapshotWriter(cfg.SnapshotDir)
		if err != nil {
			logger.Warn("Raw snapshots disabled: %v", err)
		} else {
			snapshots = w
		}
	}

	scraper := tesouro.New(cfg.TargetURL, cfg.TableID, b, cfg.MaxRetries, logger)
	pipeline := services.NewPipeline(
		scraper,
		services.NewNormalizer(logger),
		services.NewReconciler(store, cfg.Location(), cfg.KeyCacheTTL, logger),
		snapshots,
		logger,
	)

	return &app{cfg: cfg, logger: logger, store: store, pipeline: pipeline}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Closing store: %v", err)
	}
	a.logger.Close()
}
