package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"assetapi/internal/config"
	"assetapi/internal/database"
	"assetapi/internal/database/migration"
	handlers "assetapi/internal/http/handler"
	"assetapi/internal/http/server"
	"assetapi/internal/logger"
	"assetapi/internal/otel"
	"assetapi/internal/repository"
	"assetapi/internal/repository/postgres"
	"assetapi/internal/service"
	"assetapi/internal/storage"
)

// @title Asset API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx := context.Background()

	tracing := otel.SettingsFromEnv()
	shutdownTracing, err := otel.Init(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	store, err := newStorage(cfg, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	deps := []handlers.Pinger{store}

	// The audit trail is optional; without DB_HOST the service runs storage-only.
	var events repository.AssetEventRepository
	if cfg.Database.Enabled() {
		db, err := openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()
		events = postgres.NewAssetEventPostgres(db)
		deps = append(deps, db)
	} else {
		log.Info("audit trail disabled", slog.String("reason", "DB_HOST not set"))
	}

	svc := service.NewAssetService(store, events,
		service.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
		service.WithLogger(log),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := server.New(server.Options{
		Service:      svc,
		Deps:         deps,
		Registry:     reg,
		Logger:       log,
		AllowOrigins: cfg.CORS.AllowOrigins,
		Tracing:      !tracing.Disabled,
		DocsHost:     cfg.AppHost,
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			slog.String("addr", addr),
			slog.String("storage_driver", cfg.Storage.Driver),
		)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}

func newStorage(cfg *config.AppConfig, log *slog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverLocal:
		return storage.NewLocal(cfg.Storage.Dir, log)
	case config.StorageDriverMinIO:
		// Initialize reusable S3-compatible object storage client (MinIO-supported)
		return storage.NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openDatabase(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migration.EnsureMigrated(mctx, db, log, cfg.Database.Host); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
