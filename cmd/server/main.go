package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/admin"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/config"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	_ "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/tables" // Register all record kinds
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/logging"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"seed_enabled", cfg.Seed.Enabled,
		"uploads_dir", cfg.Uploads.Dir,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"version", cfg.App.Version,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	files, err := core.NewDirFileStore(cfg.Uploads.Dir)
	if err != nil {
		slog.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	service := core.NewService(pool, files)
	if err := service.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create record tables", "error", err)
		os.Exit(1)
	}
	slog.Info("record kinds registered", "count", core.TableCount(), "kinds", core.Kinds())

	if cfg.Seed.Enabled {
		seed(ctx, service, cfg.Seed.DatasetPath)
	}

	server := web.NewServer(service, &admin.Resetter{Store: service}, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// seed imports the dataset at path into empty tables.
// A missing file only logs; a broken one is reported but not fatal.
func seed(ctx context.Context, service *core.Service, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Info("no seed dataset found", "path", path)
		return
	}

	ds, err := core.ReadDatasetFile(path)
	if err != nil {
		slog.Warn("failed to read seed dataset", "path", path, "error", err)
		return
	}

	result, err := service.Seed(ctx, ds)
	if err != nil {
		slog.Warn("seeding failed", "path", path, "error", err)
		return
	}
	slog.Info("seed complete", "inserted", result.Inserted, "skipped", result.Skipped)
}
