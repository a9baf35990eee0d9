package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/internhub/internhub/internal/clock"
	"github.com/internhub/internhub/internal/server"
	"github.com/internhub/internhub/internal/server/auth"
	"github.com/internhub/internhub/internal/server/dispatch"
	"github.com/internhub/internhub/internal/server/gateway"
	"github.com/internhub/internhub/internal/server/handlers"
	"github.com/internhub/internhub/internal/server/storage/sqlite"
	syncsvc "github.com/internhub/internhub/internal/server/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const tombstonePurgeInterval = time.Hour

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOr("INTERNHUB_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("INTERNHUB_DB", "internhub.db"), "Path to the sqlite database")
	jwtSecret := flag.String("jwt-secret", os.Getenv("INTERNHUB_JWT_SECRET"), "JWT signing secret")
	rateLimit := flag.Int("rate-limit", 100, "Requests per minute per client IP (0 disables)")
	logLevel := flag.String("log-level", envOr("INTERNHUB_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := newLogger(*logLevel)

	if err := run(logger, *addr, *dbPath, *jwtSecret, *rateLimit); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, dbPath, jwtSecret string, rateLimit int) error {
	if jwtSecret == "" {
		return fmt.Errorf("jwt secret is required (-jwt-secret or INTERNHUB_JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	// Restore the timestamp source so updated_at keeps increasing across
	// restarts even if the wall clock stepped backwards in between.
	clk := clock.New()
	maxUpdatedAt, err := store.MaxUpdatedAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to read max updated_at: %w", err)
	}
	clk.Observe(maxUpdatedAt)

	authCfg := auth.Config{Secret: []byte(jwtSecret), TokenTTL: 24 * time.Hour}

	snapshots := syncsvc.NewService(store, logger)
	hub := gateway.NewHub(logger)
	gw := gateway.New(hub, snapshots, store, logger)
	dispatcher := dispatch.New(hub, logger)

	go purgeTombstones(ctx, snapshots, logger)

	srv := server.New(
		server.Config{
			Addr:            addr,
			Version:         Version,
			RateLimit:       rateLimit,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		authCfg,
		server.Handlers{
			Sync:     handlers.NewSyncHandler(snapshots, logger),
			Mutation: handlers.NewMutationHandler(store, clk, dispatcher, logger),
			WS:       handlers.NewWSHandler(gw, authCfg, logger),
		},
		logger,
	)

	logger.Info("internhub sync server starting",
		"version", Version,
		"addr", addr,
		"db", dbPath)

	return srv.Run(ctx)
}

// purgeTombstones enforces the compaction horizon in the background.
func purgeTombstones(ctx context.Context, snapshots *syncsvc.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tombstonePurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := snapshots.PurgeExpiredTombstones(ctx); err != nil {
				logger.Error("tombstone purge failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("InternHub Sync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
