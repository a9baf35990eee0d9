package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/internhub/internhub/internal/client/realtime"
	clientsync "github.com/internhub/internhub/internal/client/sync"
	"github.com/internhub/internhub/internal/models"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "Websocket URL")
	token := flag.String("token", os.Getenv("INTERNHUB_TOKEN"), "Access token")
	queuePath := flag.String("queue", "internhub-client.db", "Path to the offline queue database")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: access token is required (-token or INTERNHUB_TOKEN)")
		os.Exit(1)
	}

	logger := newLogger(*logLevel)

	service, err := clientsync.New(clientsync.Config{
		ServerURL: *serverURL,
		WSURL:     *wsURL,
		Token:     *token,
		QueuePath: *queuePath,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize client: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Error("failed to close client", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runCommand(ctx, service, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, service *clientsync.Service, args []string) error {
	switch command := args[0]; command {
	case "watch":
		return runWatch(ctx, service)
	case "list":
		return runList(ctx, service, args[1:])
	case "create":
		return runCreate(ctx, service, args[1:])
	case "update":
		return runUpdate(ctx, service, args[1:])
	case "delete":
		return runDelete(ctx, service, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runWatch keeps a live session and prints the cache state on an interval.
func runWatch(ctx context.Context, service *clientsync.Service) error {
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Printf("[%s] status=%s", time.Now().Format(time.TimeOnly), service.Status())
			for _, entityType := range models.KnownEntityTypes() {
				fmt.Printf(" %s=%d", entityType, len(service.Store().List(entityType)))
			}
			fmt.Println()
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func runList(ctx context.Context, service *clientsync.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: list <entity_type>")
	}

	if err := connect(ctx, service); err != nil {
		return err
	}

	entityType := models.EntityType(args[0])
	if err := service.Refresh(ctx, entityType); err != nil {
		fmt.Fprintf(os.Stderr, "warning: refresh failed, listing cached state: %v\n", err)
	}

	for _, entity := range service.Store().List(entityType) {
		line, err := json.Marshal(map[string]any{
			"id":         entity.ID,
			"updated_at": entity.UpdatedAt,
			"fields":     entity.Fields,
		})
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}

	return nil
}

func runCreate(ctx context.Context, service *clientsync.Service, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create <entity_type> field=value...")
	}

	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	if err := connect(ctx, service); err != nil {
		return err
	}

	localID, err := service.Create(models.EntityType(args[0]), fields)
	if err != nil {
		return err
	}

	fmt.Printf("created (correlation id %s)\n", localID)
	return nil
}

func runUpdate(ctx context.Context, service *clientsync.Service, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: update <entity_type> <id> field=value...")
	}

	fields, err := parseFields(args[2:])
	if err != nil {
		return err
	}

	if err := connect(ctx, service); err != nil {
		return err
	}

	localID, err := service.Update(models.EntityType(args[0]), args[1], fields)
	if err != nil {
		return err
	}

	fmt.Printf("updated (correlation id %s)\n", localID)
	return nil
}

func runDelete(ctx context.Context, service *clientsync.Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: delete <entity_type> <id>")
	}

	if err := connect(ctx, service); err != nil {
		return err
	}

	localID, err := service.Delete(models.EntityType(args[0]), args[1])
	if err != nil {
		return err
	}

	fmt.Printf("deleted (correlation id %s)\n", localID)
	return nil
}

// connect brings the session online and waits for the initial snapshot so
// one-shot commands operate on current data. Failing to connect is not
// fatal: the mutation commands fall back to the offline queue.
func connect(ctx context.Context, service *clientsync.Service) error {
	go func() { _ = service.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if service.Status() == realtime.StatusOnline {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	fmt.Fprintln(os.Stderr, "warning: server unreachable, working offline")
	return nil
}

func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q, expected key=value", arg)
		}
		fields[key] = value
	}
	return fields, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printUsage() {
	fmt.Println(`InternHub Sync Client

Usage:
  internhub-client [flags] <command>

Commands:
  watch                                keep a live session, print cache counts
  list <entity_type>                   print cached entities of a type
  create <entity_type> field=value...  create an entity
  update <entity_type> <id> field=value...
  delete <entity_type> <id>

Flags:
  -server   Server URL (default http://localhost:8080)
  -ws       Websocket URL (default ws://localhost:8080/ws)
  -token    Access token (or INTERNHUB_TOKEN)
  -queue    Offline queue database path
  -version  Show version information`)
}

func printVersion() {
	fmt.Printf("InternHub Sync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
