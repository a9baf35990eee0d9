// Package server assembles the HTTP surface: REST sync and mutation
// endpoints, the websocket upgrade, and the middleware chain around them.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/internhub/internhub/internal/server/auth"
	"github.com/internhub/internhub/internal/server/handlers"
	"github.com/internhub/internhub/internal/server/middleware"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	Version         string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

// Handlers groups the route handlers the server mounts.
type Handlers struct {
	Sync     *handlers.SyncHandler
	Mutation *handlers.MutationHandler
	WS       *handlers.WSHandler
}

// Server is the HTTP front of the synchronization core.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        Config
}

// New builds the router and wraps it in an http.Server.
//
// Middleware order, outermost first: recovery, logging, rate limit, auth.
// The websocket route and /health sit outside the auth middleware; the
// websocket handler authenticates the token itself before upgrading.
func New(cfg Config, authCfg auth.Config, h Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	authed := middleware.AuthMiddleware(logger, authCfg)
	mux.Handle("GET /api/v1/sync/initial", authed(http.HandlerFunc(h.Sync.Initial)))
	mux.Handle("GET /api/v1/sync/incremental", authed(http.HandlerFunc(h.Sync.Incremental)))
	mux.Handle("POST /api/v1/mutations", authed(http.HandlerFunc(h.Mutation.Mutate)))

	mux.HandleFunc("GET /ws", h.WS.Serve)
	mux.HandleFunc("GET /health", handlers.NewHealthHandler(logger, cfg.Version).Health)

	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		handler = middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateWindow, logger)(handler)
	}
	handler = middleware.LoggingMiddleware(logger)(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
