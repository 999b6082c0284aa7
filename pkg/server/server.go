// Package server provides the main HTTP server for the proxy: route
// registration, the middleware chain, and graceful lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ccproxy/pkg/config"
	"ccproxy/pkg/fallback"
	"ccproxy/pkg/manager"
	"ccproxy/pkg/proxy/handlers"
	"ccproxy/pkg/proxy/middleware"
	"ccproxy/pkg/telemetry/metrics"
)

// Server is the main HTTP server for the proxy.
type Server struct {
	cfg           *config.ServerConfig
	holder        *manager.Holder
	controller    *fallback.Controller
	providersPath string
	metrics       *metrics.Metrics
	apiKey        string
	logger        *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds a Server. providersPath is the on-disk location the admin
// surface reads and writes; apiKey is the shared secret clients must
// present (empty disables auth, §6).
func New(cfg *config.ServerConfig, holder *manager.Holder, controller *fallback.Controller, providersPath, apiKey string, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:           cfg,
		holder:        holder,
		controller:    controller,
		providersPath: providersPath,
		metrics:       m,
		apiKey:        apiKey,
		logger:        logger,
		shutdownChan:  make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := time.Duration(s.cfg.ShutdownTimeoutSecs) * time.Second
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// setupRoutes registers every handler, applies TimeoutMiddleware per-route
// (every route except POST /v1/messages, which may stream), and wraps the
// whole mux in the remaining middleware chain (innermost to outermost:
// CORS, Logging, RequestID, Recovery).
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	messagesHandler := handlers.NewMessagesHandler(s.controller, s.logger)
	countTokensHandler := handlers.NewCountTokensHandler(s.logger)
	healthHandler := handlers.NewHealthHandler(s.holder)
	testConnHandler := handlers.NewTestConnectionHandler(s.controller, s.logger)
	rootHandler := handlers.NewRootHandler(s.holder)
	adminHandler := handlers.NewAdminHandler(s.holder, s.providersPath, s.metrics, s.logger)

	// TimeoutMiddleware wraps only non-streaming routes (its own doc
	// comment). POST /v1/messages can be a long-lived SSE stream
	// (MessagesHandler.serveStream); wrapping it would race the timeout
	// goroutine's claude.WriteError against serveStream's still-running
	// flusher.Flush writes to the same ResponseWriter once WriteTimeoutSecs
	// elapses, corrupting any stream that legitimately outlives it.
	withTimeout := middleware.TimeoutMiddleware(time.Duration(s.cfg.WriteTimeoutSecs)*time.Second, s.logger)

	// Every route, core and admin alike, shares one auth gate (§6); an
	// empty apiKey disables it.
	requireKey := middleware.APIKeyMiddleware(s.apiKey, s.logger)

	mux.Handle("POST /v1/messages", requireKey(messagesHandler))
	mux.Handle("POST /v1/messages/count_tokens", withTimeout(requireKey(countTokensHandler)))
	mux.Handle("GET /health", withTimeout(requireKey(healthHandler)))
	mux.Handle("GET /test-connection", withTimeout(requireKey(testConnHandler)))
	mux.Handle("GET /{$}", withTimeout(requireKey(rootHandler)))

	mux.Handle("GET /api/config/providers", withTimeout(requireKey(http.HandlerFunc(adminHandler.GetProviders))))
	mux.Handle("PUT /api/config/providers", withTimeout(requireKey(http.HandlerFunc(adminHandler.PutProviders))))
	mux.Handle("POST /api/config/reload", withTimeout(requireKey(http.HandlerFunc(adminHandler.Reload))))
	mux.Handle("POST /api/providers/{name}/test", withTimeout(requireKey(http.HandlerFunc(adminHandler.TestProvider))))
	mux.Handle("PUT /api/providers/{name}/toggle", withTimeout(requireKey(http.HandlerFunc(adminHandler.ToggleProvider))))
	if s.metrics != nil {
		mux.Handle("GET /metrics", withTimeout(requireKey(s.metrics.Handler())))
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(middleware.DefaultCORSConfig())(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler
}

// IsRunning reports whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully configured HTTP handler, for tests that drive
// requests without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
