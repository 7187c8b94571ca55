package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"copilot-bridge/internal/bridge"
	"copilot-bridge/internal/config"
	"copilot-bridge/internal/copilot"
	"copilot-bridge/internal/handlers"
	"copilot-bridge/internal/middleware"
)

// Server is the HTTP front door. It owns the shared bridge state and the
// model resolver, and wires them into the route handlers.
type Server struct {
	config   *config.Manager
	state    *bridge.State
	resolver bridge.Resolver
	logger   *slog.Logger
	version  string
	server   *http.Server
}

func New(configManager *config.Manager, logger *slog.Logger, version string) *Server {
	cfg := configManager.Get()
	state := bridge.NewState()

	var client *copilot.Client

	token, err := copilot.ResolveToken(cfg.Copilot.APIKey)
	if err != nil {
		logger.Warn("no copilot token available; backing model is unavailable", "error", err)
	} else {
		client = copilot.NewClient(cfg.Copilot.APIBase, token, logger)
	}

	resolver := copilot.NewService(client, cfg.Copilot.DefaultModel, state, logger)

	return &Server{
		config:   configManager,
		state:    state,
		resolver: resolver,
		logger:   logger,
		version:  version,
	}
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.setupRoutes(),
	}

	s.logger.Info("Starting server", "address", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(s.config, s.resolver, s.state, s.logger)
	modelsHandler := handlers.NewModelsHandler(s.resolver, s.logger)
	healthHandler := handlers.NewHealthHandler(s.resolver, s.state, s.version)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)
	protected := middlewareSet.DefaultChain()
	health := middlewareSet.HealthChain()

	mux.Handle("GET /health", health.Handler(http.HandlerFunc(healthHandler.Check)))
	mux.Handle("GET /healthz", health.Handler(http.HandlerFunc(healthHandler.Check)))
	mux.Handle("GET /v1/models", protected.Handler(http.HandlerFunc(modelsHandler.List)))
	mux.Handle("POST /v1/chat/completions", protected.Handler(http.HandlerFunc(chatHandler.Completions)))
	mux.Handle("POST /v1/messages", protected.Handler(http.HandlerFunc(chatHandler.Messages)))

	mux.Handle("/", health.Handler(http.HandlerFunc(notFound)))

	return mux
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, `{"error":{"message":"no route for %s %s","type":"not_found_error","code":404}}`, r.Method, r.URL.Path)
}
