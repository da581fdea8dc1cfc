package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden-hq/taskwarden/pkg/config"
	"warden-hq/taskwarden/pkg/ledger"
	"warden-hq/taskwarden/pkg/scheduler"
)

// Config holds the server's collaborators and settings.
type Config struct {
	// Server is the HTTP listener configuration.
	Server config.ServerConfig

	// Scheduler handles task submission, cancellation and status.
	Scheduler *scheduler.Scheduler

	// Ledger serves the usage query surface.
	Ledger *ledger.Ledger

	// Gatherer backs the /metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	config    config.ServerConfig
	scheduler *scheduler.Scheduler
	ledger    *ledger.Ledger
	gatherer  prometheus.Gatherer
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu      sync.Mutex
	running bool
}

// New creates the API server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:    cfg.Server,
		scheduler: cfg.Scheduler,
		ledger:    cfg.Ledger,
		gatherer:  cfg.Gatherer,
		logger:    logger.With("component", "server"),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/tasks", s.handleSubmit)
	r.Get("/tasks/{id}", s.handleGetTask)
	r.Delete("/tasks/{id}", s.handleCancel)
	r.Get("/status", s.handleStatus)

	r.Route("/usage", func(r chi.Router) {
		r.Get("/summary", s.handleUsageSummary)
		r.Get("/alerts", s.handleUsageAlerts)
		r.Get("/analytics", s.handleUsageAnalytics)
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// Start runs the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down http server")
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server gracefully within the configured timeout.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
			return
		}
		s.logger.Info("http server stopped")
	})
	return err
}
