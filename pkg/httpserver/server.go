// Package httpserver exposes the operator surface of the execution engine:
// Prometheus metrics, health probes, opportunity intake, manual confirmation,
// breaker control, book inspection and the live trade feed.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/internal/circuitbreaker"
	"github.com/mserran2/triarb/internal/engine"
	"github.com/mserran2/triarb/pkg/healthprobe"
	"github.com/mserran2/triarb/pkg/types"
)

// Executor is the engine surface driven by the intake endpoints.
type Executor interface {
	Submit(ctx context.Context, opp *types.Opportunity) (engine.Outcome, *types.TradeRecord)
	Confirm(token string) error
	Status() engine.Status
}

// Halter exposes breaker state and the operator reset.
type Halter interface {
	GetStatus() circuitbreaker.Status
	Reset()
}

// BookSource serves orderbook snapshots for the inspection endpoint.
type BookSource interface {
	GetOrderbook(ctx context.Context, symbol string, depth int) (*types.OrderbookSnapshot, error)
}

// Server provides HTTP endpoints for metrics, health checks and engine
// control.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration. Executor, Breaker, Books and TradeFeed
// are optional; routes are mounted only for the components provided.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Executor      Executor
	Breaker       Halter
	Books         BookSource
	TradeFeed     http.Handler
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Executor != nil || cfg.Books != nil {
		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Executor != nil {
				api := &apiHandler{executor: cfg.Executor, breaker: cfg.Breaker, logger: cfg.Logger}
				r.Post("/opportunities", api.handleSubmit)
				r.Post("/confirm", api.handleConfirm)
				r.Get("/status", api.handleStatus)
				r.Post("/breaker/reset", api.handleBreakerReset)
			}

			if cfg.Books != nil {
				books := &bookHandler{books: cfg.Books, logger: cfg.Logger}
				r.Get("/orderbook", books.handleOrderbook)
			}
		})
	}

	// The feed upgrades the connection to a websocket; the upgrade clears
	// the server's deadlines and the hub's ping loop takes over liveness.
	if cfg.TradeFeed != nil {
		r.Get("/ws/trades", cfg.TradeFeed.ServeHTTP)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
