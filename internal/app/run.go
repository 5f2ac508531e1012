package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("exchange", a.cfg.Exchange),
		zap.String("funding-currency", a.cfg.FundingCurrency),
		zap.String("funding-cap", a.cfg.FundingCap.String()),
		zap.String("log-level", a.cfg.LogLevel))

	// Start all components
	err := a.startComponents()
	if err != nil {
		return err
	}

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Bool("manual-confirm", a.cfg.RequireManualConfirm),
		zap.String("sink-mode", a.cfg.SinkMode))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Prove venue connectivity and seed the signing clock before any
	// opportunity can be admitted.
	err := a.checkVenue()
	if err != nil {
		return fmt.Errorf("venue check: %w", err)
	}

	// Start circuit breaker monitoring
	a.startBreaker()

	// Start the controller's fee-token tracking
	a.controller.Start(a.ctx)

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// checkVenue syncs the venue clock once at boot. A venue that cannot serve a
// time sync cannot serve signed orders either, so failure aborts startup.
func (a *App) checkVenue() error {
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()

	drift, err := a.venue.SyncTime(ctx)
	if err != nil {
		a.healthChecker.SetComponent("venue", false)
		return err
	}

	a.healthChecker.SetComponent("venue", true)

	a.logger.Info("venue-reachable",
		zap.String("venue", a.venue.Name()),
		zap.Int64("clock-drift-ms", drift))

	return nil
}

func (a *App) startBreaker() {
	if a.breaker == nil {
		return
	}

	a.breaker.Start(a.ctx)
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
