package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop intake first. Shutdown waits for in-flight requests, so a cycle
	// running inside a request finishes and records before we proceed.
	err := a.shutdownHTTPServer(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close the recorder; it owns every sink, including the trade feed hub.
	err = a.closeRecorder()
	if err != nil {
		a.logger.Error("recorder-close-error", zap.Error(err))
	}

	// Close venue adapter
	err = a.closeVenue()
	if err != nil {
		a.logger.Error("venue-close-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}

func (a *App) shutdownHTTPServer(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

func (a *App) closeRecorder() error {
	return a.recorder.Close()
}

func (a *App) closeVenue() error {
	return a.venue.Close()
}
