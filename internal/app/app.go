// Package app wires configuration, the venue adapter, the recorder stack,
// the circuit breaker, the execution controller and the HTTP surface into one
// process.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/internal/circuitbreaker"
	"github.com/mserran2/triarb/internal/engine"
	"github.com/mserran2/triarb/internal/recorder"
	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/config"
	"github.com/mserran2/triarb/pkg/healthprobe"
	"github.com/mserran2/triarb/pkg/httpserver"
	"github.com/mserran2/triarb/pkg/wsfeed"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	venue         venue.Adapter
	breaker       *circuitbreaker.Breaker
	recorder      *recorder.Recorder
	tradeFeed     *wsfeed.Hub
	controller    *engine.Controller
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Venue overrides the adapter built from configuration. Tests inject
	// mocks here; nil means dial the configured exchange.
	Venue venue.Adapter
}
