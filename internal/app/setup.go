package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/internal/circuitbreaker"
	"github.com/mserran2/triarb/internal/engine"
	"github.com/mserran2/triarb/internal/recorder"
	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/cache"
	"github.com/mserran2/triarb/pkg/config"
	"github.com/mserran2/triarb/pkg/healthprobe"
	"github.com/mserran2/triarb/pkg/httpserver"
	"github.com/mserran2/triarb/pkg/wsfeed"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	// Setup metadata cache
	metadataCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	// Setup venue adapter
	adapter := opts.Venue
	if adapter == nil {
		adapter, err = setupVenue(cfg, logger, metadataCache)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup venue: %w", err)
		}
	}

	// Setup circuit breaker
	breaker, err := setupBreaker(cfg, logger, adapter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup breaker: %w", err)
	}

	// Setup recorder and its sinks
	rec, tradeFeed, err := setupRecorder(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup recorder: %w", err)
	}

	healthChecker.SetComponent("sink", true)

	// Setup execution controller
	controller, err := setupController(cfg, logger, adapter, rec, breaker)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup controller: %w", err)
	}

	// Setup HTTP server (needs everything above)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, controller, breaker, adapter, tradeFeed)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		venue:         adapter,
		breaker:       breaker,
		recorder:      rec,
		tradeFeed:     tradeFeed,
		controller:    controller,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (symbol metadata)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupVenue(cfg *config.Config, logger *zap.Logger, metadataCache cache.Cache) (venue.Adapter, error) {
	return venue.New(&venue.Config{
		Exchange:      cfg.Exchange,
		BaseURL:       cfg.VenueBaseURL,
		APIKey:        cfg.VenueAPIKey,
		APISecret:     cfg.VenueAPISecret,
		APIPassphrase: cfg.VenueAPIPassphrase,
		KeyVersion:    cfg.VenueKeyVersion,

		HTTPTimeout:       cfg.VenueHTTPTimeout,
		TimeSyncBufferMS:  cfg.TimeSyncBufferMS,
		OrderPollInterval: cfg.OrderPollInterval,
		OrderPollTimeout:  cfg.OrderPollTimeout,

		Fees: venue.FeeSchedule{
			PerLegFeePct: cfg.PerLegFeePct,
			FeeToken:     cfg.FeeToken,
			FeeDiscount:  cfg.FeeDiscount,
		},

		MetadataCache: metadataCache,
		Logger:        logger,
	})
}

func setupBreaker(cfg *config.Config, logger *zap.Logger, funds circuitbreaker.FundsSource) (*circuitbreaker.Breaker, error) {
	if !cfg.BreakerEnabled {
		logger.Info("circuit-breaker-disabled",
			zap.String("note", "admission is never halted on account health"))
		return nil, nil
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.BreakerCheckInterval,
		TradeMultiplier: cfg.BreakerTradeMultiplier,
		MinAbsolute:     cfg.BreakerMinAbsolute,
		HysteresisRatio: cfg.BreakerHysteresisRatio,
		MaxFailureRun:   cfg.MaxConsecutiveFailures,
		Funds:           funds,
		Currency:        cfg.FundingCurrency,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create circuit breaker: %w", err)
	}

	logger.Info("circuit-breaker-enabled",
		zap.Duration("check_interval", cfg.BreakerCheckInterval),
		zap.Float64("trade_multiplier", cfg.BreakerTradeMultiplier),
		zap.Float64("min_absolute", cfg.BreakerMinAbsolute),
		zap.Float64("hysteresis_ratio", cfg.BreakerHysteresisRatio))

	return breaker, nil
}

// setupRecorder assembles the sink stack: console always, postgres when
// configured, and the websocket feed when enabled. The hub is returned
// separately so the HTTP server can mount it.
func setupRecorder(cfg *config.Config, logger *zap.Logger) (*recorder.Recorder, *wsfeed.Hub, error) {
	sinks := make([]recorder.Sink, 0, 3)
	sinks = append(sinks, recorder.NewConsoleSink(logger))

	if cfg.SinkMode == "postgres" {
		pg, err := recorder.NewPostgresSink(&recorder.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres sink: %w", err)
		}

		sinks = append(sinks, pg)
	}

	var tradeFeed *wsfeed.Hub

	if cfg.TradeFeedEnabled {
		tradeFeed = wsfeed.New(wsfeed.Config{Logger: logger})
		sinks = append(sinks, tradeFeed)
	}

	var sink recorder.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = recorder.NewMultiSink(logger, sinks...)
	}

	return recorder.New(&recorder.Config{Sink: sink, Logger: logger}), tradeFeed, nil
}

func setupController(
	cfg *config.Config,
	logger *zap.Logger,
	adapter venue.Adapter,
	rec *recorder.Recorder,
	breaker *circuitbreaker.Breaker,
) (*engine.Controller, error) {
	engCfg := &engine.Config{
		Venue:    adapter,
		Recorder: rec,

		FundingCurrency: cfg.FundingCurrency,
		FundingCap:      cfg.FundingCap,
		ThresholdPct:    cfg.RevalidationThresholdPct,

		OrderbookDepth: cfg.OrderbookDepth,
		ParallelProbe:  cfg.ParallelProbe,
		ProbeDeadline:  cfg.ProbeDeadline,
		CycleDeadline:  cfg.CycleDeadline,

		RequireManualConfirm: cfg.RequireManualConfirm,
		ConfirmTimeout:       cfg.ConfirmTimeout,

		RateBudgetPerMin: cfg.RateBudgetPerMin,
		FeeTokenRefresh:  cfg.FeeTokenRefresh,

		Logger: logger,
	}

	// A nil *Breaker must not become a non-nil Gate interface.
	if breaker != nil {
		engCfg.Gate = breaker
	}

	controller, err := engine.New(engCfg)
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	return controller, nil
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	controller *engine.Controller,
	breaker *circuitbreaker.Breaker,
	adapter venue.Adapter,
	tradeFeed *wsfeed.Hub,
) *httpserver.Server {
	serverCfg := &httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Executor:      controller,
		Books:         adapter,
	}

	if breaker != nil {
		serverCfg.Breaker = breaker
	}

	if tradeFeed != nil {
		serverCfg.TradeFeed = tradeFeed
	}

	return httpserver.New(serverCfg)
}
