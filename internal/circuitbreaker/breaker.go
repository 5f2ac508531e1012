// Package circuitbreaker halts trade admission when the account looks unsafe
// to trade: funding balance too low for the configured trade size, a cycle
// left the account desynchronized, or failures are streaking. Balance halts
// clear themselves with hysteresis; desync and streak halts latch until an
// operator resets them.
package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FundsSource reports the available balance of one currency. The venue
// adapter and test mocks implement it.
type FundsSource interface {
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
}

const tradeWindow = 20

// Breaker gates execution on account health. Reads are lock-free so the
// admission path can consult it per opportunity.
type Breaker struct {
	balanceOK atomic.Bool // funding balance above threshold
	latched   atomic.Bool // operator-reset halts

	// Configuration
	checkInterval   time.Duration
	funds           FundsSource
	currency        string // funding currency monitored
	logger          *zap.Logger
	tradeMultiplier float64 // multiplier for avg trade size
	minAbsolute     float64 // absolute minimum balance
	hysteresisRatio float64 // re-enable at ratio * disable threshold
	maxFailureRun   int     // consecutive failures before latching

	// Protected by mutex
	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentTrades     []float64 // rolling window of funding amounts
	disableThreshold float64
	enableThreshold  float64
	failureRun       int
	latchReason      string
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
	MaxFailureRun   int
	Funds           FundsSource
	Currency        string
	Logger          *zap.Logger
}

// Status holds current circuit breaker status for debugging and HTTP
// endpoints.
type Status struct {
	Enabled          bool      `json:"enabled"`
	Latched          bool      `json:"latched"`
	LatchReason      string    `json:"latch_reason,omitempty"`
	FailureRun       int       `json:"failure_run"`
	LastBalance      float64   `json:"last_balance"`
	LastCheck        time.Time `json:"last_check"`
	DisableThreshold float64   `json:"disable_threshold"`
	EnableThreshold  float64   `json:"enable_threshold"`
	AvgTradeSize     float64   `json:"avg_trade_size"`
	RecentTradeCount int       `json:"recent_trade_count"`
}

// New creates a circuit breaker.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Funds == nil {
		return nil, fmt.Errorf("funds source cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if cfg.Currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}

	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}

	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}

	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}

	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	if cfg.MaxFailureRun <= 0 {
		return nil, fmt.Errorf("max failure run must be positive")
	}

	b := &Breaker{
		checkInterval:    cfg.CheckInterval,
		funds:            cfg.Funds,
		currency:         cfg.Currency,
		logger:           cfg.Logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		maxFailureRun:    cfg.MaxFailureRun,
		recentTrades:     make([]float64, 0, tradeWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}

	b.balanceOK.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)
	BreakerFailureRun.Set(0)

	return b, nil
}

// IsEnabled reports whether trades may be admitted. Lock-free, safe on hot
// paths.
func (b *Breaker) IsEnabled() bool {
	return b.balanceOK.Load() && !b.latched.Load()
}

// RecordSuccess feeds a completed cycle's funding size into the rolling
// window and clears the failure run.
func (b *Breaker) RecordSuccess(fundingSize float64) {
	if fundingSize <= 0 {
		b.logger.Warn("invalid-funding-size", zap.Float64("size", fundingSize))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureRun = 0
	BreakerFailureRun.Set(0)

	b.recentTrades = append(b.recentTrades, fundingSize)
	if len(b.recentTrades) > tradeWindow {
		b.recentTrades = b.recentTrades[1:]
	}

	sum := 0.0
	for _, size := range b.recentTrades {
		sum += size
	}

	avgTradeSize := sum / float64(len(b.recentTrades))

	b.disableThreshold = math.Max(avgTradeSize*b.tradeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	BreakerAvgTradeSize.Set(avgTradeSize)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("thresholds-updated",
		zap.Float64("avg_trade_size", avgTradeSize),
		zap.Int("trade_count", len(b.recentTrades)),
		zap.Float64("disable_threshold", b.disableThreshold),
		zap.Float64("enable_threshold", b.enableThreshold))
}

// RecordFailure counts a failed cycle. A desynchronized failure latches
// immediately; otherwise the breaker latches when the consecutive failure
// run reaches the configured maximum.
func (b *Breaker) RecordFailure(desynchronized bool) {
	b.mu.Lock()
	b.failureRun++
	run := b.failureRun
	b.mu.Unlock()

	BreakerFailureRun.Set(float64(run))

	if desynchronized {
		b.latch("desynchronized account")
		return
	}

	if run >= b.maxFailureRun {
		b.latch(fmt.Sprintf("%d consecutive failures", run))
	}
}

// Reset clears a latched halt. Operator action: call it only after the
// account has been reconciled.
func (b *Breaker) Reset() {
	if !b.latched.Swap(false) {
		return
	}

	b.mu.Lock()
	b.failureRun = 0
	reason := b.latchReason
	b.latchReason = ""
	b.mu.Unlock()

	BreakerLatched.Set(0)
	BreakerFailureRun.Set(0)
	BreakerStateChanges.Inc()
	b.updateEnabledMetric()

	b.logger.Info("breaker-reset", zap.String("cleared_reason", reason))
}

func (b *Breaker) latch(reason string) {
	if b.latched.Swap(true) {
		return
	}

	b.mu.Lock()
	b.latchReason = reason
	b.mu.Unlock()

	BreakerLatched.Set(1)
	BreakerStateChanges.Inc()
	b.updateEnabledMetric()

	b.logger.Error("breaker-latched", zap.String("reason", reason))
}

// CheckBalance fetches the funding balance and moves the balance gate with
// hysteresis.
func (b *Breaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	available, err := b.funds.Balance(ctx, b.currency)
	if err != nil {
		b.logger.Error("failed-to-check-balance",
			zap.Error(err),
			zap.String("currency", b.currency))

		return fmt.Errorf("fetch balance: %w", err)
	}

	balance := available.InexactFloat64()

	b.mu.RLock()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.RUnlock()

	currentlyOK := b.balanceOK.Load()

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	b.mu.Unlock()

	BreakerBalance.Set(balance)

	shouldDisable := currentlyOK && balance < disableThreshold
	shouldEnable := !currentlyOK && balance >= enableThreshold

	if shouldDisable {
		b.balanceOK.Store(false)
		BreakerStateChanges.Inc()
		b.updateEnabledMetric()

		b.logger.Warn("breaker-balance-low",
			zap.Float64("balance", balance),
			zap.String("currency", b.currency),
			zap.Float64("disable_threshold", disableThreshold),
			zap.Float64("enable_threshold", enableThreshold))
	} else if shouldEnable {
		b.balanceOK.Store(true)
		BreakerStateChanges.Inc()
		b.updateEnabledMetric()

		b.logger.Info("breaker-balance-recovered",
			zap.Float64("balance", balance),
			zap.String("currency", b.currency),
			zap.Float64("disable_threshold", disableThreshold),
			zap.Float64("enable_threshold", enableThreshold))
	} else {
		b.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", b.IsEnabled()))
	}

	return nil
}

// Start checks the balance once, then begins the background monitoring loop.
// The loop runs until the context is cancelled.
func (b *Breaker) Start(ctx context.Context) {
	b.logger.Info("breaker-started",
		zap.Duration("check_interval", b.checkInterval),
		zap.String("currency", b.currency),
		zap.Float64("min_absolute", b.minAbsolute),
		zap.Int("max_failure_run", b.maxFailureRun))

	if err := b.CheckBalance(ctx); err != nil {
		b.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *Breaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("breaker-stopped")
			return
		case <-ticker.C:
			if err := b.CheckBalance(ctx); err != nil {
				b.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns the current breaker state.
func (b *Breaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	avg := 0.0

	if len(b.recentTrades) > 0 {
		sum := 0.0
		for _, size := range b.recentTrades {
			sum += size
		}

		avg = sum / float64(len(b.recentTrades))
	}

	return Status{
		Enabled:          b.balanceOK.Load() && !b.latched.Load(),
		Latched:          b.latched.Load(),
		LatchReason:      b.latchReason,
		FailureRun:       b.failureRun,
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeSize:     avg,
		RecentTradeCount: len(b.recentTrades),
	}
}

func (b *Breaker) updateEnabledMetric() {
	if b.IsEnabled() {
		BreakerEnabled.Set(1)
	} else {
		BreakerEnabled.Set(0)
	}
}
