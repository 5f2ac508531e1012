package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	// BreakerEnabled indicates whether the breaker allows trade admission.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_enabled",
		Help: "Whether the breaker allows trade admission (1=enabled, 0=halted)",
	})

	// BreakerLatched indicates an operator-reset halt is in effect.
	BreakerLatched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_latched",
		Help: "Whether a desync or failure-run halt is latched (1=latched)",
	})

	// BreakerBalance tracks the last checked funding balance.
	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_balance",
		Help: "Last checked funding currency balance on the trade account",
	})

	// BreakerDisableThreshold tracks the current threshold for halting on balance.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_disable_threshold",
		Help: "Funding balance below which admission halts (dynamically calculated)",
	})

	// BreakerEnableThreshold tracks the current threshold for resuming on balance.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_enable_threshold",
		Help: "Funding balance above which admission resumes (with hysteresis)",
	})

	// BreakerAvgTradeSize tracks the rolling average funding size.
	BreakerAvgTradeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_avg_trade_size",
		Help: "Rolling average funding size from recent successful cycles",
	})

	// BreakerFailureRun tracks the current consecutive failure count.
	BreakerFailureRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_breaker_failure_run",
		Help: "Consecutive failed cycles since the last success or reset",
	})

	// BreakerStateChanges counts enabled/halted transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_breaker_state_changes_total",
		Help: "Total number of times the breaker changed state",
	})

	// BreakerCheckDuration tracks the time taken to check the balance.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_breaker_check_duration_seconds",
		Help:    "Time taken to check the funding balance",
		Buckets: prometheus.DefBuckets,
	})
)
