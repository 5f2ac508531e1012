package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_engine_submissions_total",
		Help: "Opportunity submissions by resolved outcome",
	}, []string{"outcome"})

	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_engine_cycle_duration_seconds",
		Help:    "Wall time from probe start to cycle completion, admitted cycles only",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	})

	StateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_engine_state",
		Help: "Controller state (0=idle .. 7=recording_fail)",
	})

	DeadlineBreachesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_engine_deadline_breaches_total",
		Help: "Admitted cycles that overran the cycle deadline",
	})

	RateRefusalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_engine_rate_refusals_total",
		Help: "Admissions refused because the projected cycle exceeded the rate budget",
	})

	FeeTokenActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_engine_fee_token_active",
		Help: "Whether the venue fee-discount token is currently held (1) or not (0)",
	})
)
