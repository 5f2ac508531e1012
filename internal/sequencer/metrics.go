package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	LegsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_sequencer_legs_total",
		Help: "Leg outcomes by leg number and result (ok, error, zero_fill)",
	}, []string{"leg", "result"})

	LegDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triarb_sequencer_leg_duration_seconds",
		Help:    "Wall time per executed leg",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"leg"})

	SkewRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_sequencer_skew_retries_total",
		Help: "First-leg retries after a clock-skew rejection and resync",
	})
)
