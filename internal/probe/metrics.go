package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_probe_probes_total",
		Help: "Probe outcomes by result (ok, stale, no_liquidity)",
	}, []string{"result"})

	ProbeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_probe_duration_seconds",
		Help:    "Wall time to fetch all three cycle orderbooks",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
	})

	InvertedRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_probe_inverted_retries_total",
		Help: "Middle-pair fetches retried with inverted orientation",
	})
)
