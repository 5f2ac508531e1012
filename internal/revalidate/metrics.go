package revalidate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_revalidate_checks_total",
		Help: "Revalidation outcomes by result (pass, below_threshold, thin_book, no_liquidity)",
	}, []string{"result"})

	NetProfitPct = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_revalidate_net_profit_pct",
		Help:    "Net profit percent computed at revalidation, fees included",
		Buckets: []float64{-2, -1, -0.5, -0.2, 0, 0.2, 0.5, 0.8, 1, 2, 5},
	})
)
