package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_cache_hits_total",
		Help: "Total number of metadata cache hits",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_cache_misses_total",
		Help: "Total number of metadata cache misses",
	})

	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_cache_sets_total",
		Help: "Total number of metadata cache sets",
	})

	DeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_cache_deletes_total",
		Help: "Total number of metadata cache deletes",
	})
)
