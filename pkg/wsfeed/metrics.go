package wsfeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	ClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_wsfeed_clients",
		Help: "Connected trade-feed clients",
	})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_wsfeed_broadcasts_total",
		Help: "Trade record frames queued for delivery",
	})

	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_wsfeed_dropped_total",
		Help: "Frames dropped instead of applying backpressure",
	}, []string{"reason"})
)
