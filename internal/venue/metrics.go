package venue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks venue REST calls by endpoint and result.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triarb_venue_requests_total",
			Help: "Total number of venue REST requests",
		},
		[]string{"endpoint", "result"},
	)

	// RequestDurationSeconds tracks venue REST latency per endpoint.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triarb_venue_request_duration_seconds",
			Help:    "Duration of venue REST requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	// OrdersTotal tracks market orders by side and result.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triarb_venue_orders_total",
			Help: "Total number of market orders submitted",
		},
		[]string{"side", "result"},
	)

	// VenueErrorsTotal tracks venue API errors by raw venue code.
	VenueErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triarb_venue_errors_total",
			Help: "Total number of venue API errors by venue error code",
		},
		[]string{"code"},
	)

	// TimeSkewMS tracks the last measured server/client clock offset.
	TimeSkewMS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_venue_time_skew_ms",
		Help: "Last measured venue server/client clock offset in milliseconds",
	})

	// MetadataCacheHitsTotal tracks symbol metadata cache hits.
	MetadataCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_venue_metadata_cache_hits_total",
		Help: "Total number of symbol metadata cache hits",
	})

	// MetadataCacheMissesTotal tracks symbol metadata cache misses.
	MetadataCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_venue_metadata_cache_misses_total",
		Help: "Total number of symbol metadata cache misses",
	})
)

func observeRequest(endpoint string, start time.Time, err error) {
	RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}

	RequestsTotal.WithLabelValues(endpoint, result).Inc()
}
