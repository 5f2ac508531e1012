package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_recorder_records_total",
		Help: "Trade records emitted by status",
	}, []string{"status"})

	EmitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_recorder_emit_failures_total",
		Help: "Records the sink failed to persist",
	})
)
