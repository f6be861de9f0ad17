package ledger

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchledger_operations_total",
			Help: "Total number of ledger operations by outcome",
		},
		[]string{"op", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 0.1ms to ~1.6s
		},
		[]string{"op"},
	)
)

// observeOp records one operation's outcome and duration.
func observeOp(op string, start time.Time, clock clockwork.Clock, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(clock.Since(start).Seconds())
}
