package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_tokens_total",
			Help: "Current token count per queue and status",
		},
		[]string{"queue_id", "status"},
	)

	pendingEmergencyTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_pending_emergency_tokens_total",
			Help: "Emergency tokens awaiting approval per queue",
		},
		[]string{"queue_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "queue_id", "status"},
	)

	estimatedWaitTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_estimated_wait_minutes",
			Help: "Estimated wait time per queue in minutes",
		},
		[]string{"queue_id"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_sweep_duration_seconds",
			Help:    "Duration of background sweeps",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"task"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackOperation counts one engine operation outcome.
func (m *Monitor) TrackOperation(operation, queueID, status string) {
	if m == nil {
		return
	}
	queueOperations.WithLabelValues(operation, queueID, status).Inc()
}

// TrackQueueDepth records current token counts for a queue snapshot.
func (m *Monitor) TrackQueueDepth(queueID string, waiting, inService, pending int) {
	if m == nil {
		return
	}
	queueTokens.WithLabelValues(queueID, "waiting").Set(float64(waiting))
	queueTokens.WithLabelValues(queueID, "in_service").Set(float64(inService))
	pendingEmergencyTokens.WithLabelValues(queueID).Set(float64(pending))
}

// TrackWaitTime records the recalculated wait estimate.
func (m *Monitor) TrackWaitTime(queueID string, minutes int) {
	if m == nil {
		return
	}
	estimatedWaitTime.WithLabelValues(queueID).Set(float64(minutes))
}

// TrackSweep records how long one background sweep took.
func (m *Monitor) TrackSweep(task string, duration time.Duration) {
	if m == nil {
		return
	}
	sweepDuration.WithLabelValues(task).Observe(duration.Seconds())
}
