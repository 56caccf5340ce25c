package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReportsCreatedTotal counts committed reports by report type.
	ReportsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "triage",
		Name:      "reports_created_total",
		Help:      "Total number of reports committed to the store, labeled by report type.",
	}, []string{"type"})

	// ClassificationsTotal counts classifications by priority and forwarding decision.
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "triage",
		Name:      "classifications_total",
		Help:      "Total number of classified reports, labeled by priority and forward flag.",
	}, []string{"priority", "forward"})

	// UrgentAlertsTotal counts incidents whose score crossed the urgent threshold.
	UrgentAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "triage",
		Name:      "urgent_alerts_total",
		Help:      "Total number of incidents that triggered an urgent alert.",
	})

	// SecondaryWriteFailuresTotal counts performance log rows that could not be written.
	SecondaryWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "store",
		Name:      "secondary_write_failures_total",
		Help:      "Total number of failed performance log inserts (the report itself was committed).",
	})

	// DispatchAttemptsTotal counts send attempts per channel and outcome.
	DispatchAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "dispatch",
		Name:      "attempts_total",
		Help:      "Total number of notification send attempts, labeled by channel and result.",
	}, []string{"channel", "result"})

	// DispatchQueueDroppedTotal counts tasks dropped because the queue was full or closed.
	DispatchQueueDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "dispatch",
		Name:      "queue_dropped_total",
		Help:      "Total number of background tasks dropped because the worker queue was full or stopped.",
	})

	// WorkerInFlight is the current number of background tasks being executed.
	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "matatu",
		Subsystem: "dispatch",
		Name:      "worker_in_flight",
		Help:      "Current number of background tasks being processed by worker goroutines.",
	})

	// TaskDurationSeconds is the time spent per background task.
	TaskDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "matatu",
		Subsystem: "dispatch",
		Name:      "task_duration_seconds",
		Help:      "Time to run one background task, labeled by task name and result.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"task", "result"})

	// ForwardTotal counts regulator forwarding outcomes.
	ForwardTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matatu",
		Subsystem: "escalation",
		Name:      "forward_total",
		Help:      "Total number of regulator forwarding decisions, labeled by result (forwarded, skipped, failed, mock).",
	}, []string{"result"})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsCreatedTotal,
			ClassificationsTotal,
			UrgentAlertsTotal,
			SecondaryWriteFailuresTotal,
			DispatchAttemptsTotal,
			DispatchQueueDroppedTotal,
			WorkerInFlight,
			TaskDurationSeconds,
			ForwardTotal,
		)
	})
}

// BoolLabel renders a boolean as a label value
func BoolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
