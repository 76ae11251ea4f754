// Package metrics exposes the Prometheus gauges and counters the task
// pipeline updates as it runs, following the teacher's pkg/metrics
// convention of package-level collector variables plus a small Timer
// helper for latency histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QueueDepth tracks the current FIFO length of a queue-group key.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restpose_queue_depth",
			Help: "Current number of queued tasks for a collection, by queue group",
		},
		[]string{"group", "collection"},
	)

	// QueueInProgress tracks tasks currently checked out to a worker.
	QueueInProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restpose_queue_in_progress",
			Help: "Current number of in-progress tasks for a collection, by queue group",
		},
		[]string{"group", "collection"},
	)

	// TasksProcessedTotal counts completed tasks by group and outcome.
	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restpose_tasks_processed_total",
			Help: "Total tasks completed, by queue group and outcome",
		},
		[]string{"group", "outcome"},
	)

	// QueuePushResultTotal counts push() results by queue group.
	QueuePushResultTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restpose_queue_push_result_total",
			Help: "Total push() calls by queue group and result",
		},
		[]string{"group", "result"},
	)

	// CommitLatency observes how long a collection's commit() call takes.
	CommitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "restpose_commit_latency_seconds",
			Help:    "Latency of index backend commit() calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CheckpointsReachedTotal counts checkpoints transitioning to reached.
	CheckpointsReachedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restpose_checkpoints_reached_total",
			Help: "Total checkpoints that reached the indexing stage",
		},
	)

	// DroppedLogRecordsTotal counts log records dropped by the background
	// drain for lack of FIFO space.
	DroppedLogRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restpose_dropped_log_records_total",
			Help: "Total log records dropped because the drain FIFO was full",
		},
	)
)

// Registry bundles every collector for one-call registration.
var Registry = []prometheus.Collector{
	QueueDepth,
	QueueInProgress,
	TasksProcessedTotal,
	QueuePushResultTotal,
	CommitLatency,
	CheckpointsReachedTotal,
	DroppedLogRecordsTotal,
}

// MustRegister registers every collector in Registry against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(Registry...)
}

// Timer measures an in-flight operation's duration.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time since NewTimer into hist.
func (t *Timer) ObserveDuration(hist prometheus.Histogram) {
	hist.Observe(time.Since(t.start).Seconds())
}
