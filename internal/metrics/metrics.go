// Package metrics registers the Prometheus collectors the Task Service and
// Pipeline Runner update as tasks move through the worker pool and the
// four-stage pipeline (SPEC_FULL's domain-stack wiring for
// prometheus/client_golang).
//
// Grounded on
// _examples/tombee-conductor/internal/action/file/metrics.go's
// promauto-registered package-level collector style (a histogram vec for
// durations, counters for totals, gauges for live state) and
// _examples/tombee-conductor/internal/controller/filewatcher/metrics.go's
// use of a gauge for "currently active" counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveTasks is the number of tasks currently occupying a worker-pool
	// slot (spec §4.1's bounded worker pool).
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ojoagent_active_tasks",
		Help: "Number of tasks currently executing in the worker pool",
	})

	// QueueDepth is the number of tasks created but not yet dispatched.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ojoagent_queue_depth",
		Help: "Number of tasks waiting for a worker-pool slot",
	})

	// StageDuration records how long each pipeline stage took, labeled by
	// stage name and outcome ("ok"/"failed"/"cancelled").
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ojoagent_stage_duration_seconds",
			Help:    "Duration of one pipeline stage (fetch/gen/upload/solve)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	// TasksTotal counts tasks reaching a terminal state, labeled by outcome.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ojoagent_tasks_total",
			Help: "Total tasks reaching a terminal state",
		},
		[]string{"outcome"},
	)

	// AdapterRetries counts adapter-call retries, labeled by adapter name.
	AdapterRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ojoagent_adapter_retries_total",
			Help: "Total adapter call retries",
		},
		[]string{"adapter"},
	)
)

// ObserveStage records one stage's wall-clock duration and outcome.
func ObserveStage(stage, outcome string, d time.Duration) {
	StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// RecordTaskTerminal increments the terminal-outcome counter.
func RecordTaskTerminal(outcome string) {
	TasksTotal.WithLabelValues(outcome).Inc()
}
