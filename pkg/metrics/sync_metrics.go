// Package metrics provides Prometheus metrics for the task console.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Task list synchronization metrics
var (
	// refreshTotal records completed task list refreshes.
	// Labels:
	//   - trigger: What issued the refresh ("startup", "timer", "visibility", "manual")
	//   - outcome: "ok", "stale", "transport", "application", "decode", "network"
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaconsole_task_refreshes_total",
			Help: "Total number of task list refreshes by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// fetchDuration records the latency of GET /tasks round trips.
	// Buckets: 50ms .. 30s
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vaconsole_task_fetch_duration_seconds",
			Help:    "Duration of task list fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// skippedTicksTotal counts timer ticks dropped while the surface was hidden.
	skippedTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vaconsole_refresh_ticks_skipped_total",
			Help: "Total number of refresh ticks skipped because the view was hidden",
		},
	)

	// cachedTasks is the size of the currently applied task collection.
	cachedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaconsole_cached_tasks",
			Help: "Number of tasks in the currently displayed collection",
		},
	)

	// uploadsTotal records upload submissions.
	// Labels:
	//   - outcome: "ok", "invalid", "transport", "application", "decode", "network"
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaconsole_uploads_total",
			Help: "Total number of video uploads by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(refreshTotal)
	prometheus.MustRegister(fetchDuration)
	prometheus.MustRegister(skippedTicksTotal)
	prometheus.MustRegister(cachedTasks)
	prometheus.MustRegister(uploadsTotal)
}

// RecordRefresh records one finished refresh.
func RecordRefresh(trigger, outcome string) {
	refreshTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordFetchDuration records the duration of one task list fetch.
func RecordFetchDuration(durationSeconds float64) {
	fetchDuration.Observe(durationSeconds)
}

// RecordSkippedTick records a timer tick that was skipped while hidden.
func RecordSkippedTick() {
	skippedTicksTotal.Inc()
}

// SetCachedTasks sets the size of the applied task collection.
func SetCachedTasks(n int) {
	cachedTasks.Set(float64(n))
}

// RecordUpload records an upload submission outcome.
func RecordUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}
