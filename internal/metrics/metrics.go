// Package metrics provides Prometheus metrics collection for repackaging.
//
// The HTTP service exposes them on /metrics; one-shot CLI runs can write
// them to a node-exporter textfile with WriteTextfile.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repackage_runs_total",
			Help: "Total number of repackaging runs by result",
		},
		[]string{"result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repackage_duration_seconds",
			Help:    "Repackaging duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repackage_errors_total",
			Help: "Total number of failed runs by error kind",
		},
		[]string{"kind"},
	)

	// Entry metrics
	EntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repackage_entries_total",
			Help: "Total number of archive entries processed by route",
		},
		[]string{"route"},
	)

	ReferencesRewritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repackage_references_rewritten_total",
			Help: "Total number of crate path references rewritten in source files",
		},
	)

	// Upstream metrics
	UpstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repackage_upstream_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"ecosystem"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repackage_upstream_errors_total",
			Help: "Total number of upstream fetch errors by type",
		},
		[]string{"ecosystem", "error_type"},
	)

	// Storage metrics
	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repackage_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repackage_storage_errors_total",
			Help: "Total number of storage errors by operation",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		Errors,
		EntriesTotal,
		ReferencesRewritten,
		UpstreamFetchDuration,
		UpstreamErrors,
		StorageOperationDuration,
		StorageErrors,
	)
}

// Handler returns an HTTP handler for the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format read by the node exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// RecordRun tracks the outcome and duration of one repackaging run.
// kind is empty for a successful run.
func RecordRun(kind string, duration time.Duration) {
	RunDuration.Observe(duration.Seconds())
	if kind == "" {
		RunsTotal.WithLabelValues("success").Inc()
		return
	}
	RunsTotal.WithLabelValues("failure").Inc()
	Errors.WithLabelValues(kind).Inc()
}

// RecordEntry increments the counter for an entry sent down route.
func RecordEntry(route string) {
	EntriesTotal.WithLabelValues(route).Inc()
}

// RecordRewrites adds n rewritten references.
func RecordRewrites(n int) {
	ReferencesRewritten.Add(float64(n))
}

// RecordUpstreamFetch tracks upstream fetch duration.
func RecordUpstreamFetch(ecosystem string, duration time.Duration) {
	UpstreamFetchDuration.WithLabelValues(ecosystem).Observe(duration.Seconds())
}

// RecordUpstreamError increments upstream error counter.
func RecordUpstreamError(ecosystem, errorType string) {
	UpstreamErrors.WithLabelValues(ecosystem, errorType).Inc()
}

// RecordStorageOperation tracks storage operation duration.
func RecordStorageOperation(operation string, duration time.Duration) {
	StorageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStorageError increments storage error counter.
func RecordStorageError(operation string) {
	StorageErrors.WithLabelValues(operation).Inc()
}
