// Package metrics holds the Prometheus collectors for the ingest pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scribe",
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Total ingest requests, by mode (commit or preview) and status.",
	}, []string{"mode", "status"})

	formatsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scribe",
		Subsystem: "ingest",
		Name:      "formats_total",
		Help:      "Total conversations parsed, by resolved format.",
	}, []string{"format"})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scribe",
		Subsystem: "ingest",
		Name:      "turns_total",
		Help:      "Total turns persisted, by source format.",
	}, []string{"source"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scribe",
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Total ingest failures, by kind (detection, shape, parse, persistence).",
	}, []string{"kind"})

	durationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scribe",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Ingest duration in seconds, by mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	watcherFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scribe",
		Subsystem: "watcher",
		Name:      "files_total",
		Help:      "Total inbox files handled, by status.",
	}, []string{"status"})
)

// Mode labels.
const (
	ModeCommit  = "commit"
	ModePreview = "preview"
)

// KindPersistence labels failures raised by the sink.
const KindPersistence = "persistence"

// ObserveSuccess records a successful ingest or preview.
func ObserveSuccess(mode, format string, turns int, elapsed time.Duration) {
	ingestRequestsTotal.WithLabelValues(mode, "ok").Inc()
	formatsDetectedTotal.WithLabelValues(format).Inc()
	if mode == ModeCommit {
		turnsTotal.WithLabelValues(format).Add(float64(turns))
	}
	durationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveFailure records a failed ingest or preview.
func ObserveFailure(mode, kind string, elapsed time.Duration) {
	ingestRequestsTotal.WithLabelValues(mode, "error").Inc()
	failuresTotal.WithLabelValues(kind).Inc()
	durationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// WatcherFile records an inbox file outcome ("ingested", "failed", "skipped").
func WatcherFile(status string) {
	watcherFilesTotal.WithLabelValues(status).Inc()
}
