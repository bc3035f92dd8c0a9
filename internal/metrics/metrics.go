// Package metrics exposes the daemon's prometheus instruments. All
// instruments register on the default registry and are served by the
// /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts accepted bundle jobs, including those that
	// later fail.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundler_jobs_submitted_total",
		Help: "Bundle jobs accepted for processing.",
	})

	// JobsInvalid counts submissions rejected during validation.
	JobsInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundler_jobs_invalid_total",
		Help: "Bundle jobs rejected as invalid requests.",
	})

	// ArchivesCompleted counts archives that reached a terminal state,
	// labelled with that state.
	ArchivesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_archives_completed_total",
		Help: "Archives finished by workers, by terminal state.",
	}, []string{"state"})

	// EntriesBundled counts source files written into archives.
	EntriesBundled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundler_entries_bundled_total",
		Help: "Source files written into archives.",
	})

	// BytesBundled counts uncompressed source bytes written into
	// archives.
	BytesBundled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundler_bytes_bundled_total",
		Help: "Uncompressed source bytes written into archives.",
	})

	// WorkersActive tracks archive workers currently running.
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bundler_workers_active",
		Help: "Archive workers currently running.",
	})

	// RequestDuration observes HTTP handler latency per route and
	// status code.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bundler_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "code"})
)
