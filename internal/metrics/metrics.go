// Package metrics holds the process-wide Prometheus collectors for job
// execution. They live on their own registry so a batch run can be dumped
// to a textfile for node_exporter without the Go runtime collectors.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the registry every tubekit collector is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	jobsFinishedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tubekit_jobs_finished_total",
		Help: "Jobs that reached a terminal state, by job kind and outcome",
	}, []string{"kind", "outcome"})

	downloadRetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "tubekit_download_retries_total",
		Help: "Download attempts repeated after an empty or failed result",
	})

	softwareFallbacksTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tubekit_software_fallbacks_total",
		Help: "Transcodes retried with a software encoder after a hardware encoder failed",
	}, []string{"kind"})

	activeJobs = factory.NewGauge(prometheus.GaugeOpts{
		Name: "tubekit_active_jobs",
		Help: "Jobs currently holding a worker slot",
	})

	batchFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tubekit_batch_failures_total",
		Help: "Failed batch jobs by failure category",
	}, []string{"category"})

	jobDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tubekit_job_duration_seconds",
		Help:    "Wall time of finished jobs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"kind"})
)

// JobFinished records a terminal job outcome and its duration.
func JobFinished(kind, outcome string, seconds float64) {
	k := normalizeKind(kind)
	jobsFinishedTotal.WithLabelValues(k, normalizeOutcome(outcome)).Inc()
	if seconds >= 0 {
		jobDurationSeconds.WithLabelValues(k).Observe(seconds)
	}
}

// DownloadRetried counts one repeated download attempt.
func DownloadRetried() { downloadRetriesTotal.Inc() }

// SoftwareFallback counts one hardware to software encoder fallback.
func SoftwareFallback(kind string) {
	softwareFallbacksTotal.WithLabelValues(normalizeKind(kind)).Inc()
}

// JobStarted and JobStopped track the active jobs gauge.
func JobStarted() { activeJobs.Inc() }
func JobStopped() { activeJobs.Dec() }

// BatchFailure counts one failed job in a batch by its category.
func BatchFailure(category string) {
	batchFailuresTotal.WithLabelValues(normalizeCategory(category)).Inc()
}

// WriteTextfile dumps the registry in the text exposition format. The file
// is written to a temp name and renamed into place.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func normalizeKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "download", "convert":
		return k
	default:
		return "unknown"
	}
}

func normalizeOutcome(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "done", "cancelled", "failed":
		return o
	default:
		return "unknown"
	}
}

func normalizeCategory(category string) string {
	switch c := strings.ToLower(strings.TrimSpace(category)); c {
	case "unauthorized_access", "directory_not_found", "not_enough_space", "other":
		return c
	default:
		return "other"
	}
}
