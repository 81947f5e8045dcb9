// Package metrics records duplicate detection and resolution metrics with
// Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ersonp/resource-directory/internal/domain/entities"
)

// Merge outcome label values.
const (
	OutcomeMerged  = "merged"
	OutcomePreview = "preview"
	OutcomeFailed  = "failed"
)

// Recorder implements ports.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	detections        prometheus.Counter
	candidates        *prometheus.GaugeVec
	detectionDuration prometheus.Histogram
	merges            *prometheus.CounterVec
	archived          prometheus.Counter
	archiveFailures   prometheus.Counter
}

// NewRecorder creates a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_detections_total",
			Help: "Number of duplicate detection passes.",
		}),
		candidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "directory_duplicate_candidates",
			Help: "Candidate groups or pairs found by the last detection pass, by method.",
		}, []string{"method"}),
		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "directory_detection_duration_seconds",
			Help:    "Duration of duplicate detection passes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_merges_total",
			Help: "Merge attempts by outcome.",
		}, []string{"outcome"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_records_archived_total",
			Help: "Records archived without a merge.",
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_archive_failures_total",
			Help: "Archive calls that failed and rolled back.",
		}),
	}
	r.registry.MustRegister(
		r.detections,
		r.candidates,
		r.detectionDuration,
		r.merges,
		r.archived,
		r.archiveFailures,
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveDetection records one detection pass.
func (r *Recorder) ObserveDetection(report *entities.DuplicateReport, elapsed time.Duration) {
	r.detections.Inc()
	r.detectionDuration.Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	for _, m := range entities.DetectionMethods {
		r.candidates.WithLabelValues(string(m)).Set(float64(report.Counts.For(m)))
	}
}

// ObserveMerge records one merge attempt.
func (r *Recorder) ObserveMerge(_ *entities.MergeResult, dryRun bool, err error) {
	switch {
	case err != nil:
		r.merges.WithLabelValues(OutcomeFailed).Inc()
	case dryRun:
		r.merges.WithLabelValues(OutcomePreview).Inc()
	default:
		r.merges.WithLabelValues(OutcomeMerged).Inc()
	}
}

// ObserveArchive records one archive call.
func (r *Recorder) ObserveArchive(count int, err error) {
	if err != nil {
		r.archiveFailures.Inc()
		return
	}
	r.archived.Add(float64(count))
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// for pickup by a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
