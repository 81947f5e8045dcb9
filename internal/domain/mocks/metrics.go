package mocks

import (
	"time"

	"github.com/ersonp/resource-directory/internal/domain/entities"
)

// Metrics records observations for assertions.
type Metrics struct {
	Detections    int
	LastReport    *entities.DuplicateReport
	Merges        int
	DryRuns       int
	MergeFailures int
	Archived      int
	ArchiveErrors int
}

// NewMetrics creates a new mock Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveDetection records one detection pass.
func (m *Metrics) ObserveDetection(report *entities.DuplicateReport, _ time.Duration) {
	m.Detections++
	m.LastReport = report
}

// ObserveMerge records one merge attempt.
func (m *Metrics) ObserveMerge(_ *entities.MergeResult, dryRun bool, err error) {
	switch {
	case err != nil:
		m.MergeFailures++
	case dryRun:
		m.DryRuns++
	default:
		m.Merges++
	}
}

// ObserveArchive records one archive call.
func (m *Metrics) ObserveArchive(count int, err error) {
	if err != nil {
		m.ArchiveErrors++
		return
	}
	m.Archived += count
}
