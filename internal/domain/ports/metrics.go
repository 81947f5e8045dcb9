package ports

import (
	"time"

	"github.com/ersonp/resource-directory/internal/domain/entities"
)

// Metrics receives observations from the detector and resolver.
type Metrics interface {
	// ObserveDetection records one detection pass.
	ObserveDetection(report *entities.DuplicateReport, elapsed time.Duration)

	// ObserveMerge records one merge attempt. result is nil when err is set.
	ObserveMerge(result *entities.MergeResult, dryRun bool, err error)

	// ObserveArchive records one archive call.
	ObserveArchive(count int, err error)
}
