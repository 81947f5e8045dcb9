package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/matching"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// DefaultFuzzyThreshold is the minimum name similarity for a fuzzy pair.
const DefaultFuzzyThreshold = 0.8

// BlockingStrategy limits which record pairs the pairwise detections compare.
type BlockingStrategy string

const (
	// BlockingNone compares every unordered pair.
	BlockingNone BlockingStrategy = "none"
	// BlockingFirstToken compares only names sharing their first normalized token.
	// It trades recall for speed on large record sets.
	BlockingFirstToken BlockingStrategy = "first_token"
)

// DetectionConfig controls the duplicate detector.
type DetectionConfig struct {
	FuzzyThreshold float64
	FuzzyBlocking  BlockingStrategy
}

// DefaultDetectionConfig returns the default detection configuration.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		FuzzyThreshold: DefaultFuzzyThreshold,
		FuzzyBlocking:  BlockingNone,
	}
}

// Validate checks the configuration values.
func (c DetectionConfig) Validate() error {
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be between 0.0 and 1.0 (got %.2f)", c.FuzzyThreshold)
	}
	switch c.FuzzyBlocking {
	case BlockingNone, BlockingFirstToken, "":
	default:
		return fmt.Errorf("unknown fuzzy_blocking %q (valid: none, first_token)", c.FuzzyBlocking)
	}
	return nil
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// DuplicateDetector finds candidate duplicate records in the active set.
type DuplicateDetector struct {
	relationalDB ports.RelationalDB
	metrics      ports.Metrics
	logger       *zap.Logger
	cfg          DetectionConfig
}

// NewDuplicateDetector creates a new DuplicateDetector. metrics and logger may be nil.
func NewDuplicateDetector(
	relationalDB ports.RelationalDB,
	metrics ports.Metrics,
	logger *zap.Logger,
	cfg DetectionConfig,
) *DuplicateDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FuzzyBlocking == "" {
		cfg.FuzzyBlocking = BlockingNone
	}
	return &DuplicateDetector{
		relationalDB: relationalDB,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Detect loads the active record set once and runs every detection over it.
func (d *DuplicateDetector) Detect(ctx context.Context, filter ports.RecordFilter) (*entities.DuplicateReport, error) {
	start := timeNow()

	records, err := d.relationalDB.ListActiveRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading active records: %w", err)
	}

	report := DetectDuplicates(records, d.cfg)
	elapsed := timeNow().Sub(start)

	if d.metrics != nil {
		d.metrics.ObserveDetection(report, elapsed)
	}
	d.logger.Info("duplicate detection finished",
		zap.Int("records", report.TotalRecords),
		zap.Int("exact_name", report.Counts.ExactName),
		zap.Int("phone", report.Counts.Phone),
		zap.Int("website", report.Counts.Website),
		zap.Int("email", report.Counts.Email),
		zap.Int("address", report.Counts.Address),
		zap.Int("fuzzy_name", report.Counts.FuzzyName),
		zap.Int("contact", report.Counts.Contact),
		zap.Duration("elapsed", elapsed),
	)

	return report, nil
}

// DetectDuplicates runs all seven detections over records. It mutates
// nothing; inactive records are ignored.
func DetectDuplicates(records []entities.Record, cfg DetectionConfig) *entities.DuplicateReport {
	active := make([]entities.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if !records[i].IsActive() {
			continue
		}
		if _, dup := seen[records[i].ID]; dup {
			continue
		}
		seen[records[i].ID] = struct{}{}
		active = append(active, records[i])
	}

	report := &entities.DuplicateReport{
		ExactName:      GroupBy(active, func(r *entities.Record) string { return matching.NormalizeText(r.Name) }),
		Phone:          GroupBy(active, func(r *entities.Record) string { return matching.NormalizePhone(r.Phone) }),
		Website:        GroupBy(active, func(r *entities.Record) string { return matching.NormalizeWebsite(r.Website) }),
		Email:          GroupBy(active, func(r *entities.Record) string { return matching.NormalizeEmail(r.Email) }),
		Address:        GroupBy(active, func(r *entities.Record) string { return matching.AddressKey(r.Address1, r.City, r.State) }),
		FuzzyName:      FuzzyNamePairs(active, cfg.FuzzyThreshold, cfg.FuzzyBlocking),
		Contact:        ContactPairs(active),
		TotalRecords:   len(active),
		FuzzyThreshold: cfg.FuzzyThreshold,
		GeneratedAt:    timeNow(),
	}
	report.Counts = entities.ReportCounts{
		ExactName: len(report.ExactName),
		Phone:     len(report.Phone),
		Website:   len(report.Website),
		Email:     len(report.Email),
		Address:   len(report.Address),
		FuzzyName: len(report.FuzzyName),
		Contact:   len(report.Contact),
	}
	return report
}

// GroupBy groups records by key, skipping empty keys, and keeps groups of
// two or more. Groups are ordered by the first appearance of their key and
// records keep their input order.
func GroupBy(records []entities.Record, key func(*entities.Record) string) []entities.DuplicateGroup {
	index := make(map[string]int)
	var groups []entities.DuplicateGroup

	for i := range records {
		k := key(&records[i])
		if k == "" {
			continue
		}
		if gi, ok := index[k]; ok {
			groups[gi].Records = append(groups[gi].Records, records[i])
			continue
		}
		index[k] = len(groups)
		groups = append(groups, entities.DuplicateGroup{Key: k, Records: []entities.Record{records[i]}})
	}

	result := make([]entities.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Records) >= 2 {
			result = append(result, g)
		}
	}
	return result
}

// FuzzyNamePairs compares every unordered pair of records with non-empty
// normalized names and returns those scoring at least threshold, highest
// score first. Each pair is visited once and a record is never paired with
// itself.
func FuzzyNamePairs(records []entities.Record, threshold float64, blocking BlockingStrategy) []entities.FuzzyPair {
	names := make([]string, len(records))
	for i := range records {
		names[i] = matching.NormalizeText(records[i].Name)
	}

	var pairs []entities.FuzzyPair
	for i := 0; i < len(records); i++ {
		if names[i] == "" {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			if names[j] == "" || records[i].ID == records[j].ID {
				continue
			}
			if blocking == BlockingFirstToken && matching.FirstToken(names[i]) != matching.FirstToken(names[j]) {
				continue
			}
			score := matching.Similarity(names[i], names[j])
			if score >= threshold {
				pairs = append(pairs, entities.FuzzyPair{First: records[i], Second: records[j], Score: score})
			}
		}
	}

	slices.SortStableFunc(pairs, func(a, b entities.FuzzyPair) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return pairs
}

// ContactPairs labels each unordered pair by the first shared contact
// channel in priority order phone, email, website. Empty values never match.
func ContactPairs(records []entities.Record) []entities.ContactPair {
	type contact struct{ phone, email, website string }
	keys := make([]contact, len(records))
	for i := range records {
		keys[i] = contact{
			phone:   matching.NormalizePhone(records[i].Phone),
			email:   matching.NormalizeEmail(records[i].Email),
			website: matching.NormalizeWebsite(records[i].Website),
		}
	}

	var pairs []entities.ContactPair
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if records[i].ID == records[j].ID {
				continue
			}
			a, b := keys[i], keys[j]
			var field string
			switch {
			case a.phone != "" && a.phone == b.phone:
				field = string(entities.FieldPhone)
			case a.email != "" && a.email == b.email:
				field = string(entities.FieldEmail)
			case a.website != "" && a.website == b.website:
				field = string(entities.FieldWebsite)
			default:
				continue
			}
			pairs = append(pairs, entities.ContactPair{First: records[i], Second: records[j], MatchedField: field})
		}
	}
	return pairs
}
