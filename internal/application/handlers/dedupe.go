package handlers

import (
	"context"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
	"github.com/ersonp/resource-directory/internal/domain/services"
)

// DedupeHandler handles duplicate detection and resolution at the application layer.
type DedupeHandler struct {
	detector *services.DuplicateDetector
	resolver *services.DuplicateResolver
}

// NewDedupeHandler creates a new DedupeHandler.
func NewDedupeHandler(detector *services.DuplicateDetector, resolver *services.DuplicateResolver) *DedupeHandler {
	return &DedupeHandler{
		detector: detector,
		resolver: resolver,
	}
}

// DetectOptions narrows a detection pass.
type DetectOptions struct {
	CategoryID string
	IDs        []string
	Limit      int
}

// HandleDetect runs every detection over the active records.
func (h *DedupeHandler) HandleDetect(ctx context.Context, opts DetectOptions) (*entities.DuplicateReport, error) {
	return h.detector.Detect(ctx, ports.RecordFilter{
		IDs:        opts.IDs,
		CategoryID: opts.CategoryID,
		Limit:      opts.Limit,
	})
}

// MergeOptions describes a merge request from the caller.
type MergeOptions struct {
	PrimaryID    string
	DuplicateIDs []string
	Notes        string
	Actor        string
	DryRun       bool
}

// HandleMerge merges the duplicates into the primary, or previews the merge
// when DryRun is set.
func (h *DedupeHandler) HandleMerge(ctx context.Context, opts MergeOptions) (*entities.MergeResult, error) {
	req := services.MergeRequest{
		PrimaryID:    opts.PrimaryID,
		DuplicateIDs: opts.DuplicateIDs,
		Notes:        opts.Notes,
		Actor:        opts.Actor,
	}
	if opts.DryRun {
		return h.resolver.PreviewMerge(ctx, req)
	}
	return h.resolver.MergeResources(ctx, req)
}

// BatchOptions describes an archive or flag request.
type BatchOptions struct {
	IDs    []string
	Reason string
	Actor  string
}

// HandleArchive archives the records without merging them.
func (h *DedupeHandler) HandleArchive(ctx context.Context, opts BatchOptions) (*services.ArchiveResult, error) {
	return h.resolver.Archive(ctx, services.ArchiveRequest(opts))
}

// HandleFlag flags the records as a candidate group for human review.
func (h *DedupeHandler) HandleFlag(ctx context.Context, opts BatchOptions) (*services.FlagResult, error) {
	return h.resolver.FlagForReview(ctx, services.ArchiveRequest(opts))
}
