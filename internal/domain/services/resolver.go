package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// MergeRequest asks for duplicates to be merged into a primary record.
type MergeRequest struct {
	PrimaryID    string
	DuplicateIDs []string
	Notes        string
	// Actor is stamped on the primary, the archived duplicates and every
	// audit entry. It is required.
	Actor string
}

// DuplicateResolver merges, archives and flags duplicate records.
type DuplicateResolver struct {
	relationalDB ports.RelationalDB
	metrics      ports.Metrics
	logger       *zap.Logger
	txTimeout    time.Duration
}

// NewDuplicateResolver creates a new DuplicateResolver. metrics and logger
// may be nil; a zero txTimeout uses DefaultTxTimeout.
func NewDuplicateResolver(
	relationalDB ports.RelationalDB,
	metrics ports.Metrics,
	logger *zap.Logger,
	txTimeout time.Duration,
) *DuplicateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &DuplicateResolver{
		relationalDB: relationalDB,
		metrics:      metrics,
		logger:       logger,
		txTimeout:    txTimeout,
	}
}

// MergeResources merges the duplicates into the primary in one transaction:
// it snapshots the primary, fills its empty fields, unions its tags, appends
// the duplicates' notes, archives the duplicates and writes one audit entry
// for the primary plus one per archived duplicate.
func (s *DuplicateResolver) MergeResources(ctx context.Context, req MergeRequest) (*entities.MergeResult, error) {
	return s.merge(ctx, req, false)
}

// PreviewMerge runs the same steps as MergeResources except the audit writes
// and rolls the transaction back, so the returned diff can be reviewed.
func (s *DuplicateResolver) PreviewMerge(ctx context.Context, req MergeRequest) (*entities.MergeResult, error) {
	return s.merge(ctx, req, true)
}

func (s *DuplicateResolver) merge(ctx context.Context, req MergeRequest, dryRun bool) (*entities.MergeResult, error) {
	dupIDs, repeated, err := validateMergeRequest(req)
	if err != nil {
		s.observeMerge(nil, dryRun, err)
		return nil, err
	}

	var result *entities.MergeResult
	err = runInTx(ctx, s.relationalDB, s.txTimeout, func(store ports.RecordStore) error {
		res, err := s.mergeInTx(ctx, store, req, dupIDs, dryRun)
		if err != nil {
			return err
		}
		result = res
		if dryRun {
			return errRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		s.observeMerge(nil, dryRun, err)
		s.logger.Warn("merge failed",
			zap.String("primary_id", req.PrimaryID),
			zap.Strings("duplicate_ids", dupIDs),
			zap.Bool("dry_run", dryRun),
			zap.Error(err),
		)
		return nil, err
	}

	for _, id := range repeated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("duplicate id %s listed more than once", id))
	}
	if len(result.UnresolvedIDs) > 0 {
		s.logger.Warn("duplicate ids did not resolve",
			zap.String("primary_id", result.PrimaryID),
			zap.Strings("unresolved_ids", result.UnresolvedIDs),
		)
	}

	s.observeMerge(result, dryRun, nil)
	s.logger.Info("merge completed",
		zap.String("primary_id", result.PrimaryID),
		zap.Strings("archived_ids", result.ArchivedIDs),
		zap.Int("fields_changed", len(result.FieldsChanged)),
		zap.Strings("unresolved_ids", result.UnresolvedIDs),
		zap.String("actor", req.Actor),
		zap.Bool("dry_run", dryRun),
	)
	return result, nil
}

// mergeInTx performs the merge steps against a transactional store.
func (s *DuplicateResolver) mergeInTx(
	ctx context.Context,
	store ports.RecordStore,
	req MergeRequest,
	dupIDs []string,
	dryRun bool,
) (*entities.MergeResult, error) {
	primary, err := loadActive(ctx, store, req.PrimaryID, "primary")
	if err != nil {
		return nil, err
	}

	duplicates := make([]entities.Record, 0, len(dupIDs))
	var unresolved []string
	for _, id := range dupIDs {
		rec, err := loadActive(ctx, store, id, "duplicate")
		if entities.KindOf(err) == entities.KindNotFound {
			s.logger.Debug("duplicate id did not resolve", zap.String("id", id))
			unresolved = append(unresolved, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		duplicates = append(duplicates, *rec)
	}
	if len(duplicates) == 0 {
		return nil, entities.NewResolutionError(entities.KindNoDuplicates, req.PrimaryID,
			"none of the duplicate ids resolved to a record", nil)
	}

	now := timeNow()

	if err := snapshot(ctx, store, primary, entities.ChangeMerge, req.Actor,
		fmt.Sprintf("pre-merge state; absorbing %s", strings.Join(recordIDs(duplicates), ", ")), now); err != nil {
		return nil, err
	}

	changes := applyMerge(primary, duplicates)

	primary.UpdatedAt = now
	primary.UpdatedBy = req.Actor
	if err := store.SaveRecord(ctx, primary); err != nil {
		return nil, fmt.Errorf("saving primary %s: %w", primary.ID, err)
	}

	reason := archiveReason(primary.ID, req.Notes)
	archived := make([]string, 0, len(duplicates))
	for i := range duplicates {
		dup := &duplicates[i]
		markArchived(dup, req.Actor, reason, now)
		dup.MergedIntoID = primary.ID
		if err := store.SaveRecord(ctx, dup); err != nil {
			return nil, fmt.Errorf("archiving duplicate %s: %w", dup.ID, err)
		}
		archived = append(archived, dup.ID)
	}

	if !dryRun {
		if err := writeMergeAudit(ctx, store, req, primary.ID, archived, unresolved, reason, changes, now); err != nil {
			return nil, err
		}
	}

	result := &entities.MergeResult{
		PrimaryID:     primary.ID,
		ArchivedIDs:   archived,
		FieldsChanged: changes,
		UnresolvedIDs: unresolved,
		DryRun:        dryRun,
		Summary: fmt.Sprintf("merged %d duplicate(s) into %s; %d field(s) changed",
			len(archived), primary.ID, len(changes)),
	}
	for _, id := range unresolved {
		result.Warnings = append(result.Warnings, fmt.Sprintf("duplicate id %s did not resolve; skipped", id))
	}
	return result, nil
}

// validateMergeRequest checks the request and returns the de-duplicated
// duplicate ids along with any ids that were listed more than once.
func validateMergeRequest(req MergeRequest) ([]string, []string, error) {
	if strings.TrimSpace(req.Actor) == "" {
		return nil, nil, entities.NewResolutionError(entities.KindValidation, "", "actor is required", nil)
	}
	if req.PrimaryID == "" {
		return nil, nil, entities.NewResolutionError(entities.KindValidation, "", "primary id is required", nil)
	}
	if len(req.DuplicateIDs) == 0 {
		return nil, nil, entities.NewResolutionError(entities.KindValidation, req.PrimaryID, "duplicate list is empty", nil)
	}
	for _, id := range req.DuplicateIDs {
		if id == "" {
			return nil, nil, entities.NewResolutionError(entities.KindValidation, req.PrimaryID, "duplicate ids must not be empty", nil)
		}
		if id == req.PrimaryID {
			return nil, nil, entities.NewResolutionError(entities.KindValidation, id, "primary id is listed among the duplicates", nil)
		}
	}
	unique, repeated := uniqueIDs(req.DuplicateIDs)
	return unique, repeated, nil
}

// mergedValue is the first non-empty value of a field in the merge set.
type mergedValue struct {
	value    string
	sourceID string
}

// mergedValues walks the merge set (primary first, then duplicates in
// request order) and keeps the first non-empty value of every field.
func mergedValues(mergeSet []entities.Record) map[entities.MergeField]mergedValue {
	values := make(map[entities.MergeField]mergedValue, len(entities.MergeableFields))
	for _, f := range entities.MergeableFields {
		for i := range mergeSet {
			if v := mergeSet[i].Field(f); strings.TrimSpace(v) != "" {
				values[f] = mergedValue{value: v, sourceID: mergeSet[i].ID}
				break
			}
		}
	}
	return values
}

// applyMerge mutates primary in place and returns the changed fields.
// Non-empty primary values are never overwritten, tags only grow, and
// notes are appended under MergedNotesMarker.
func applyMerge(primary *entities.Record, duplicates []entities.Record) map[entities.MergeField]entities.FieldChange {
	changes := make(map[entities.MergeField]entities.FieldChange)

	mergeSet := make([]entities.Record, 0, len(duplicates)+1)
	mergeSet = append(mergeSet, *primary)
	mergeSet = append(mergeSet, duplicates...)

	for f, mv := range mergedValues(mergeSet) {
		if f == entities.FieldNotes {
			continue
		}
		old := primary.Field(f)
		if strings.TrimSpace(old) != "" || mv.sourceID == primary.ID {
			continue
		}
		primary.SetField(f, mv.value)
		changes[f] = entities.FieldChange{Old: old, New: mv.value, SourceID: mv.sourceID}
	}

	oldTags := primary.ServiceTypes
	tags := unionTags(mergeSet)
	if !slices.Equal(tags, oldTags) {
		primary.ServiceTypes = tags
		changes[entities.FieldServiceTypes] = entities.FieldChange{
			Old: strings.Join(oldTags, ","),
			New: strings.Join(tags, ","),
		}
	}

	if notes := mergedNotes(primary.Notes, duplicates); notes != primary.Notes {
		changes[entities.FieldNotes] = entities.FieldChange{Old: primary.Notes, New: notes}
		primary.Notes = notes
	}

	return changes
}

// unionTags returns the union of service types across the merge set in
// first-seen order.
func unionTags(mergeSet []entities.Record) []string {
	seen := make(map[string]struct{})
	var tags []string
	for i := range mergeSet {
		for _, tag := range mergeSet[i].ServiceTypes {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

// mergedNotes appends the duplicates' notes to existing under the merge marker.
func mergedNotes(existing string, duplicates []entities.Record) string {
	var parts []string
	for i := range duplicates {
		if n := strings.TrimSpace(duplicates[i].Notes); n != "" {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return existing
	}
	appended := entities.MergedNotesMarker + strings.Join(parts, entities.MergedNotesSeparator)
	if strings.TrimSpace(existing) == "" {
		return appended
	}
	return existing + "\n\n" + appended
}

// archiveReason builds the archive reason stamped on merged duplicates.
func archiveReason(primaryID, notes string) string {
	return strings.TrimSpace(fmt.Sprintf("Merged into primary resource ID %s. %s", primaryID, notes))
}

// markArchived sets the archival flags on rec.
func markArchived(rec *entities.Record, actor, reason string, now time.Time) {
	at := now
	rec.IsArchived = true
	rec.ArchivedAt = &at
	rec.ArchivedBy = actor
	rec.ArchiveReason = reason
	rec.UpdatedAt = now
	rec.UpdatedBy = actor
}

// writeMergeAudit appends the merge entry for the primary and one archive
// entry per duplicate.
func writeMergeAudit(
	ctx context.Context,
	store ports.RecordStore,
	req MergeRequest,
	primaryID string,
	archived, unresolved []string,
	reason string,
	changes map[entities.MergeField]entities.FieldChange,
	now time.Time,
) error {
	changed := make([]string, 0, len(changes))
	for f := range changes {
		changed = append(changed, string(f))
	}
	slices.Sort(changed)

	details := map[string]any{
		"duplicate_ids":  archived,
		"fields_changed": changed,
		"notes":          req.Notes,
	}
	if len(unresolved) > 0 {
		details["unresolved_ids"] = unresolved
	}
	if err := store.LogAction(ctx, &entities.AuditEntry{
		Actor:       req.Actor,
		Action:      entities.ActionMergeDuplicates,
		TargetTable: entities.TableRecords,
		TargetID:    primaryID,
		Details:     details,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("logging merge of %s: %w", primaryID, err)
	}

	for _, id := range archived {
		if err := store.LogAction(ctx, &entities.AuditEntry{
			Actor:       req.Actor,
			Action:      entities.ActionArchiveDuplicate,
			TargetTable: entities.TableRecords,
			TargetID:    id,
			Details: map[string]any{
				"primary_id": primaryID,
				"reason":     reason,
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("logging archive of %s: %w", id, err)
		}
	}
	return nil
}

func (s *DuplicateResolver) observeMerge(result *entities.MergeResult, dryRun bool, err error) {
	if s.metrics != nil {
		s.metrics.ObserveMerge(result, dryRun, err)
	}
}

func recordIDs(records []entities.Record) []string {
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	return ids
}
