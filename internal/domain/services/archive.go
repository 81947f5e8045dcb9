package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// ArchiveRequest asks for records to be archived without a field merge.
type ArchiveRequest struct {
	IDs    []string
	Reason string
	Actor  string
}

// ArchiveResult lists the records archived by one call.
type ArchiveResult struct {
	ArchivedIDs []string `json:"archived_ids"`
	Reason      string   `json:"reason"`
}

// FlagResult lists the records flagged for review by one call.
type FlagResult struct {
	GroupID    string   `json:"group_id"`
	FlaggedIDs []string `json:"flagged_ids"`
	Reason     string   `json:"reason"`
}

// Archive archives every requested record in one transaction. Each id must
// resolve to an active record; otherwise nothing is archived.
func (s *DuplicateResolver) Archive(ctx context.Context, req ArchiveRequest) (*ArchiveResult, error) {
	ids, err := validateBatchRequest(req.IDs, req.Reason, req.Actor)
	if err != nil {
		s.observeArchive(0, err)
		return nil, err
	}

	err = runInTx(ctx, s.relationalDB, s.txTimeout, func(store ports.RecordStore) error {
		now := timeNow()
		for _, id := range ids {
			rec, err := loadActive(ctx, store, id, "archive")
			if err != nil {
				return err
			}
			if err := snapshot(ctx, store, rec, entities.ChangeArchive, req.Actor, req.Reason, now); err != nil {
				return err
			}
			markArchived(rec, req.Actor, req.Reason, now)
			if err := store.SaveRecord(ctx, rec); err != nil {
				return fmt.Errorf("archiving %s: %w", id, err)
			}
			if err := store.LogAction(ctx, &entities.AuditEntry{
				Actor:       req.Actor,
				Action:      entities.ActionArchiveRecord,
				TargetTable: entities.TableRecords,
				TargetID:    id,
				Details:     map[string]any{"reason": req.Reason},
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("logging archive of %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		s.observeArchive(0, err)
		return nil, err
	}

	s.observeArchive(len(ids), nil)
	s.logger.Info("records archived",
		zap.Strings("ids", ids),
		zap.String("actor", req.Actor),
	)
	return &ArchiveResult{ArchivedIDs: ids, Reason: req.Reason}, nil
}

// FlagForReview marks the records as a candidate duplicate group for human
// review. Records are not modified; one flag and one audit entry are written
// per record.
func (s *DuplicateResolver) FlagForReview(ctx context.Context, req ArchiveRequest) (*FlagResult, error) {
	ids, err := validateBatchRequest(req.IDs, req.Reason, req.Actor)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New().String()
	err = runInTx(ctx, s.relationalDB, s.txTimeout, func(store ports.RecordStore) error {
		now := timeNow()
		for _, id := range ids {
			if _, err := loadActive(ctx, store, id, "flagged"); err != nil {
				return err
			}
			if err := store.SaveReviewFlag(ctx, &entities.ReviewFlag{
				ID:        uuid.New().String(),
				RecordID:  id,
				GroupID:   groupID,
				Reason:    req.Reason,
				Actor:     req.Actor,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("flagging %s: %w", id, err)
			}
			if err := store.LogAction(ctx, &entities.AuditEntry{
				Actor:       req.Actor,
				Action:      entities.ActionFlagForReview,
				TargetTable: entities.TableRecords,
				TargetID:    id,
				Details: map[string]any{
					"group_id":   groupID,
					"reason":     req.Reason,
					"record_ids": ids,
				},
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("logging flag of %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("records flagged for review",
		zap.String("group_id", groupID),
		zap.Strings("ids", ids),
		zap.String("actor", req.Actor),
	)
	return &FlagResult{GroupID: groupID, FlaggedIDs: ids, Reason: req.Reason}, nil
}

// validateBatchRequest checks an archive or flag request and returns its
// de-duplicated ids.
func validateBatchRequest(ids []string, reason, actor string) ([]string, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, entities.NewResolutionError(entities.KindValidation, "", "actor is required", nil)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, entities.NewResolutionError(entities.KindValidation, "", "reason is required", nil)
	}
	unique, _ := uniqueIDs(ids)
	if len(unique) == 0 {
		return nil, entities.NewResolutionError(entities.KindValidation, "", "at least one record id is required", nil)
	}
	return unique, nil
}

func (s *DuplicateResolver) observeArchive(count int, err error) {
	if s.metrics != nil {
		s.metrics.ObserveArchive(count, err)
	}
}
