package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// DefaultTxTimeout bounds a resolution transaction when the caller's context
// carries no deadline.
const DefaultTxTimeout = 10 * time.Second

// errRollback aborts a transaction on purpose, e.g. for a preview.
var errRollback = errors.New("rollback requested")

// runInTx runs fn in a transaction, applying timeout when ctx has no
// deadline. Store conflicts surface as KindConflict resolution errors.
func runInTx(ctx context.Context, db ports.RelationalDB, timeout time.Duration, fn func(ports.RecordStore) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := db.RunInTx(ctx, fn)
	if err == nil || errors.Is(err, errRollback) {
		return err
	}

	var re *entities.ResolutionError
	if !errors.As(err, &re) && errors.Is(err, entities.ErrConflict) {
		return entities.NewResolutionError(entities.KindConflict, "",
			"transaction conflict; re-run detection and retry", err)
	}
	return err
}

// loadActive resolves id inside a transaction and requires it to be active.
func loadActive(ctx context.Context, store ports.RecordStore, id, role string) (*entities.Record, error) {
	rec, err := store.FindRecordByID(ctx, id)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, entities.NewResolutionError(entities.KindNotFound, id, role+" record not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s record %s: %w", role, id, err)
	}
	if !rec.IsActive() {
		return nil, entities.NewResolutionError(entities.KindAlreadyArchived, id, role+" record is not active", nil)
	}
	return rec, nil
}

// snapshot stores the record's current state as its next version.
func snapshot(
	ctx context.Context,
	store ports.RecordStore,
	rec *entities.Record,
	change entities.ChangeType,
	actor, reason string,
	now time.Time,
) error {
	count, err := store.CountVersions(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("counting versions of %s: %w", rec.ID, err)
	}
	version := &entities.RecordVersion{
		ID:         uuid.New().String(),
		RecordID:   rec.ID,
		Version:    count + 1,
		ChangeType: change,
		Data:       rec.Snapshot(),
		Reason:     reason,
		Actor:      actor,
		CreatedAt:  now,
	}
	if err := store.SaveVersion(ctx, version); err != nil {
		return fmt.Errorf("saving version of %s: %w", rec.ID, err)
	}
	return nil
}

// uniqueIDs drops empty and repeated ids, keeping first occurrences.
func uniqueIDs(ids []string) (unique []string, repeated []string) {
	seen := make(map[string]struct{}, len(ids))
	unique = make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			repeated = append(repeated, id)
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique, repeated
}
