package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/mocks"
)

func TestArchive_ArchivesEveryRecord(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "R1", Name: "Closed Pantry"},
		entities.Record{ID: "R2", Name: "Closed Clinic"},
	)
	resolver, metrics := newTestResolver(db)

	result, err := resolver.Archive(context.Background(), ArchiveRequest{
		IDs:    []string{"R1", "R2", "R1"},
		Reason: "program closed",
		Actor:  "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, result.ArchivedIDs)
	for _, id := range []string{"R1", "R2"} {
		rec := db.Record(id)
		assert.True(t, rec.IsArchived)
		assert.Equal(t, "program closed", rec.ArchiveReason)
		assert.Equal(t, "alice", rec.ArchivedBy)
		assert.Empty(t, rec.MergedIntoID)
	}

	require.Len(t, db.Audit, 2)
	for _, e := range db.Audit {
		assert.Equal(t, entities.ActionArchiveRecord, e.Action)
		assert.Equal(t, "program closed", e.Details["reason"])
	}
	require.Len(t, db.Versions, 2)
	assert.Equal(t, entities.ChangeArchive, db.Versions[0].ChangeType)
	assert.Equal(t, 2, metrics.Archived)
}

func TestArchive_AllOrNothing(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "R1", Name: "Pantry"},
		entities.Record{ID: "R2", Name: "Clinic", IsArchived: true},
	)
	resolver, metrics := newTestResolver(db)

	_, err := resolver.Archive(context.Background(), ArchiveRequest{
		IDs: []string{"R1", "R2"}, Reason: "closed", Actor: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrAlreadyArchived)
	assert.True(t, db.Record("R1").IsActive())
	assert.Empty(t, db.Audit)
	assert.Equal(t, 1, metrics.ArchiveErrors)
}

func TestArchive_UnknownRecord(t *testing.T) {
	db := mocks.NewRelationalDB(entities.Record{ID: "R1", Name: "Pantry"})
	resolver, _ := newTestResolver(db)

	_, err := resolver.Archive(context.Background(), ArchiveRequest{
		IDs: []string{"R1", "ghost"}, Reason: "closed", Actor: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.True(t, db.Record("R1").IsActive())
}

func TestArchive_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ArchiveRequest
	}{
		{"missing actor", ArchiveRequest{IDs: []string{"R1"}, Reason: "closed"}},
		{"missing reason", ArchiveRequest{IDs: []string{"R1"}, Reason: " ", Actor: "alice"}},
		{"no ids", ArchiveRequest{IDs: []string{""}, Reason: "closed", Actor: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := mocks.NewRelationalDB(entities.Record{ID: "R1", Name: "Pantry"})
			resolver, _ := newTestResolver(db)

			_, err := resolver.Archive(context.Background(), tt.req)

			require.Error(t, err)
			assert.ErrorIs(t, err, entities.ErrValidation)
			assert.Zero(t, db.TxCount)
		})
	}
}

func TestFlagForReview(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "R1", Name: "Harbor House"},
		entities.Record{ID: "R2", Name: "Harbour House"},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.FlagForReview(context.Background(), ArchiveRequest{
		IDs: []string{"R1", "R2"}, Reason: "spelling variant?", Actor: "alice",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.GroupID)
	assert.Equal(t, []string{"R1", "R2"}, result.FlaggedIDs)
	assert.True(t, db.Record("R1").IsActive())
	assert.True(t, db.Record("R2").IsActive())
	assert.Empty(t, db.Versions)

	flags, err := db.FindReviewFlags(context.Background(), "R2")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, result.GroupID, flags[0].GroupID)
	assert.Equal(t, "spelling variant?", flags[0].Reason)

	entries, err := db.FindAuditLogByAction(context.Background(), entities.ActionFlagForReview, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, result.GroupID, entries[0].Details["group_id"])
}

func TestFlagForReview_RollsBackOnMissingRecord(t *testing.T) {
	db := mocks.NewRelationalDB(entities.Record{ID: "R1", Name: "Harbor House"})
	resolver, _ := newTestResolver(db)

	_, err := resolver.FlagForReview(context.Background(), ArchiveRequest{
		IDs: []string{"R1", "ghost"}, Reason: "check", Actor: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Empty(t, db.Flags)
	assert.Empty(t, db.Audit)
}
