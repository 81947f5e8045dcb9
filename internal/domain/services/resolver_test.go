package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/mocks"
)

func newTestResolver(db *mocks.RelationalDB) (*DuplicateResolver, *mocks.Metrics) {
	metrics := mocks.NewMetrics()
	return NewDuplicateResolver(db, metrics, nil, time.Second), metrics
}

func foodBankRecords() (entities.Record, entities.Record) {
	r1 := entities.Record{ID: "R1", Name: "Community Food Bank", Email: "a@x.org"}
	r2 := entities.Record{ID: "R2", Name: "Community Food Bank", Phone: "5551234567", Email: "b@x.org"}
	return r1, r2
}

func TestMergeResources_FillsEmptyFieldsAndArchives(t *testing.T) {
	at := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	freezeTime(t, at)

	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver, metrics := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID:    "R1",
		DuplicateIDs: []string{"R2"},
		Actor:        "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, "R1", result.PrimaryID)
	assert.Equal(t, []string{"R2"}, result.ArchivedIDs)
	assert.False(t, result.DryRun)
	require.Contains(t, result.FieldsChanged, entities.FieldPhone)
	assert.Equal(t, entities.FieldChange{Old: "", New: "5551234567", SourceID: "R2"}, result.FieldsChanged[entities.FieldPhone])
	assert.NotContains(t, result.FieldsChanged, entities.FieldEmail)

	primary := db.Record("R1")
	assert.Equal(t, "5551234567", primary.Phone)
	assert.Equal(t, "a@x.org", primary.Email)
	assert.True(t, primary.IsActive())
	assert.Equal(t, "alice", primary.UpdatedBy)
	assert.Equal(t, at, primary.UpdatedAt)

	dup := db.Record("R2")
	assert.True(t, dup.IsArchived)
	assert.Equal(t, "alice", dup.ArchivedBy)
	assert.Equal(t, "R1", dup.MergedIntoID)
	require.NotNil(t, dup.ArchivedAt)
	assert.Equal(t, at, *dup.ArchivedAt)
	assert.Equal(t, "Merged into primary resource ID R1.", dup.ArchiveReason)

	require.Len(t, db.Audit, 2)
	assert.Equal(t, entities.ActionMergeDuplicates, db.Audit[0].Action)
	assert.Equal(t, "R1", db.Audit[0].TargetID)
	assert.Equal(t, entities.TableRecords, db.Audit[0].TargetTable)
	assert.Equal(t, []string{"R2"}, db.Audit[0].Details["duplicate_ids"])
	assert.Equal(t, []string{"phone"}, db.Audit[0].Details["fields_changed"])
	assert.Equal(t, entities.ActionArchiveDuplicate, db.Audit[1].Action)
	assert.Equal(t, "R2", db.Audit[1].TargetID)
	assert.Equal(t, "R1", db.Audit[1].Details["primary_id"])

	require.Len(t, db.Versions, 1)
	assert.Equal(t, "R1", db.Versions[0].RecordID)
	assert.Equal(t, 1, db.Versions[0].Version)
	assert.Equal(t, entities.ChangeMerge, db.Versions[0].ChangeType)
	assert.Empty(t, db.Versions[0].Data.Phone, "snapshot holds the pre-merge state")

	assert.Equal(t, 1, metrics.Merges)
}

func TestMergeResources_NeverOverwritesPrimaryValues(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Clinic", Phone: "5550000000", Hours: "  "},
		entities.Record{ID: "D1", Name: "Clinic", Phone: "5551111111", Hours: "9-5", Cost: "Free"},
		entities.Record{ID: "D2", Name: "Clinic", Hours: "8-4", Cost: "Sliding scale", Languages: "es"},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID:    "P",
		DuplicateIDs: []string{"D1", "D2"},
		Actor:        "alice",
	})

	require.NoError(t, err)
	primary := db.Record("P")
	assert.Equal(t, "5550000000", primary.Phone)
	assert.Equal(t, "9-5", primary.Hours, "whitespace counts as empty; first duplicate wins")
	assert.Equal(t, "Free", primary.Cost)
	assert.Equal(t, "es", primary.Languages)
	assert.NotContains(t, result.FieldsChanged, entities.FieldPhone)
	assert.Equal(t, "D1", result.FieldsChanged[entities.FieldHours].SourceID)
	assert.Equal(t, "D2", result.FieldsChanged[entities.FieldLanguages].SourceID)
	assert.Len(t, db.Audit, 3)
}

func TestMergeResources_UnionsServiceTypes(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Shelter", ServiceTypes: []string{"A", "B"}},
		entities.Record{ID: "D", Name: "Shelter", ServiceTypes: []string{"B", "C"}},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "P", DuplicateIDs: []string{"D"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, db.Record("P").ServiceTypes)
	assert.Equal(t, entities.FieldChange{Old: "A,B", New: "A,B,C"}, result.FieldsChanged[entities.FieldServiceTypes])
}

func TestMergeResources_TagsAlreadyCovered(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Shelter", ServiceTypes: []string{"A", "B"}},
		entities.Record{ID: "D", Name: "Shelter", ServiceTypes: []string{"B"}},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "P", DuplicateIDs: []string{"D"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.NotContains(t, result.FieldsChanged, entities.FieldServiceTypes)
	assert.Empty(t, result.FieldsChanged)
	assert.Equal(t, []string{"A", "B"}, db.Record("P").ServiceTypes)
}

func TestMergeResources_TagUnionWithRepeatedPrimaryTags(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Shelter", ServiceTypes: []string{"food", "food"}},
		entities.Record{ID: "D", Name: "Shelter", ServiceTypes: []string{"housing"}},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "P", DuplicateIDs: []string{"D"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"food", "housing"}, db.Record("P").ServiceTypes)
	require.Contains(t, result.FieldsChanged, entities.FieldServiceTypes)
	assert.Equal(t, "food,housing", result.FieldsChanged[entities.FieldServiceTypes].New)
}

func TestMergeResources_AppendsNotes(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		dups    []string
		want    string
	}{
		{
			name:    "empty primary",
			primary: "",
			dups:    []string{"open late", ""},
			want:    "MERGED INFO: open late",
		},
		{
			name:    "existing primary notes",
			primary: "call first",
			dups:    []string{"open late", "wheelchair access"},
			want:    "call first\n\nMERGED INFO: open late | wheelchair access",
		},
		{
			name:    "no duplicate notes",
			primary: "call first",
			dups:    []string{"", "  "},
			want:    "call first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []entities.Record{{ID: "P", Name: "X", Notes: tt.primary}}
			dupIDs := make([]string, 0, len(tt.dups))
			for i, n := range tt.dups {
				id := string(rune('A' + i))
				records = append(records, entities.Record{ID: id, Name: "X", Notes: n})
				dupIDs = append(dupIDs, id)
			}
			db := mocks.NewRelationalDB(records...)
			resolver, _ := newTestResolver(db)

			result, err := resolver.MergeResources(context.Background(), MergeRequest{
				PrimaryID: "P", DuplicateIDs: dupIDs, Actor: "alice",
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, db.Record("P").Notes)
			if tt.want == tt.primary {
				assert.NotContains(t, result.FieldsChanged, entities.FieldNotes)
			} else {
				assert.Equal(t, tt.want, result.FieldsChanged[entities.FieldNotes].New)
			}
		})
	}
}

func TestMergeResources_ArchiveReasonIncludesNotes(t *testing.T) {
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver, _ := newTestResolver(db)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Notes: "same phone line", Actor: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, "Merged into primary resource ID R1. same phone line", db.Record("R2").ArchiveReason)
	assert.Equal(t, "same phone line", db.Audit[0].Details["notes"])
}

func TestMergeResources_AuditCountMatchesDuplicates(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Y"},
		entities.Record{ID: "D1", Name: "Y"},
		entities.Record{ID: "D2", Name: "Y"},
		entities.Record{ID: "D3", Name: "Y"},
	)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "P", DuplicateIDs: []string{"D1", "D2", "D3"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.Len(t, result.ArchivedIDs, 3)
	assert.Len(t, db.Audit, 1+3)
	for _, id := range []string{"D1", "D2", "D3"} {
		assert.False(t, db.Record(id).IsActive())
	}
}

func TestMergeResources_AtomicOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		inject func(db *mocks.RelationalDB)
	}{
		{"second duplicate save fails", func(db *mocks.RelationalDB) { db.FailSaveOn = 3 }},
		{"archive audit fails", func(db *mocks.RelationalDB) { db.FailLogOn = 2 }},
		{"commit fails", func(db *mocks.RelationalDB) { db.TxErr = errors.New("commit failed") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := mocks.NewRelationalDB(
				entities.Record{ID: "P", Name: "Y"},
				entities.Record{ID: "D1", Name: "Y", Phone: "5551234567"},
				entities.Record{ID: "D2", Name: "Y"},
			)
			tt.inject(db)
			resolver, metrics := newTestResolver(db)

			_, err := resolver.MergeResources(context.Background(), MergeRequest{
				PrimaryID: "P", DuplicateIDs: []string{"D1", "D2"}, Actor: "alice",
			})

			require.Error(t, err)
			assert.True(t, db.Record("D1").IsActive())
			assert.True(t, db.Record("D2").IsActive())
			assert.Empty(t, db.Record("P").Phone)
			assert.Empty(t, db.Audit)
			assert.Empty(t, db.Versions)
			assert.Equal(t, 1, metrics.MergeFailures)
		})
	}
}

func TestPreviewMerge_WritesNothing(t *testing.T) {
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver, metrics := newTestResolver(db)

	result, err := resolver.PreviewMerge(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, []string{"R2"}, result.ArchivedIDs)
	assert.Equal(t, "5551234567", result.FieldsChanged[entities.FieldPhone].New)
	assert.Empty(t, db.Record("R1").Phone)
	assert.True(t, db.Record("R2").IsActive())
	assert.Empty(t, db.Audit)
	assert.Empty(t, db.Versions)
	assert.Equal(t, 1, metrics.DryRuns)
	assert.Zero(t, metrics.Merges)
}

func TestMergeResources_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  MergeRequest
	}{
		{"missing actor", MergeRequest{PrimaryID: "R1", DuplicateIDs: []string{"R2"}}},
		{"missing primary", MergeRequest{DuplicateIDs: []string{"R2"}, Actor: "alice"}},
		{"empty duplicate list", MergeRequest{PrimaryID: "R1", Actor: "alice"}},
		{"empty duplicate id", MergeRequest{PrimaryID: "R1", DuplicateIDs: []string{""}, Actor: "alice"}},
		{"primary among duplicates", MergeRequest{PrimaryID: "R1", DuplicateIDs: []string{"R2", "R1"}, Actor: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r1, r2 := foodBankRecords()
			db := mocks.NewRelationalDB(r1, r2)
			resolver, _ := newTestResolver(db)

			_, err := resolver.MergeResources(context.Background(), tt.req)

			require.Error(t, err)
			assert.ErrorIs(t, err, entities.ErrValidation)
			assert.Equal(t, entities.KindValidation, entities.KindOf(err))
			assert.Zero(t, db.TxCount)
			assert.True(t, db.Record("R2").IsActive())
		})
	}
}

func TestMergeResources_PrimaryNotFound(t *testing.T) {
	_, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r2)
	resolver, _ := newTestResolver(db)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	var re *entities.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "R1", re.RecordID)
	assert.True(t, db.Record("R2").IsActive())
}

func TestMergeResources_NoDuplicatesResolve(t *testing.T) {
	r1, _ := foodBankRecords()
	db := mocks.NewRelationalDB(r1)
	resolver, _ := newTestResolver(db)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"ghost1", "ghost2"}, Actor: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNoDuplicates)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Equal(t, entities.KindNoDuplicates, entities.KindOf(err))
	assert.Empty(t, db.Versions)
	assert.Empty(t, db.Audit)
}

func TestMergeResources_PartialResolutionWarns(t *testing.T) {
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver, _ := newTestResolver(db)

	result, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"ghost", "R2", "R2"}, Actor: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"R2"}, result.ArchivedIDs)
	assert.Equal(t, []string{"ghost"}, result.UnresolvedIDs)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "ghost")
	assert.Contains(t, result.Warnings[1], "more than once")
	assert.Equal(t, []string{"ghost"}, db.Audit[0].Details["unresolved_ids"])
	assert.Len(t, db.Audit, 2)
}

func TestMergeResources_LogsUnresolvedIDs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver := NewDuplicateResolver(db, nil, zap.New(core), time.Second)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2", "ghost"}, Actor: "alice",
	})

	require.NoError(t, err)
	entries := logs.FilterMessage("duplicate ids did not resolve").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "R1", entries[0].ContextMap()["primary_id"])
}

func TestMergeResources_ArchivedRecords(t *testing.T) {
	tests := []struct {
		name    string
		archive string
	}{
		{"archived primary", "R1"},
		{"archived duplicate", "R2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r1, r2 := foodBankRecords()
			db := mocks.NewRelationalDB(r1, r2)
			rec := db.Records[tt.archive]
			rec.IsArchived = true
			db.Records[tt.archive] = rec
			resolver, _ := newTestResolver(db)

			_, err := resolver.MergeResources(context.Background(), MergeRequest{
				PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, entities.ErrAlreadyArchived)
			assert.ErrorIs(t, err, entities.ErrConflict)
			assert.Equal(t, entities.KindAlreadyArchived, entities.KindOf(err))
			assert.Empty(t, db.Audit)
		})
	}
}

func TestMergeResources_SecondMergeOfSameDuplicateFails(t *testing.T) {
	r1, r2 := foodBankRecords()
	r3 := entities.Record{ID: "R3", Name: "Community Food Bank"}
	db := mocks.NewRelationalDB(r1, r2, r3)
	resolver, _ := newTestResolver(db)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
	})
	require.NoError(t, err)

	_, err = resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R3", DuplicateIDs: []string{"R2"}, Actor: "bob",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrAlreadyArchived)
	assert.Equal(t, "R1", db.Record("R2").MergedIntoID)
}

func TestMergeResources_ConflictSurfacesAsResolutionError(t *testing.T) {
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	db.TxErr = errors.Join(errors.New("database is locked"), entities.ErrConflict)
	resolver, _ := newTestResolver(db)

	_, err := resolver.MergeResources(context.Background(), MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
	})

	require.Error(t, err)
	assert.Equal(t, entities.KindConflict, entities.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "retry"))
}

func TestMergeResources_CancelledContext(t *testing.T) {
	r1, r2 := foodBankRecords()
	db := mocks.NewRelationalDB(r1, r2)
	resolver, _ := newTestResolver(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.MergeResources(ctx, MergeRequest{
		PrimaryID: "R1", DuplicateIDs: []string{"R2"}, Actor: "alice",
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, db.TxCount)
}

func TestMergeResources_VersionNumbersIncrement(t *testing.T) {
	db := mocks.NewRelationalDB(
		entities.Record{ID: "P", Name: "Z"},
		entities.Record{ID: "D1", Name: "Z"},
		entities.Record{ID: "D2", Name: "Z"},
	)
	resolver, _ := newTestResolver(db)

	for _, dup := range []string{"D1", "D2"} {
		_, err := resolver.MergeResources(context.Background(), MergeRequest{
			PrimaryID: "P", DuplicateIDs: []string{dup}, Actor: "alice",
		})
		require.NoError(t, err)
	}

	versions, err := db.FindVersionsByRecord(context.Background(), "P")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, 1, versions[1].Version)
}
