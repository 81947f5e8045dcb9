package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
	"github.com/ersonp/resource-directory/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle existing records during import.
type ConflictStrategy string

const (
	// ConflictSkip skips records that already exist (by ID).
	ConflictSkip ConflictStrategy = "skip"
	// ConflictOverwrite overwrites existing records with new data.
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing records
	Actor      string           // Stamped on created records and audit entries
}

// ImportError represents an error for a specific record during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
}

// recordValidate checks RawRecord validate tags. Field names are reported
// by their json tag.
var recordValidate = newRecordValidator()

func newRecordValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ImportService handles importing directory records from external sources.
type ImportService struct {
	relationalDB ports.RelationalDB
	logger       *zap.Logger
}

// NewImportService creates a new import service.
func NewImportService(relationalDB ports.RelationalDB, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{relationalDB: relationalDB, logger: logger}
}

// Import validates and stores raw records. Each stored record gets a creation
// version and an import audit entry; the whole batch is one transaction.
func (s *ImportService) Import(ctx context.Context, raws []parsers.RawRecord, opts ImportOptions) (*ImportResult, error) {
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, entities.NewResolutionError(entities.KindValidation, "", "actor is required", nil)
	}

	result := &ImportResult{}

	valid, validationErrors := validateRawRecords(raws)
	result.Errors = validationErrors

	if len(valid) == 0 {
		return result, nil
	}

	records := convertToRecords(valid, opts.Actor)

	if opts.DryRun {
		result.Imported = len(records)
		return result, nil
	}

	err := runInTx(ctx, s.relationalDB, DefaultTxTimeout, func(store ports.RecordStore) error {
		imported, skipped, err := saveWithConflictHandling(ctx, store, records, opts)
		result.Imported, result.Skipped = imported, skipped
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("saving records: %w", err)
	}

	s.logger.Info("records imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("invalid", len(result.Errors)),
		zap.String("actor", opts.Actor),
	)
	return result, nil
}

// validateRawRecords validates raw records and returns valid ones with any errors.
func validateRawRecords(raws []parsers.RawRecord) ([]parsers.RawRecord, []ImportError) {
	valid := make([]parsers.RawRecord, 0, len(raws))
	var importErrors []ImportError

	for i := range raws {
		raw := &raws[i]
		lineNum := raw.LineNum
		if lineNum == 0 {
			lineNum = i + 1
		}

		raw.Name = strings.TrimSpace(raw.Name)
		if err := validateRawRecord(raw, lineNum); err != nil {
			importErrors = append(importErrors, *err)
			continue
		}

		valid = append(valid, *raw)
	}

	return valid, importErrors
}

// validateRawRecord validates a single raw record and reports its first failing field.
func validateRawRecord(raw *parsers.RawRecord, lineNum int) *ImportError {
	err := recordValidate.Struct(raw)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ImportError{Line: lineNum, Message: err.Error()}
	}

	fe := fieldErrs[0]
	ie := &ImportError{Line: lineNum, Field: fe.Field(), Value: fmt.Sprint(fe.Value())}
	switch fe.Tag() {
	case "required":
		ie.Message = "missing required field: " + fe.Field()
	case "email":
		ie.Message = fmt.Sprintf("invalid email %q", ie.Value)
	case "max":
		ie.Message = fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param())
	default:
		ie.Message = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return ie
}

// convertToRecords converts raw records to domain records.
func convertToRecords(raws []parsers.RawRecord, actor string) []entities.Record {
	records := make([]entities.Record, 0, len(raws))
	now := timeNow()

	for i := range raws {
		raw := &raws[i]
		id := raw.ID
		if id == "" {
			id = uuid.New().String()
		}

		records = append(records, entities.Record{
			ID:                id,
			Name:              raw.Name,
			CategoryID:        raw.CategoryID,
			Description:       raw.Description,
			Phone:             raw.Phone,
			Email:             raw.Email,
			Website:           raw.Website,
			Address1:          raw.Address1,
			Address2:          raw.Address2,
			City:              raw.City,
			State:             raw.State,
			PostalCode:        raw.PostalCode,
			Notes:             raw.Notes,
			Hours:             raw.Hours,
			IsEmergency:       raw.IsEmergency,
			Is24Hour:          raw.Is24Hour,
			Eligibility:       raw.Eligibility,
			PopulationsServed: raw.PopulationsServed,
			Insurance:         raw.Insurance,
			Cost:              raw.Cost,
			Languages:         raw.Languages,
			Capacity:          raw.Capacity,
			ServiceTypes:      distinctTags(raw.ServiceTypes),
			CreatedAt:         now,
			CreatedBy:         actor,
			UpdatedAt:         now,
			UpdatedBy:         actor,
		})
	}

	return records
}

// distinctTags trims tags and drops empty and repeated ones, keeping
// first-seen order.
func distinctTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// saveWithConflictHandling saves records, skipping or overwriting existing ids.
// Overwrites keep the original creation stamp and snapshot the old state.
func saveWithConflictHandling(
	ctx context.Context,
	store ports.RecordStore,
	records []entities.Record,
	opts ImportOptions,
) (imported, skipped int, err error) {
	for i := range records {
		rec := &records[i]

		existing, err := store.FindRecordByID(ctx, rec.ID)
		switch {
		case errors.Is(err, entities.ErrNotFound):
			existing = nil
		case err != nil:
			return 0, 0, fmt.Errorf("looking up record %s: %w", rec.ID, err)
		}

		change := entities.ChangeCreation
		if existing != nil {
			if opts.OnConflict != ConflictOverwrite {
				skipped++
				continue
			}
			rec.CreatedAt = existing.CreatedAt
			rec.CreatedBy = existing.CreatedBy
			change = entities.ChangeUpdate
			if err := snapshot(ctx, store, existing, change, opts.Actor, "overwritten by import", rec.UpdatedAt); err != nil {
				return 0, 0, err
			}
		}

		if err := store.SaveRecord(ctx, rec); err != nil {
			return 0, 0, fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
		if existing == nil {
			if err := snapshot(ctx, store, rec, change, opts.Actor, "imported", rec.CreatedAt); err != nil {
				return 0, 0, err
			}
		}
		if err := store.LogAction(ctx, &entities.AuditEntry{
			Actor:       opts.Actor,
			Action:      entities.ActionImportRecord,
			TargetTable: entities.TableRecords,
			TargetID:    rec.ID,
			Details:     map[string]any{"change": string(change)},
			CreatedAt:   rec.UpdatedAt,
		}); err != nil {
			return 0, 0, fmt.Errorf("logging import of %s: %w", rec.ID, err)
		}
		imported++
	}

	return imported, skipped, nil
}
