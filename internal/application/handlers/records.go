package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// RecordHandler handles read-only record queries.
type RecordHandler struct {
	relationalDB ports.RelationalDB
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(relationalDB ports.RelationalDB) *RecordHandler {
	return &RecordHandler{relationalDB: relationalDB}
}

// RecordListResult contains the result of listing records.
type RecordListResult struct {
	Records []entities.Record `json:"records"`
	Total   int               `json:"total"`
}

// HandleList lists active records.
func (h *RecordHandler) HandleList(ctx context.Context, categoryID string, limit int) (*RecordListResult, error) {
	records, err := h.relationalDB.ListActiveRecords(ctx, ports.RecordFilter{CategoryID: categoryID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return &RecordListResult{Records: records, Total: len(records)}, nil
}

// HistoryResult is the full trail of one record.
type HistoryResult struct {
	Record   *entities.Record         `json:"record"`
	Versions []entities.RecordVersion `json:"versions"`
	Audit    []entities.AuditEntry    `json:"audit"`
	Flags    []entities.ReviewFlag    `json:"flags,omitempty"`
}

// HandleHistory returns a record with its versions, audit entries and review flags.
func (h *RecordHandler) HandleHistory(ctx context.Context, recordID string) (*HistoryResult, error) {
	rec, err := h.relationalDB.FindRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	versions, err := h.relationalDB.FindVersionsByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("loading versions: %w", err)
	}

	audit, err := h.relationalDB.FindAuditLog(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("loading audit log: %w", err)
	}

	flags, err := h.relationalDB.FindReviewFlags(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("loading review flags: %w", err)
	}

	return &HistoryResult{Record: rec, Versions: versions, Audit: audit, Flags: flags}, nil
}
