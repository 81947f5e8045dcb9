package entities

import "time"

// Audit action kinds written by this module.
const (
	ActionMergeDuplicates  = "merge_duplicates"
	ActionArchiveDuplicate = "archive_duplicate"
	ActionArchiveRecord    = "archive_record"
	ActionFlagForReview    = "flag_for_review"
	ActionImportRecord     = "import_record"
)

// TableRecords is the audit target table for directory records.
const TableRecords = "records"

// AuditEntry represents a logged action in the system. Entries are append-only.
type AuditEntry struct {
	ID          int64          `json:"id"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	TargetTable string         `json:"target_table"`
	TargetID    string         `json:"target_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ReviewFlag marks a record for human duplicate review.
type ReviewFlag struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	GroupID   string    `json:"group_id"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}
