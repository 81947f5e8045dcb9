// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/resource-directory/internal/domain/entities"
)

// RecordFilter narrows a ListActiveRecords query.
type RecordFilter struct {
	// IDs restricts the result to the given record ids when non-empty.
	IDs []string
	// CategoryID restricts the result to one category when non-empty.
	CategoryID string
	// Limit caps the number of records returned; zero means no limit.
	Limit int
}

// RecordStore is the set of record, version and audit operations that are
// available both on the database and inside a transaction.
type RecordStore interface {
	// ListActiveRecords returns records that are neither archived nor deleted,
	// ordered by name then id.
	ListActiveRecords(ctx context.Context, filter RecordFilter) ([]entities.Record, error)

	// FindRecordByID finds a record by id regardless of its archival state.
	// Returns an error matching entities.ErrNotFound if it does not exist.
	FindRecordByID(ctx context.Context, id string) (*entities.Record, error)

	// SaveRecord inserts or updates a record.
	SaveRecord(ctx context.Context, record *entities.Record) error

	// SaveVersion saves a new record version.
	SaveVersion(ctx context.Context, version *entities.RecordVersion) error

	// CountVersions counts how many versions a record has.
	CountVersions(ctx context.Context, recordID string) (int, error)

	// LogAction appends an entry to the audit log.
	LogAction(ctx context.Context, entry *entities.AuditEntry) error

	// SaveReviewFlag stores a duplicate-review flag.
	SaveReviewFlag(ctx context.Context, flag *entities.ReviewFlag) error
}

// RelationalDB defines the interface for relational database operations.
type RelationalDB interface {
	RecordStore

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// RunInTx runs fn inside one transaction. The transaction commits only
	// if fn returns nil; any error rolls every write back.
	RunInTx(ctx context.Context, fn func(store RecordStore) error) error

	// FindVersionsByRecord finds all versions of a record, newest first.
	FindVersionsByRecord(ctx context.Context, recordID string) ([]entities.RecordVersion, error)

	// FindAuditLog finds audit log entries for a specific record, newest first.
	FindAuditLog(ctx context.Context, targetID string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)

	// FindReviewFlags finds review flags for a record.
	FindReviewFlags(ctx context.Context, recordID string) ([]entities.ReviewFlag, error)
}
