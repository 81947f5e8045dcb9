// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite" // Pure Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
	"github.com/ersonp/resource-directory/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// memoryPath is the path of a private in-memory database.
const memoryPath = ":memory:"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements ports.RecordStore over a querier.
type store struct {
	q querier
}

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	store
	db   *sql.DB
	path string
}

// defaultBusyTimeout bounds lock waits when the config leaves it unset.
const defaultBusyTimeout = 5 * time.Second

// dataSourceName builds the driver DSN. Pragmas go in the DSN so the driver
// applies them to every pooled connection, not just the first.
func dataSourceName(cfg config.SQLiteConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if cfg.Path != memoryPath {
		pragmas.Add("_pragma", "journal_mode(WAL)")
	}
	return cfg.Path + "?" + pragmas.Encode()
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Every connection to :memory: gets its own database.
	if cfg.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	return &Repository{
		store: store{q: db},
		db:    db,
		path:  cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Directory records
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		address1 TEXT NOT NULL DEFAULT '',
		address2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL DEFAULT '',
		is_emergency INTEGER NOT NULL DEFAULT 0,
		is_24_hour INTEGER NOT NULL DEFAULT 0,
		eligibility TEXT NOT NULL DEFAULT '',
		populations_served TEXT NOT NULL DEFAULT '',
		insurance TEXT NOT NULL DEFAULT '',
		cost TEXT NOT NULL DEFAULT '',
		languages TEXT NOT NULL DEFAULT '',
		capacity TEXT NOT NULL DEFAULT '',
		service_types TEXT NOT NULL DEFAULT '[]',
		is_archived INTEGER NOT NULL DEFAULT 0,
		archived_at TIMESTAMP,
		archived_by TEXT NOT NULL DEFAULT '',
		archive_reason TEXT NOT NULL DEFAULT '',
		merged_into_id TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		updated_by TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_records_active ON records(is_archived, is_deleted);
	CREATE INDEX IF NOT EXISTS idx_records_category ON records(category_id);
	CREATE INDEX IF NOT EXISTS idx_records_name ON records(name, id);

	-- Record version history (snapshots taken before destructive changes)
	CREATE TABLE IF NOT EXISTS record_versions (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		change_type TEXT NOT NULL,
		data TEXT NOT NULL,
		reason TEXT,
		actor TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(record_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_record_versions_record ON record_versions(record_id);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		target_table TEXT NOT NULL,
		target_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_target ON audit_log(target_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);

	-- Duplicate review flags
	CREATE TABLE IF NOT EXISTS review_flags (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_review_flags_record ON review_flags(record_id);
	CREATE INDEX IF NOT EXISTS idx_review_flags_group ON review_flags(group_id);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// RunInTx runs fn inside a transaction, committing only when fn returns nil.
func (r *Repository) RunInTx(ctx context.Context, fn func(store ports.RecordStore) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", mapError(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&store{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into domain sentinels where one applies.
func mapError(err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %v", entities.ErrConflict, err)
	}
	return err
}

const recordColumns = `id, name, category_id, description, phone, email, website,
	address1, address2, city, state, postal_code, notes, hours, is_emergency, is_24_hour,
	eligibility, populations_served, insurance, cost, languages, capacity, service_types,
	is_archived, archived_at, archived_by, archive_reason, merged_into_id, is_deleted,
	created_at, created_by, updated_at, updated_by`

// ListActiveRecords returns records that are neither archived nor deleted,
// ordered by name then id.
func (s *store) ListActiveRecords(ctx context.Context, filter ports.RecordFilter) ([]entities.Record, error) {
	var (
		where = []string{"is_archived = 0", "is_deleted = 0"}
		args  []any
	)
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}

	query := fmt.Sprintf(`SELECT %s FROM records WHERE %s ORDER BY name, id`,
		recordColumns, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", mapError(err))
	}
	defer rows.Close()

	var result []entities.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// FindRecordByID finds a record by id regardless of its archival state.
func (s *store) FindRecordByID(ctx context.Context, id string) (*entities.Record, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveRecord inserts or updates a record.
func (s *store) SaveRecord(ctx context.Context, rec *entities.Record) error {
	tags := rec.ServiceTypes
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshaling service types: %w", err)
	}

	var archivedAt sql.NullTime
	if rec.ArchivedAt != nil {
		archivedAt = sql.NullTime{Time: *rec.ArchivedAt, Valid: true}
	}

	createdAt, updatedAt := rec.CreatedAt, rec.UpdatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			description = excluded.description,
			phone = excluded.phone,
			email = excluded.email,
			website = excluded.website,
			address1 = excluded.address1,
			address2 = excluded.address2,
			city = excluded.city,
			state = excluded.state,
			postal_code = excluded.postal_code,
			notes = excluded.notes,
			hours = excluded.hours,
			is_emergency = excluded.is_emergency,
			is_24_hour = excluded.is_24_hour,
			eligibility = excluded.eligibility,
			populations_served = excluded.populations_served,
			insurance = excluded.insurance,
			cost = excluded.cost,
			languages = excluded.languages,
			capacity = excluded.capacity,
			service_types = excluded.service_types,
			is_archived = excluded.is_archived,
			archived_at = excluded.archived_at,
			archived_by = excluded.archived_by,
			archive_reason = excluded.archive_reason,
			merged_into_id = excluded.merged_into_id,
			is_deleted = excluded.is_deleted,
			created_at = excluded.created_at,
			created_by = excluded.created_by,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`
	_, err = s.q.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.CategoryID, rec.Description,
		rec.Phone, rec.Email, rec.Website,
		rec.Address1, rec.Address2, rec.City, rec.State, rec.PostalCode,
		rec.Notes, rec.Hours, rec.IsEmergency, rec.Is24Hour,
		rec.Eligibility, rec.PopulationsServed, rec.Insurance, rec.Cost, rec.Languages, rec.Capacity,
		string(tagsJSON),
		rec.IsArchived, archivedAt, rec.ArchivedBy, rec.ArchiveReason, rec.MergedIntoID, rec.IsDeleted,
		createdAt, rec.CreatedBy, updatedAt, rec.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("saving record: %w", mapError(err))
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*entities.Record, error) {
	var (
		rec        entities.Record
		tagsJSON   string
		archivedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.CategoryID, &rec.Description,
		&rec.Phone, &rec.Email, &rec.Website,
		&rec.Address1, &rec.Address2, &rec.City, &rec.State, &rec.PostalCode,
		&rec.Notes, &rec.Hours, &rec.IsEmergency, &rec.Is24Hour,
		&rec.Eligibility, &rec.PopulationsServed, &rec.Insurance, &rec.Cost, &rec.Languages, &rec.Capacity,
		&tagsJSON,
		&rec.IsArchived, &archivedAt, &rec.ArchivedBy, &rec.ArchiveReason, &rec.MergedIntoID, &rec.IsDeleted,
		&rec.CreatedAt, &rec.CreatedBy, &rec.UpdatedAt, &rec.UpdatedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", mapError(err))
	}

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &rec.ServiceTypes); err != nil {
			return nil, fmt.Errorf("unmarshaling service types of %s: %w", rec.ID, err)
		}
	}
	if len(rec.ServiceTypes) == 0 {
		rec.ServiceTypes = nil
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		rec.ArchivedAt = &t
	}
	return &rec, nil
}

// SaveVersion saves a new record version.
func (s *store) SaveVersion(ctx context.Context, version *entities.RecordVersion) error {
	data, err := json.Marshal(version.Data)
	if err != nil {
		return fmt.Errorf("marshaling record data: %w", err)
	}

	query := `
		INSERT INTO record_versions (id, record_id, version, change_type, data, reason, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.q.ExecContext(ctx, query,
		version.ID,
		version.RecordID,
		version.Version,
		string(version.ChangeType),
		string(data),
		version.Reason,
		version.Actor,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving record version: %w", mapError(err))
	}
	return nil
}

// CountVersions counts how many versions a record has.
func (s *store) CountVersions(ctx context.Context, recordID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM record_versions WHERE record_id = ?`, recordID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting versions: %w", mapError(err))
	}
	return count, nil
}

// FindVersionsByRecord finds all versions of a record, newest first.
func (s *store) FindVersionsByRecord(ctx context.Context, recordID string) ([]entities.RecordVersion, error) {
	query := `
		SELECT id, record_id, version, change_type, data, reason, actor, created_at
		FROM record_versions
		WHERE record_id = ?
		ORDER BY version DESC
	`
	rows, err := s.q.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", mapError(err))
	}
	defer rows.Close()

	var versions []entities.RecordVersion
	for rows.Next() {
		var (
			v          entities.RecordVersion
			changeType string
			data       string
			reason     sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.RecordID, &v.Version, &changeType, &data, &reason, &v.Actor, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		v.ChangeType = entities.ChangeType(changeType)
		v.Reason = reason.String
		if err := json.Unmarshal([]byte(data), &v.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling version data: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LogAction appends an entry to the audit log and sets its id.
func (s *store) LogAction(ctx context.Context, entry *entities.AuditEntry) error {
	var detailsJSON sql.NullString
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var targetID sql.NullString
	if entry.TargetID != "" {
		targetID = sql.NullString{String: entry.TargetID, Valid: true}
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}

	query := `INSERT INTO audit_log (actor, action, target_table, target_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.q.ExecContext(ctx, query, entry.Actor, entry.Action, entry.TargetTable, targetID, detailsJSON, createdAt)
	if err != nil {
		return fmt.Errorf("logging action: %w", mapError(err))
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific record, newest first.
func (s *store) FindAuditLog(ctx context.Context, targetID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, actor, action, target_table, target_id, details, created_at
		FROM audit_log
		WHERE target_id = ?
		ORDER BY id DESC
	`
	return s.queryAuditLog(ctx, query, targetID)
}

// FindAuditLogByAction finds audit log entries by action type, newest first.
// A non-positive limit returns every entry.
func (s *store) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, actor, action, target_table, target_id, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryAuditLog(ctx, query, action, limit)
}

func (s *store) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", mapError(err))
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var targetID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&entry.Action,
			&entry.TargetTable,
			&targetID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.TargetID = targetID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveReviewFlag stores a duplicate-review flag.
func (s *store) SaveReviewFlag(ctx context.Context, flag *entities.ReviewFlag) error {
	createdAt := flag.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	query := `
		INSERT INTO review_flags (id, record_id, group_id, reason, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, query, flag.ID, flag.RecordID, flag.GroupID, flag.Reason, flag.Actor, createdAt)
	if err != nil {
		return fmt.Errorf("saving review flag: %w", mapError(err))
	}
	return nil
}

// FindReviewFlags finds review flags for a record, oldest first.
func (s *store) FindReviewFlags(ctx context.Context, recordID string) ([]entities.ReviewFlag, error) {
	query := `
		SELECT id, record_id, group_id, reason, actor, created_at
		FROM review_flags
		WHERE record_id = ?
		ORDER BY created_at, id
	`
	rows, err := s.q.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying review flags: %w", mapError(err))
	}
	defer rows.Close()

	var flags []entities.ReviewFlag
	for rows.Next() {
		var f entities.ReviewFlag
		if err := rows.Scan(&f.ID, &f.RecordID, &f.GroupID, &f.Reason, &f.Actor, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning review flag: %w", err)
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}
