// Package mocks provides in-memory test doubles for the domain ports.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/ports"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// RelationalDB is an in-memory implementation of ports.RelationalDB.
// RunInTx snapshots the whole state and restores it when fn fails.
type RelationalDB struct {
	mu sync.Mutex

	Records  map[string]entities.Record
	Versions []entities.RecordVersion
	Audit    []entities.AuditEntry
	Flags    []entities.ReviewFlag

	// Err is returned by every operation when set.
	Err error
	// FailSaveOn makes the Nth SaveRecord call (1-based) fail.
	FailSaveOn int
	// FailLogOn makes the Nth LogAction call (1-based) fail.
	FailLogOn int
	// TxErr is returned by RunInTx after fn succeeds, simulating a failed commit.
	TxErr error

	saveCalls   int
	logCalls    int
	nextAuditID int64
	TxCount     int
}

// NewRelationalDB creates a new mock RelationalDB holding the given records.
func NewRelationalDB(records ...entities.Record) *RelationalDB {
	m := &RelationalDB{Records: make(map[string]entities.Record)}
	for i := range records {
		m.Records[records[i].ID] = records[i].Clone()
	}
	return m
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

type state struct {
	records  map[string]entities.Record
	versions []entities.RecordVersion
	audit    []entities.AuditEntry
	flags    []entities.ReviewFlag
	auditID  int64
}

func (m *RelationalDB) capture() state {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := state{
		records:  make(map[string]entities.Record, len(m.Records)),
		versions: append([]entities.RecordVersion(nil), m.Versions...),
		audit:    append([]entities.AuditEntry(nil), m.Audit...),
		flags:    append([]entities.ReviewFlag(nil), m.Flags...),
		auditID:  m.nextAuditID,
	}
	for id, r := range m.Records {
		s.records[id] = r.Clone()
	}
	return s
}

func (m *RelationalDB) restore(s state) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = s.records
	m.Versions = s.versions
	m.Audit = s.audit
	m.Flags = s.flags
	m.nextAuditID = s.auditID
}

// RunInTx runs fn and rolls every write back if it fails.
func (m *RelationalDB) RunInTx(ctx context.Context, fn func(store ports.RecordStore) error) error {
	if m.Err != nil {
		return m.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.TxCount++
	backup := m.capture()
	if err := fn(m); err != nil {
		m.restore(backup)
		return err
	}
	if m.TxErr != nil {
		m.restore(backup)
		return m.TxErr
	}
	return nil
}

// ListActiveRecords returns active records ordered by name then id.
func (m *RelationalDB) ListActiveRecords(_ context.Context, filter ports.RecordFilter) ([]entities.Record, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var wanted map[string]struct{}
	if len(filter.IDs) > 0 {
		wanted = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			wanted[id] = struct{}{}
		}
	}

	result := make([]entities.Record, 0, len(m.Records))
	for _, r := range m.Records {
		if !r.IsActive() {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[r.ID]; !ok {
				continue
			}
		}
		if filter.CategoryID != "" && r.CategoryID != filter.CategoryID {
			continue
		}
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// FindRecordByID returns a copy of the record.
func (m *RelationalDB) FindRecordByID(_ context.Context, id string) (*entities.Record, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, entities.ErrNotFound)
	}
	c := r.Clone()
	return &c, nil
}

// SaveRecord stores a copy of the record.
func (m *RelationalDB) SaveRecord(_ context.Context, record *entities.Record) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.FailSaveOn > 0 && m.saveCalls == m.FailSaveOn {
		return fmt.Errorf("saving record %s: %w", record.ID, ErrInjected)
	}
	m.Records[record.ID] = record.Clone()
	return nil
}

// SaveVersion saves a new record version.
func (m *RelationalDB) SaveVersion(_ context.Context, version *entities.RecordVersion) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Versions = append(m.Versions, *version)
	return nil
}

// CountVersions counts how many versions a record has.
func (m *RelationalDB) CountVersions(_ context.Context, recordID string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.Versions {
		if m.Versions[i].RecordID == recordID {
			count++
		}
	}
	return count, nil
}

// FindVersionsByRecord finds all versions of a record, newest first.
func (m *RelationalDB) FindVersionsByRecord(_ context.Context, recordID string) ([]entities.RecordVersion, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.RecordVersion
	for i := len(m.Versions) - 1; i >= 0; i-- {
		if m.Versions[i].RecordID == recordID {
			result = append(result, m.Versions[i])
		}
	}
	return result, nil
}

// LogAction appends an audit entry.
func (m *RelationalDB) LogAction(_ context.Context, entry *entities.AuditEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logCalls++
	if m.FailLogOn > 0 && m.logCalls == m.FailLogOn {
		return fmt.Errorf("logging %s: %w", entry.Action, ErrInjected)
	}
	m.nextAuditID++
	e := *entry
	e.ID = m.nextAuditID
	m.Audit = append(m.Audit, e)
	return nil
}

// FindAuditLog finds audit log entries for a specific record, newest first.
func (m *RelationalDB) FindAuditLog(_ context.Context, targetID string) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].TargetID == targetID {
			result = append(result, m.Audit[i])
		}
	}
	return result, nil
}

// FindAuditLogByAction finds audit log entries by action type, newest first.
func (m *RelationalDB) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].Action != action {
			continue
		}
		result = append(result, m.Audit[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// SaveReviewFlag stores a review flag.
func (m *RelationalDB) SaveReviewFlag(_ context.Context, flag *entities.ReviewFlag) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flags = append(m.Flags, *flag)
	return nil
}

// FindReviewFlags finds review flags for a record.
func (m *RelationalDB) FindReviewFlags(_ context.Context, recordID string) ([]entities.ReviewFlag, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.ReviewFlag
	for i := range m.Flags {
		if m.Flags[i].RecordID == recordID {
			result = append(result, m.Flags[i])
		}
	}
	return result, nil
}

// Record returns a copy of a stored record, or the zero value.
func (m *RelationalDB) Record(id string) entities.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.Records[id]
	return r.Clone()
}

// AuditCount returns the number of stored audit entries.
func (m *RelationalDB) AuditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Audit)
}
