package entities

import "time"

// ChangeType indicates why a record snapshot was taken.
type ChangeType string

const (
	ChangeCreation ChangeType = "creation"
	ChangeUpdate   ChangeType = "update"
	ChangeMerge    ChangeType = "merge"
	ChangeArchive  ChangeType = "archive"
)

// RecordSnapshot is a read-only projection of a record at a point in time.
type RecordSnapshot struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	CategoryID        string    `json:"category_id,omitempty"`
	Description       string    `json:"description,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Email             string    `json:"email,omitempty"`
	Website           string    `json:"website,omitempty"`
	Address1          string    `json:"address1,omitempty"`
	Address2          string    `json:"address2,omitempty"`
	City              string    `json:"city,omitempty"`
	State             string    `json:"state,omitempty"`
	PostalCode        string    `json:"postal_code,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Hours             string    `json:"hours,omitempty"`
	IsEmergency       bool      `json:"is_emergency"`
	Is24Hour          bool      `json:"is_24_hour"`
	Eligibility       string    `json:"eligibility,omitempty"`
	PopulationsServed string    `json:"populations_served,omitempty"`
	Insurance         string    `json:"insurance,omitempty"`
	Cost              string    `json:"cost,omitempty"`
	Languages         string    `json:"languages,omitempty"`
	Capacity          string    `json:"capacity,omitempty"`
	ServiceTypes      []string  `json:"service_types,omitempty"`
	IsArchived        bool      `json:"is_archived"`
	ArchiveReason     string    `json:"archive_reason,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
	UpdatedBy         string    `json:"updated_by,omitempty"`
}

// Snapshot builds a RecordSnapshot from the record's current state.
func (r *Record) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		ID:                r.ID,
		Name:              r.Name,
		CategoryID:        r.CategoryID,
		Description:       r.Description,
		Phone:             r.Phone,
		Email:             r.Email,
		Website:           r.Website,
		Address1:          r.Address1,
		Address2:          r.Address2,
		City:              r.City,
		State:             r.State,
		PostalCode:        r.PostalCode,
		Notes:             r.Notes,
		Hours:             r.Hours,
		IsEmergency:       r.IsEmergency,
		Is24Hour:          r.Is24Hour,
		Eligibility:       r.Eligibility,
		PopulationsServed: r.PopulationsServed,
		Insurance:         r.Insurance,
		Cost:              r.Cost,
		Languages:         r.Languages,
		Capacity:          r.Capacity,
		ServiceTypes:      append([]string(nil), r.ServiceTypes...),
		IsArchived:        r.IsArchived,
		ArchiveReason:     r.ArchiveReason,
		UpdatedAt:         r.UpdatedAt,
		UpdatedBy:         r.UpdatedBy,
	}
}

// RecordVersion represents a historical snapshot of a record.
type RecordVersion struct {
	ID         string         `json:"id"`
	RecordID   string         `json:"record_id"`
	Version    int            `json:"version"`
	ChangeType ChangeType     `json:"change_type"`
	Data       RecordSnapshot `json:"data"`
	Reason     string         `json:"reason"`
	Actor      string         `json:"actor"`
	CreatedAt  time.Time      `json:"created_at"`
}
