// Package entities contains core domain data structures.
package entities

import "time"

// Record is a single community-service resource in the directory.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CategoryID  string `json:"category_id,omitempty"`
	Description string `json:"description,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	Address1   string `json:"address1,omitempty"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`

	Notes       string `json:"notes,omitempty"`
	Hours       string `json:"hours,omitempty"`
	IsEmergency bool   `json:"is_emergency"`
	Is24Hour    bool   `json:"is_24_hour"`

	Eligibility       string `json:"eligibility,omitempty"`
	PopulationsServed string `json:"populations_served,omitempty"`
	Insurance         string `json:"insurance,omitempty"`
	Cost              string `json:"cost,omitempty"`
	Languages         string `json:"languages,omitempty"`
	Capacity          string `json:"capacity,omitempty"`

	// ServiceTypes holds tag references, in insertion order.
	ServiceTypes []string `json:"service_types,omitempty"`

	IsArchived    bool       `json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchivedBy    string     `json:"archived_by,omitempty"`
	ArchiveReason string     `json:"archive_reason,omitempty"`
	MergedIntoID  string     `json:"merged_into_id,omitempty"`
	IsDeleted     bool       `json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// IsActive reports whether the record is neither archived nor soft-deleted.
func (r Record) IsActive() bool {
	return !r.IsArchived && !r.IsDeleted
}

// Field returns the value of a mergeable scalar field.
func (r *Record) Field(f MergeField) string {
	switch f {
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	case FieldWebsite:
		return r.Website
	case FieldDescription:
		return r.Description
	case FieldNotes:
		return r.Notes
	case FieldHours:
		return r.Hours
	case FieldEligibility:
		return r.Eligibility
	case FieldPopulationsServed:
		return r.PopulationsServed
	case FieldInsurance:
		return r.Insurance
	case FieldCost:
		return r.Cost
	case FieldLanguages:
		return r.Languages
	case FieldCapacity:
		return r.Capacity
	default:
		return ""
	}
}

// SetField assigns a mergeable scalar field. Unknown fields are ignored.
func (r *Record) SetField(f MergeField, value string) {
	switch f {
	case FieldPhone:
		r.Phone = value
	case FieldEmail:
		r.Email = value
	case FieldWebsite:
		r.Website = value
	case FieldDescription:
		r.Description = value
	case FieldNotes:
		r.Notes = value
	case FieldHours:
		r.Hours = value
	case FieldEligibility:
		r.Eligibility = value
	case FieldPopulationsServed:
		r.PopulationsServed = value
	case FieldInsurance:
		r.Insurance = value
	case FieldCost:
		r.Cost = value
	case FieldLanguages:
		r.Languages = value
	case FieldCapacity:
		r.Capacity = value
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() Record {
	c := *r
	if r.ServiceTypes != nil {
		c.ServiceTypes = append([]string(nil), r.ServiceTypes...)
	}
	if r.ArchivedAt != nil {
		t := *r.ArchivedAt
		c.ArchivedAt = &t
	}
	return c
}
