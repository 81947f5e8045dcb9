// Package parsers provides parsers for importing directory records from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawRecord is a directory record parsed from an external source before validation.
type RawRecord struct {
	ID                string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name              string   `json:"name" yaml:"name" validate:"required,max=500"`
	CategoryID        string   `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	Phone             string   `json:"phone,omitempty" yaml:"phone,omitempty" validate:"max=50"`
	Email             string   `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Website           string   `json:"website,omitempty" yaml:"website,omitempty" validate:"max=500"`
	Address1          string   `json:"address1,omitempty" yaml:"address1,omitempty"`
	Address2          string   `json:"address2,omitempty" yaml:"address2,omitempty"`
	City              string   `json:"city,omitempty" yaml:"city,omitempty"`
	State             string   `json:"state,omitempty" yaml:"state,omitempty" validate:"max=50"`
	PostalCode        string   `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Notes             string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Hours             string   `json:"hours,omitempty" yaml:"hours,omitempty"`
	IsEmergency       bool     `json:"is_emergency,omitempty" yaml:"is_emergency,omitempty"`
	Is24Hour          bool     `json:"is_24_hour,omitempty" yaml:"is_24_hour,omitempty"`
	Eligibility       string   `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`
	PopulationsServed string   `json:"populations_served,omitempty" yaml:"populations_served,omitempty"`
	Insurance         string   `json:"insurance,omitempty" yaml:"insurance,omitempty"`
	Cost              string   `json:"cost,omitempty" yaml:"cost,omitempty"`
	Languages         string   `json:"languages,omitempty" yaml:"languages,omitempty"`
	Capacity          string   `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	ServiceTypes      []string `json:"service_types,omitempty" yaml:"service_types,omitempty"`
	LineNum           int      `json:"-" yaml:"-"` // Position in the source file (set by parser)
}

// Parser defines the interface for parsing records from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawRecord, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv", "yaml".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	case "yaml", "yml":
		return &YAMLParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
