package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ersonp/resource-directory/internal/domain/services"
	"github.com/ersonp/resource-directory/internal/infrastructure/parsers"
)

// FormatAuto picks the parser from the file extension.
const FormatAuto = "auto"

// ImportHandler loads directory records from a JSON, CSV or YAML file into the store.
type ImportHandler struct {
	service *services.ImportService
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{service: service}
}

// ImportOptions describes one file import.
type ImportOptions struct {
	Format     string // json, csv, yaml or auto
	DryRun     bool
	OnConflict services.ConflictStrategy
	// Actor is stamped on every imported record and its audit entry.
	Actor string
}

// Handle parses the file and hands its rows to the import service. Rows that
// fail validation come back in the result; a file that cannot be read or
// parsed fails the whole import.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*services.ImportResult, error) {
	parser, err := recordParser(filePath, opts.Format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	raws, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(filePath), err)
	}
	if len(raws) == 0 {
		return &services.ImportResult{}, nil
	}

	return h.service.Import(ctx, raws, services.ImportOptions{
		DryRun:     opts.DryRun,
		OnConflict: opts.OnConflict,
		Actor:      opts.Actor,
	})
}

func recordParser(filePath, format string) (parsers.Parser, error) {
	if format == "" || format == FormatAuto {
		if p := parsers.ForFile(filePath); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("unsupported format for file %s (use .json, .csv, .yaml or --format)", filepath.Base(filePath))
	}

	if p := parsers.ForFormat(format); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("unsupported format %q (valid: json, csv, yaml, auto)", format)
}
