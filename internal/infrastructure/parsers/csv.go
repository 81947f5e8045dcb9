package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ServiceTypeSeparator splits the service_types CSV column.
const ServiceTypeSeparator = ";"

// CSVParser parses records from CSV with a header row.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed records.
// The name column is required; every other RawRecord column is optional.
func (p *CSVParser) Parse(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRows(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	if _, ok := colIndex["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	return colIndex, nil
}

// readRows reads all data rows and converts them to RawRecords.
func (p *CSVParser) readRows(reader *csv.Reader, colIndex map[string]int) ([]RawRecord, error) {
	var records []RawRecord
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rec, err := p.parseRow(row, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseRow converts a CSV row to a RawRecord.
func (p *CSVParser) parseRow(row []string, colIndex map[string]int, lineNum int) (RawRecord, error) {
	col := func(name string) string { return getColumn(row, colIndex, name) }

	rec := RawRecord{
		ID:                col("id"),
		Name:              col("name"),
		CategoryID:        col("category_id"),
		Description:       col("description"),
		Phone:             col("phone"),
		Email:             col("email"),
		Website:           col("website"),
		Address1:          col("address1"),
		Address2:          col("address2"),
		City:              col("city"),
		State:             col("state"),
		PostalCode:        col("postal_code"),
		Notes:             col("notes"),
		Hours:             col("hours"),
		Eligibility:       col("eligibility"),
		PopulationsServed: col("populations_served"),
		Insurance:         col("insurance"),
		Cost:              col("cost"),
		Languages:         col("languages"),
		Capacity:          col("capacity"),
		LineNum:           lineNum,
	}

	for _, tag := range strings.Split(col("service_types"), ServiceTypeSeparator) {
		if tag = strings.TrimSpace(tag); tag != "" {
			rec.ServiceTypes = append(rec.ServiceTypes, tag)
		}
	}

	var err error
	if rec.IsEmergency, err = parseBool(col("is_emergency")); err != nil {
		return RawRecord{}, fmt.Errorf("line %d: invalid is_emergency value: %w", lineNum, err)
	}
	if rec.Is24Hour, err = parseBool(col("is_24_hour")); err != nil {
		return RawRecord{}, fmt.Errorf("line %d: invalid is_24_hour value: %w", lineNum, err)
	}

	return rec, nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// getColumn safely retrieves a column value from a row.
func getColumn(row []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}
