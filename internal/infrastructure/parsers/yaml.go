package parsers

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser parses records from a YAML sequence.
type YAMLParser struct{}

// Parse reads YAML from the reader and returns parsed records.
func (p *YAMLParser) Parse(r io.Reader) ([]RawRecord, error) {
	var records []RawRecord

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&records); err != nil {
		if err == io.EOF {
			return []RawRecord{}, nil
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	for i := range records {
		records[i].LineNum = i + 1
	}

	return records, nil
}
