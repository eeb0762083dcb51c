package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses seed records from JSON format.
type JSONParser struct{}

// Parse reads a JSON array from the reader and returns parsed records.
func (p *JSONParser) Parse(r io.Reader) ([]SeedRecord, error) {
	var records []SeedRecord

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range records {
		records[i].LineNum = i + 1
	}

	return records, nil
}
