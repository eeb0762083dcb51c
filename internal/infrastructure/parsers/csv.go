package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses seed records from CSV format.
type CSVParser struct{}

// statePrefix marks columns holding state fields, e.g. "state_location".
const statePrefix = "state_"

// Parse reads CSV from the reader and returns parsed records.
// Required columns: entity_type, entity_id, chapter_id, chapter_order.
// Optional columns: entity_name, summary, change_reason, source_text, and any
// number of state_* columns whose suffix becomes the state field name.
func (p *CSVParser) Parse(r io.Reader) ([]SeedRecord, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	requiredCols := []string{"entity_type", "entity_id", "chapter_id", "chapter_order"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to SeedRecords.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]SeedRecord, error) {
	var records []SeedRecord
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		record, err := p.parseRow(row, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// parseRow converts a CSV row to a SeedRecord.
func (p *CSVParser) parseRow(row []string, colIndex map[string]int, lineNum int) (SeedRecord, error) {
	record := SeedRecord{
		EntityType:   getColumn(row, colIndex, "entity_type"),
		EntityID:     getColumn(row, colIndex, "entity_id"),
		EntityName:   getColumn(row, colIndex, "entity_name"),
		ChapterID:    getColumn(row, colIndex, "chapter_id"),
		Summary:      getColumn(row, colIndex, "summary"),
		ChangeReason: getColumn(row, colIndex, "change_reason"),
		SourceText:   getColumn(row, colIndex, "source_text"),
		LineNum:      lineNum,
	}

	orderStr := getColumn(row, colIndex, "chapter_order")
	order, err := strconv.Atoi(orderStr)
	if err != nil {
		return SeedRecord{}, fmt.Errorf("line %d: invalid chapter_order %q: %w", lineNum, orderStr, err)
	}
	record.ChapterOrder = order

	for col, idx := range colIndex {
		if !strings.HasPrefix(col, statePrefix) || idx >= len(row) {
			continue
		}
		if record.State == nil {
			record.State = make(map[string]any)
		}
		record.State[strings.TrimPrefix(col, statePrefix)] = row[idx]
	}

	return record, nil
}

// getColumn safely retrieves a column value from a row.
func getColumn(row []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(row) {
		return row[idx]
	}
	return ""
}
