// Package parsers provides parsers for importing timeline seed data.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// SeedRecord is one entity state parsed from an external source before
// validation. Records feed the timeline store as ordinary snapshot writes.
type SeedRecord struct {
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	EntityName   string         `json:"entity_name,omitempty"`
	ChapterID    string         `json:"chapter_id"`
	ChapterOrder int            `json:"chapter_order"`
	State        map[string]any `json:"state"`
	Summary      string         `json:"summary,omitempty"`
	ChangeReason string         `json:"change_reason,omitempty"`
	SourceText   string         `json:"source_text,omitempty"`
	LineNum      int            `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing seed records from various formats.
type Parser interface {
	Parse(r io.Reader) ([]SeedRecord, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
