package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/services"
	"github.com/ersonp/saga-core/internal/infrastructure/parsers"
)

// ImportHandler handles backfilling timelines from seed files. Records are
// written through the timeline store directly so the caller sees per-record
// errors; the index is rebuilt inline for each imported entity.
type ImportHandler struct {
	timelines *services.TimelineService
	index     ports.SearchIndex
}

// NewImportHandler creates a new import handler. The index may be nil.
func NewImportHandler(timelines *services.TimelineService, index ports.SearchIndex) *ImportHandler {
	return &ImportHandler{
		timelines: timelines,
		index:     index,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format string // "json", "csv", or "auto"
	DryRun bool   // Validate without saving
}

// ImportError describes a record that could not be imported.
type ImportError struct {
	Line    int
	Message string
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
}

// Handle imports seed records from a file.
func (h *ImportHandler) Handle(ctx context.Context, projectID, filePath string, opts ImportOptions) (*ImportResult, error) {
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	records, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	if len(records) == 0 {
		return &ImportResult{}, nil
	}

	// Snapshot writes must arrive in chapter order per entity.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ChapterOrder < records[j].ChapterOrder
	})

	result := &ImportResult{}
	for _, record := range records {
		if err := h.importRecord(ctx, projectID, record, opts.DryRun); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, ImportError{
				Line:    record.LineNum,
				Message: err.Error(),
			})
			continue
		}
		result.Imported++
	}
	return result, nil
}

// importRecord validates one seed record and, unless dry-running, writes its
// snapshot and rebuilds the entity's index entry.
func (h *ImportHandler) importRecord(ctx context.Context, projectID string, record parsers.SeedRecord, dryRun bool) error {
	entityType, err := entities.ParseEntityType(record.EntityType)
	if err != nil {
		return err
	}

	input := services.SnapshotInput{
		EntityType:    entityType,
		EntityID:      record.EntityID,
		ChapterID:     record.ChapterID,
		ChapterOrder:  record.ChapterOrder,
		State:         record.State,
		ChangeSummary: record.Summary,
		ChangeReason:  record.ChangeReason,
		SourceText:    record.SourceText,
	}

	if dryRun {
		return services.ValidateSnapshotInput(projectID, input)
	}

	if _, err := h.timelines.WriteSnapshot(ctx, projectID, input); err != nil {
		return err
	}

	if h.index != nil {
		if err := h.index.Rebuild(ctx, record.EntityID, seedContent(record), map[string]string{
			"project_id":  projectID,
			"entity_type": record.EntityType,
			"chapter_id":  record.ChapterID,
		}); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
	}
	return nil
}

// seedContent renders the searchable text for an imported record.
func seedContent(record parsers.SeedRecord) string {
	content := record.EntityName
	if content == "" {
		content = record.EntityID
	}
	if record.Summary != "" {
		content += "\n" + record.Summary
	}
	if len(record.State) > 0 {
		if stateJSON, err := json.Marshal(record.State); err == nil {
			content += "\n" + string(stateJSON)
		}
	}
	return content
}
