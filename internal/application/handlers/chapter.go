package handlers

import (
	"context"
	"time"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// ChapterHandler maintains the chapter registry that timeline ordering and
// referential-integrity checks resolve against.
type ChapterHandler struct {
	db ports.RelationalDB
}

// NewChapterHandler creates a new chapter handler.
func NewChapterHandler(db ports.RelationalDB) *ChapterHandler {
	return &ChapterHandler{db: db}
}

// HandleRegister registers or updates a chapter.
func (h *ChapterHandler) HandleRegister(ctx context.Context, projectID, chapterID string, order int, title string) (*entities.Chapter, error) {
	if chapterID == "" {
		return nil, &entities.ValidationError{Field: "chapter id", Reason: "cannot be empty"}
	}
	if order < 1 {
		return nil, &entities.ValidationError{Field: "chapter order", Reason: "must be positive"}
	}

	chapter := &entities.Chapter{
		ID:           chapterID,
		ProjectID:    projectID,
		ChapterOrder: order,
		Title:        title,
		CreatedAt:    time.Now(),
	}
	if err := h.db.SaveChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// ChapterListResult contains the result of listing chapters.
type ChapterListResult struct {
	Chapters []entities.Chapter `json:"chapters"`
	Total    int                `json:"total"`
}

// HandleList lists a project's chapters ascending by order.
func (h *ChapterHandler) HandleList(ctx context.Context, projectID string) (*ChapterListResult, error) {
	chapters, err := h.db.FindChaptersByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ChapterListResult{Chapters: chapters, Total: len(chapters)}, nil
}
