// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

// InitHandler handles project initialization.
type InitHandler struct {
	db    ports.RelationalDB
	index ports.SearchIndex
}

// NewInitHandler creates a new init handler.
func NewInitHandler(db ports.RelationalDB, index ports.SearchIndex) *InitHandler {
	return &InitHandler{
		db:    db,
		index: index,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath     string
	ProjectName    string
	CollectionName string
	DatabasePath   string
}

// Handle initializes a project: writes the default config on first use,
// registers the project, and prepares its database and index collection.
func (h *InitHandler) Handle(ctx context.Context, basePath, projectName, description string) (*InitResult, error) {
	if !config.Exists(basePath) {
		if err := config.WriteDefault(basePath); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	projects, err := config.LoadProjects(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading project registry: %w", err)
	}

	name := config.SanitizeProjectName(projectName)
	if projects.Exists(name) {
		return nil, fmt.Errorf("project %q already exists", name)
	}

	collection := config.GenerateCollectionName(projectName)
	projects.Add(name, config.ProjectEntry{Collection: collection, Description: description})
	if err := projects.Save(basePath); err != nil {
		return nil, fmt.Errorf("saving project registry: %w", err)
	}

	if h.db != nil {
		if err := h.db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	if h.index != nil {
		if err := h.index.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	return &InitResult{
		ConfigPath:     config.ConfigFilePath(basePath),
		ProjectName:    name,
		CollectionName: collection,
		DatabasePath:   config.SQLitePathForProject(basePath, name),
	}, nil
}
