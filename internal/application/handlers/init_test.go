package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/saga-core/internal/domain/mocks"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

func TestInitHandler_Handle(t *testing.T) {
	basePath := t.TempDir()
	handler := NewInitHandler(mocks.NewRelationalDB(), mocks.NewSearchIndex())

	result, err := handler.Handle(context.Background(), basePath, "Iron Throne", "book one")
	require.NoError(t, err)

	assert.Equal(t, "iron_throne", result.ProjectName)
	assert.Equal(t, "saga_iron_throne", result.CollectionName)
	assert.True(t, config.Exists(basePath))

	projects, err := config.LoadProjects(basePath)
	require.NoError(t, err)
	assert.True(t, projects.Exists("iron_throne"))

	collection, err := projects.GetCollection("iron_throne")
	require.NoError(t, err)
	assert.Equal(t, "saga_iron_throne", collection)
}

func TestInitHandler_Handle_DuplicateProject(t *testing.T) {
	basePath := t.TempDir()
	handler := NewInitHandler(mocks.NewRelationalDB(), mocks.NewSearchIndex())

	_, err := handler.Handle(context.Background(), basePath, "Iron Throne", "")
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), basePath, "iron throne", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitHandler_Handle_SecondProjectKeepsConfig(t *testing.T) {
	basePath := t.TempDir()
	handler := NewInitHandler(mocks.NewRelationalDB(), nil)

	_, err := handler.Handle(context.Background(), basePath, "first", "")
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), basePath, "second", "")
	require.NoError(t, err)
	assert.Equal(t, "second", result.ProjectName)

	projects, err := config.LoadProjects(basePath)
	require.NoError(t, err)
	assert.True(t, projects.Exists("first"))
	assert.True(t, projects.Exists("second"))
}
