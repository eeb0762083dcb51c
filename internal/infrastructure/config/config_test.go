package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeProjectName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "myproject",
			expected: "myproject",
		},
		{
			name:     "uppercase converted",
			input:    "MyProject",
			expected: "myproject",
		},
		{
			name:     "spaces to underscores",
			input:    "my project",
			expected: "my_project",
		},
		{
			name:     "hyphens to underscores",
			input:    "my-project",
			expected: "my_project",
		},
		{
			name:     "special characters removed",
			input:    "my@project!",
			expected: "myproject",
		},
		{
			name:     "consecutive underscores collapsed",
			input:    "my--project",
			expected: "my_project",
		},
		{
			name:     "leading trailing underscores trimmed",
			input:    "-my-project-",
			expected: "my_project",
		},
		{
			name:     "empty string returns default",
			input:    "",
			expected: "default",
		},
		{
			name:     "only special chars returns default",
			input:    "!!!",
			expected: "default",
		},
		{
			name:     "numbers preserved",
			input:    "project123",
			expected: "project123",
		},
		{
			name:     "complex mixed input",
			input:    "Iron-Throne (Book 1)",
			expected: "iron_throne_book_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeProjectName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGenerateCollectionName(t *testing.T) {
	tests := []struct {
		name        string
		projectName string
		expected    string
	}{
		{
			name:        "simple project",
			projectName: "myproject",
			expected:    "saga_myproject",
		},
		{
			name:        "project with spaces",
			projectName: "my project",
			expected:    "saga_my_project",
		},
		{
			name:        "project with special chars",
			projectName: "Iron-Throne!",
			expected:    "saga_iron_throne",
		},
		{
			name:        "empty project uses default",
			projectName: "",
			expected:    "saga_default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateCollectionName(tt.projectName)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 2, cfg.Fabric.Workers)
	assert.Equal(t, 30, cfg.Fabric.CheckTimeoutSeconds)
}

func TestConfigDir(t *testing.T) {
	result := ConfigDir("/home/user/project")
	assert.Equal(t, "/home/user/project/.saga", result)
}

func TestConfigFilePath(t *testing.T) {
	result := ConfigFilePath("/home/user/project")
	assert.Equal(t, "/home/user/project/.saga/config.yaml", result)
}

func TestLoadProjectsMissingFileReturnsEmpty(t *testing.T) {
	cfg, err := LoadProjects(t.TempDir())

	assert.NoError(t, err)
	assert.NotNil(t, cfg.Projects)
	assert.Empty(t, cfg.Projects)
}

func TestProjectsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := &ProjectsConfig{}
	cfg.Add("Iron Throne", ProjectEntry{Collection: "saga_iron_throne", Description: "epic"})
	assert.NoError(t, cfg.Save(dir))

	loaded, err := LoadProjects(dir)
	assert.NoError(t, err)
	assert.True(t, loaded.Exists("Iron Throne"))

	collection, err := loaded.GetCollection("Iron Throne")
	assert.NoError(t, err)
	assert.Equal(t, "saga_iron_throne", collection)
}
