package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/application/handlers"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
	embedder "github.com/ersonp/saga-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/saga-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/saga-core/internal/infrastructure/searchindex/qdrant"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
		RunE:  runProjectsList,
	}

	cmd.AddCommand(
		newProjectsListCmd(),
		newProjectsCreateCmd(),
		newProjectsDeleteCmd(),
	)

	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE:  runProjectsList,
	}
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	if len(projects.Projects) == 0 {
		fmt.Println("No projects configured.")
		fmt.Println("Use 'saga projects create NAME' to create a project.")
		return nil
	}

	fmt.Printf("%-20s %-25s %s\n", "NAME", "COLLECTION", "DESCRIPTION")
	fmt.Printf("%-20s %-25s %s\n", "----", "----------", "-----------")

	for name, project := range projects.Projects {
		fmt.Printf("%-20s %-25s %s\n", name, project.Collection, project.Description)
	}

	return nil
}

func newProjectsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsCreate(cmd, args[0], description)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")

	return cmd
}

func runProjectsCreate(cmd *cobra.Command, name string, description string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if err := os.MkdirAll(config.ProjectDir(cwd, name), 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	db, err := sqlite.NewRepository(config.SQLiteConfig{Path: config.SQLitePathForProject(cwd, name)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer db.Close()

	index, err := openIndexForCollection(cwd, config.GenerateCollectionName(name))
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	handler := handlers.NewInitHandler(db, index)
	result, err := handler.Handle(ctx, cwd, name, description)
	if err != nil {
		return err
	}

	fmt.Printf("Created project %q\n", result.ProjectName)
	fmt.Printf("  config:     %s\n", result.ConfigPath)
	fmt.Printf("  database:   %s\n", result.DatabasePath)
	fmt.Printf("  collection: %s\n", result.CollectionName)

	return nil
}

func newProjectsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without confirmation of tracked data")

	return cmd
}

func runProjectsDelete(cmd *cobra.Command, name string, force bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	canonical := config.SanitizeProjectName(name)
	if !projects.Exists(canonical) {
		return fmt.Errorf("project %q not found", canonical)
	}

	if !force {
		if _, statErr := os.Stat(config.SQLitePathForProject(cwd, name)); statErr == nil {
			return fmt.Errorf("project %q has tracked data, use --force to delete", canonical)
		}
	}

	if err := os.RemoveAll(config.ProjectDir(cwd, name)); err != nil {
		return fmt.Errorf("removing project data: %w", err)
	}

	projects.Remove(canonical)
	if err := projects.Save(cwd); err != nil {
		return fmt.Errorf("saving projects: %w", err)
	}

	fmt.Printf("Deleted project %q\n", canonical)
	return nil
}

// openIndexForCollection builds a search index client for a collection when
// embedder credentials are configured. Returns nil without credentials.
func openIndexForCollection(basePath, collection string) (ports.SearchIndex, error) {
	cfg, err := config.Load(basePath)
	if err != nil {
		// First project create writes the config after this point.
		cfg = config.Default()
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	}

	if cfg.Embedder.APIKey == "" {
		return nil, nil
	}

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	qdrantCfg := cfg.Qdrant
	qdrantCfg.Collection = collection

	index, err := qdrant.NewIndex(qdrantCfg, emb, embedder.VectorSize)
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}
	return index, nil
}
