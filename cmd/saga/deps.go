package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ersonp/saga-core/internal/application/handlers"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/services"
	"github.com/ersonp/saga-core/internal/infrastructure/checker"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
	embedder "github.com/ersonp/saga-core/internal/infrastructure/embedder/openai"
	llm "github.com/ersonp/saga-core/internal/infrastructure/llm/openai"
	"github.com/ersonp/saga-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/saga-core/internal/infrastructure/searchindex/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config   *config.Config
	Projects *config.ProjectsConfig

	Timelines *handlers.TimelineHandler
	Loops     *handlers.PlotLoopHandler
	Warnings  *handlers.WarningHandler
	Chapters  *handlers.ChapterHandler
	Import    *handlers.ImportHandler
	Audit     *handlers.AuditHandler

	// Search is nil when no embedder credentials are configured.
	Search *handlers.SearchHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	db     *sqlite.Repository
	index  ports.SearchIndex
	fabric *services.TriggerFabric
}

// withDeps loads config and builds dependencies, then calls the provided
// function. The trigger fabric is drained and everything closed afterwards.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level
// components.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	if globalProject == "" {
		return errors.New("project is required (use --project flag)")
	}

	collection, err := projects.GetCollection(config.SanitizeProjectName(globalProject))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.ProjectDir(cwd, globalProject), 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	db, err := sqlite.NewRepository(config.SQLiteConfig{Path: config.SQLitePathForProject(cwd, globalProject)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The embedder, index and checker are optional: without OpenAI
	// credentials the core timeline and loop commands still work, and the
	// fabric simply skips the dispatches that need them.
	var index ports.SearchIndex
	var consistency ports.ConsistencyChecker
	var searchHandler *handlers.SearchHandler

	if cfg.Embedder.APIKey != "" {
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		qdrantCfg := cfg.Qdrant
		qdrantCfg.Collection = collection

		idx, err := qdrant.NewIndex(qdrantCfg, emb, embedder.VectorSize)
		if err != nil {
			return fmt.Errorf("creating search index: %w", err)
		}
		defer idx.Close()
		index = idx

		llmClient, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating llm client: %w", err)
		}
		consistency = checker.NewChecker(db, llmClient)

		searchHandler = handlers.NewSearchHandler(services.NewSearchService(index))
	} else {
		logger.Warn("OPENAI_API_KEY not set, search and consistency checks disabled")
	}

	timelineService := services.NewTimelineService(db)
	warningService := services.NewWarningService(db)

	fabric := services.NewTriggerFabric(db, timelineService, warningService, index, consistency, db, logger, services.FabricConfig{
		Workers:      cfg.Fabric.Workers,
		CheckTimeout: time.Duration(cfg.Fabric.CheckTimeoutSeconds) * time.Second,
	})
	fabric.Start()
	defer fabric.Stop()

	loopService := services.NewPlotLoopService(db, fabric)

	deps := &internalDeps{
		Deps: Deps{
			Config:    cfg,
			Projects:  projects,
			Timelines: handlers.NewTimelineHandler(timelineService, db, fabric),
			Loops:     handlers.NewPlotLoopHandler(loopService),
			Warnings:  handlers.NewWarningHandler(warningService),
			Chapters:  handlers.NewChapterHandler(db),
			Import:    handlers.NewImportHandler(timelineService, index),
			Audit:     handlers.NewAuditHandler(db),
			Search:    searchHandler,
		},
		db:     db,
		index:  index,
		fabric: fabric,
	}

	return fn(deps)
}

// projectID returns the canonical id of the project selected by the global
// flag.
func projectID() string {
	return config.SanitizeProjectName(globalProject)
}
