package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/resource-directory/internal/application/handlers"
	"github.com/ersonp/resource-directory/internal/domain/ports"
	"github.com/ersonp/resource-directory/internal/domain/services"
	"github.com/ersonp/resource-directory/internal/infrastructure/config"
	"github.com/ersonp/resource-directory/internal/infrastructure/relationaldb/sqlite"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config        *config.Config
	DedupeHandler *handlers.DedupeHandler
	ImportHandler *handlers.ImportHandler
	RecordHandler *handlers.RecordHandler
}

// withDeps opens the database, builds the services and handlers, then calls
// the provided function. It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	if state.cfgErr != nil {
		return fmt.Errorf("loading config: %w", state.cfgErr)
	}
	cfg := state.cfg

	detectionCfg := services.DetectionConfig{
		FuzzyThreshold: cfg.Detection.FuzzyThreshold,
		FuzzyBlocking:  services.BlockingStrategy(cfg.Detection.FuzzyBlocking),
	}
	if err := detectionCfg.Validate(); err != nil {
		return err
	}

	relationalDB, err := openRelationalDB(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer relationalDB.Close()

	if err := relationalDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	logger := state.logger
	detector := services.NewDuplicateDetector(relationalDB, state.metrics, logger.Named("detector"), detectionCfg)
	resolver := services.NewDuplicateResolver(relationalDB, state.metrics, logger.Named("resolver"), cfg.Resolver.TxTimeout)
	importService := services.NewImportService(relationalDB, logger.Named("import"))

	return fn(&Deps{
		Config:        cfg,
		DedupeHandler: handlers.NewDedupeHandler(detector, resolver),
		ImportHandler: handlers.NewImportHandler(importService),
		RecordHandler: handlers.NewRecordHandler(relationalDB),
	})
}

// openRelationalDB opens the SQLite repository. It satisfies handlers.OpenDBFunc.
func openRelationalDB(cfg config.SQLiteConfig) (ports.RelationalDB, error) {
	repo, err := sqlite.NewRepository(cfg)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// resolveActor returns the --actor value, falling back to the environment.
// Mutating commands refuse to run without one.
func resolveActor() (string, error) {
	if actor := strings.TrimSpace(globalActor); actor != "" {
		return actor, nil
	}
	if actor := strings.TrimSpace(os.Getenv(EnvActor)); actor != "" {
		return actor, nil
	}
	return "", errors.New("actor is required (use --actor or set " + EnvActor + ")")
}
