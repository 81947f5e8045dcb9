// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/resource-directory/internal/domain/ports"
	"github.com/ersonp/resource-directory/internal/infrastructure/config"
)

// OpenDBFunc opens the relational database described by cfg.
type OpenDBFunc func(cfg config.SQLiteConfig) (ports.RelationalDB, error)

// InitHandler handles directory initialization.
type InitHandler struct {
	openDB OpenDBFunc
}

// NewInitHandler creates a new init handler.
func NewInitHandler(openDB OpenDBFunc) *InitHandler {
	return &InitHandler{
		openDB: openDB,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath   string
	DatabasePath string
}

// Handle writes the default config and creates the database schema.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("directory already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := h.openDB(cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &InitResult{
		ConfigPath:   config.ConfigFilePath(basePath),
		DatabasePath: cfg.SQLite.Path,
	}, nil
}
