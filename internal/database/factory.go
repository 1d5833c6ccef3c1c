package database

import (
	"fmt"
	"os"
	"path/filepath"

	"autobackup/internal/bt"
	"autobackup/internal/config"
)

// CatalogFileName is the SQLite file created under catalog.data_dir.
const CatalogFileName = "catalog.db"

// NewCatalogFromConfig creates a bt.Catalog based on the catalog config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (bt.Catalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, CatalogFileName))
	case "memory":
		return NewSQLiteCatalog(":memory:")
	case "none", "":
		return bt.NopCatalog{}, nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
