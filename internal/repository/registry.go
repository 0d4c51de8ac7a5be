package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/database"
)

// Registry backends
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// RegistryOptions selects and configures a registry backend
type RegistryOptions struct {
	Backend     string
	BaseDir     string
	SQLitePath  string
	PostgresURL string
}

// OpenRegistry opens the configured registry backend
func OpenRegistry(ctx context.Context, opts RegistryOptions) (InvoiceRegistry, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewFileRepository(opts.BaseDir)

	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.BaseDir, "registry.db")
		}
		db, err := database.OpenSQLite(ctx, path)
		if err != nil {
			return nil, &RepositoryError{Op: "open_registry", Err: err}
		}
		return NewSQLiteRegistry(db, opts.BaseDir), nil

	case BackendPostgres:
		db, err := database.NewPostgresDB(ctx, opts.PostgresURL)
		if err != nil {
			return nil, &RepositoryError{Op: "open_registry", Err: err}
		}
		if _, err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, &RepositoryError{Op: "migrate_registry", Err: err}
		}
		return NewPostgresRegistry(db, opts.BaseDir), nil

	default:
		return nil, &RepositoryError{Op: "open_registry", Err: fmt.Errorf("unknown backend %q", opts.Backend)}
	}
}
