package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// InvoiceRegistry defines the ledger of downloaded invoices, keyed by (provider, order id)
type InvoiceRegistry interface {
	// IsDownloaded reports whether the key is on record. With checkFile set,
	// an entry whose file is gone from disk counts as not downloaded.
	IsDownloaded(ctx context.Context, provider, orderID string, checkFile bool) (bool, error)

	// Add records a download, replacing any entry with the same key
	Add(ctx context.Context, entry domain.RegistryEntry) error

	// ListDownloaded returns the entries of provider, or of every provider when empty
	ListDownloaded(ctx context.Context, provider string) ([]domain.RegistryEntry, error)

	Close() error
}

// RepositoryError represents an error that occurred within a repository
type RepositoryError struct {
	// Op is the operation that failed
	Op string

	// Err is the underlying error
	Err error
}

// Error returns a string representation of the error
func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap returns the underlying error
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// ProviderDir is the download directory of one provider
func ProviderDir(baseDir, provider string) string {
	return filepath.Join(baseDir, provider)
}

// resolveFile maps a registry file path, relative to the provider directory, to disk
func resolveFile(baseDir, provider, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(ProviderDir(baseDir, provider), filePath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func checkContext(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return &RepositoryError{Op: op, Err: ctx.Err()}
	default:
		return nil
	}
}
