package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// SQLiteRegistry implements InvoiceRegistry on an embedded SQLite database
type SQLiteRegistry struct {
	db      *sql.DB
	baseDir string
}

// NewSQLiteRegistry creates a registry over an opened and migrated database.
// baseDir is the download root used to resolve relative file paths.
func NewSQLiteRegistry(db *sql.DB, baseDir string) *SQLiteRegistry {
	return &SQLiteRegistry{db: db, baseDir: baseDir}
}

// IsDownloaded reports whether the invoice is on record; with checkFile its file must also exist
func (r *SQLiteRegistry) IsDownloaded(ctx context.Context, provider, orderID string, checkFile bool) (bool, error) {
	var filePath string
	err := r.db.QueryRowContext(ctx,
		`SELECT file_path FROM invoice_registry WHERE provider = ? AND order_id = ?`,
		provider, orderID,
	).Scan(&filePath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &RepositoryError{Op: "is_downloaded", Err: fmt.Errorf("failed to query registry: %w", err)}
	}

	if checkFile {
		return fileExists(resolveFile(r.baseDir, provider, filePath)), nil
	}
	return true, nil
}

// Add records entry, replacing an earlier entry for the same invoice
func (r *SQLiteRegistry) Add(ctx context.Context, entry domain.RegistryEntry) error {
	if entry.Provider == "" || entry.OrderID == "" {
		return &RepositoryError{Op: "add", Err: errors.New("provider and order id are required")}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoice_registry (provider, order_id, file_path, invoice_date, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider, order_id) DO UPDATE SET
			file_path = excluded.file_path,
			invoice_date = excluded.invoice_date,
			downloaded_at = excluded.downloaded_at`,
		entry.Provider, entry.OrderID, entry.FilePath, nullString(entry.InvoiceDateISO), nowISO(),
	)
	if err != nil {
		return &RepositoryError{Op: "add", Err: fmt.Errorf("failed to upsert entry: %w", err)}
	}
	return nil
}

// ListDownloaded returns the entries of provider, or of every provider when empty
func (r *SQLiteRegistry) ListDownloaded(ctx context.Context, provider string) ([]domain.RegistryEntry, error) {
	query := `SELECT provider, order_id, file_path, invoice_date, downloaded_at FROM invoice_registry`
	var args []any
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY provider, downloaded_at, order_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &RepositoryError{Op: "list_downloaded", Err: fmt.Errorf("failed to query registry: %w", err)}
	}
	defer rows.Close()

	entries := []domain.RegistryEntry{}
	for rows.Next() {
		var (
			e    domain.RegistryEntry
			date sql.NullString
		)
		if err := rows.Scan(&e.Provider, &e.OrderID, &e.FilePath, &date, &e.DownloadedAtISO); err != nil {
			return nil, &RepositoryError{Op: "list_downloaded", Err: fmt.Errorf("failed to scan entry: %w", err)}
		}
		e.InvoiceDateISO = date.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{Op: "list_downloaded", Err: err}
	}
	return entries, nil
}

// Close closes the database
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
