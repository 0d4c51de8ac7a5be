package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/database"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// PostgresRegistry implements InvoiceRegistry using PostgreSQL
type PostgresRegistry struct {
	db      *database.PostgresDB
	baseDir string
}

// NewPostgresRegistry creates a new PostgreSQL invoice registry
func NewPostgresRegistry(db *database.PostgresDB, baseDir string) *PostgresRegistry {
	return &PostgresRegistry{db: db, baseDir: baseDir}
}

// IsDownloaded reports whether (provider, orderID) is on record
func (r *PostgresRegistry) IsDownloaded(ctx context.Context, provider, orderID string, checkFile bool) (bool, error) {
	query := `
		SELECT file_path
		FROM invoice_registry
		WHERE provider = $1 AND order_id = $2
	`

	var filePath string
	err := r.db.GetPool().QueryRow(ctx, query, provider, orderID).Scan(&filePath)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Add upserts the entry
func (r *PostgresRegistry) Add(ctx context.Context, entry domain.RegistryEntry) error {
	if entry.Provider == "" || entry.OrderID == "" {
		return &RepositoryError{Op: "add", Err: errors.New("provider and order id are required")}
	}

	var invoiceDate pgtype.Date
	if entry.InvoiceDateISO != "" {
		d, err := time.Parse(domain.DateLayout, entry.InvoiceDateISO)
		if err != nil {
			return &RepositoryError{Op: "add", Err: fmt.Errorf("invalid invoice date: %w", err)}
		}
		invoiceDate = pgtype.Date{Time: d, Valid: true}
	}

	query := `
		INSERT INTO invoice_registry (provider, order_id, file_path, invoice_date, downloaded_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (provider, order_id) DO UPDATE
		SET file_path = EXCLUDED.file_path,
			invoice_date = EXCLUDED.invoice_date,
			downloaded_at = EXCLUDED.downloaded_at
	`

	_, err := r.db.GetPool().Exec(ctx, query, entry.Provider, entry.OrderID, entry.FilePath, invoiceDate)
	if err != nil {
		return &RepositoryError{Op: "add", Err: fmt.Errorf("failed to upsert entry: %w", err)}
	}
	return nil
}

// ListDownloaded returns the entries of provider, or all entries when provider is empty
func (r *PostgresRegistry) ListDownloaded(ctx context.Context, provider string) ([]domain.RegistryEntry, error) {
	query := `
		SELECT provider, order_id, file_path, invoice_date, downloaded_at
		FROM invoice_registry
		WHERE ($1 = '' OR provider = $1)
		ORDER BY provider, downloaded_at, order_id
	`

	rows, err := r.db.GetPool().Query(ctx, query, provider)
	if err != nil {
		return nil, &RepositoryError{Op: "list_downloaded", Err: fmt.Errorf("failed to query registry: %w", err)}
	}
	defer rows.Close()

	entries := []domain.RegistryEntry{}
	for rows.Next() {
		var (
			e            domain.RegistryEntry
			invoiceDate  pgtype.Date
			downloadedAt time.Time
		)
		if err := rows.Scan(&e.Provider, &e.OrderID, &e.FilePath, &invoiceDate, &downloadedAt); err != nil {
			return nil, &RepositoryError{Op: "list_downloaded", Err: fmt.Errorf("failed to scan entry: %w", err)}
		}
		if invoiceDate.Valid {
			e.InvoiceDateISO = invoiceDate.Time.Format(domain.DateLayout)
		}
		e.DownloadedAtISO = downloadedAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{Op: "list_downloaded", Err: err}
	}
	return entries, nil
}

// Close releases the connection pool
func (r *PostgresRegistry) Close() error {
	r.db.Close()
	return nil
}
