package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryFactory func(t *testing.T, baseDir string) InvoiceRegistry

func registryBackends() map[string]registryFactory {
	return map[string]registryFactory{
		BackendJSON: func(t *testing.T, baseDir string) InvoiceRegistry {
			r, err := OpenRegistry(context.Background(), RegistryOptions{Backend: BackendJSON, BaseDir: baseDir})
			require.NoError(t, err)
			return r
		},
		BackendSQLite: func(t *testing.T, baseDir string) InvoiceRegistry {
			r, err := OpenRegistry(context.Background(), RegistryOptions{Backend: BackendSQLite, BaseDir: baseDir})
			require.NoError(t, err)
			return r
		},
		BackendPostgres: openPostgresRegistry,
	}
}

// openPostgresRegistry needs a disposable database in POSTGRES_TEST_URL; the
// registry table is emptied before every use
func openPostgresRegistry(t *testing.T, baseDir string) InvoiceRegistry {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	ctx := context.Background()
	r, err := OpenRegistry(ctx, RegistryOptions{Backend: BackendPostgres, BaseDir: baseDir, PostgresURL: url})
	require.NoError(t, err)

	pg, ok := r.(*PostgresRegistry)
	require.True(t, ok)
	_, err = pg.db.GetPool().Exec(ctx, `TRUNCATE invoice_registry`)
	require.NoError(t, err)
	return r
}

func writeInvoice(t *testing.T, baseDir, provider, name string) {
	dir := ProviderDir(baseDir, provider)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0644))
}

func TestRegistryAddAndLookup(t *testing.T) {
	for name, open := range registryBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			baseDir := t.TempDir()
			r := open(t, baseDir)
			defer r.Close()

			done, err := r.IsDownloaded(ctx, "amazon", "402-1", false)
			require.NoError(t, err)
			assert.False(t, done)

			writeInvoice(t, baseDir, "amazon", "a.pdf")
			require.NoError(t, r.Add(ctx, domain.RegistryEntry{
				Provider:       "amazon",
				OrderID:        "402-1",
				FilePath:       "a.pdf",
				InvoiceDateISO: "2024-01-15",
			}))

			done, err = r.IsDownloaded(ctx, "amazon", "402-1", true)
			require.NoError(t, err)
			assert.True(t, done)

			// same order id under another provider is a different key
			done, err = r.IsDownloaded(ctx, "freebox", "402-1", false)
			require.NoError(t, err)
			assert.False(t, done)
		})
	}
}

func TestRegistryMissingFileCountsAsNotDownloaded(t *testing.T) {
	for name, open := range registryBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			baseDir := t.TempDir()
			r := open(t, baseDir)
			defer r.Close()

			require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "amazon", OrderID: "402-2", FilePath: "gone.pdf"}))

			done, err := r.IsDownloaded(ctx, "amazon", "402-2", true)
			require.NoError(t, err)
			assert.False(t, done)

			done, err = r.IsDownloaded(ctx, "amazon", "402-2", false)
			require.NoError(t, err)
			assert.True(t, done)
		})
	}
}

func TestRegistryUpsert(t *testing.T) {
	for name, open := range registryBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := open(t, t.TempDir())
			defer r.Close()

			require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "amazon", OrderID: "402-3", FilePath: "old.pdf"}))
			require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "amazon", OrderID: "402-3", FilePath: "new.pdf", InvoiceDateISO: "2024-02-01"}))

			entries, err := r.ListDownloaded(ctx, "amazon")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "amazon", entries[0].Provider)
			assert.Equal(t, "new.pdf", entries[0].FilePath)
			assert.Equal(t, "2024-02-01", entries[0].InvoiceDateISO)
			assert.NotEmpty(t, entries[0].DownloadedAtISO)
		})
	}
}

func TestRegistryListAcrossProviders(t *testing.T) {
	for name, open := range registryBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := open(t, t.TempDir())
			defer r.Close()

			empty, err := r.ListDownloaded(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "freebox", OrderID: "f-1", FilePath: "f.pdf"}))
			require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "amazon", OrderID: "a-1", FilePath: "a.pdf"}))

			all, err := r.ListDownloaded(ctx, "")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "amazon", all[0].Provider)
			assert.Equal(t, "freebox", all[1].Provider)

			one, err := r.ListDownloaded(ctx, "freebox")
			require.NoError(t, err)
			require.Len(t, one, 1)
			assert.Equal(t, "f-1", one[0].OrderID)
		})
	}
}

func TestRegistryRejectsIncompleteEntry(t *testing.T) {
	for name, open := range registryBackends() {
		t.Run(name, func(t *testing.T) {
			r := open(t, t.TempDir())
			defer r.Close()

			err := r.Add(context.Background(), domain.RegistryEntry{Provider: "amazon"})
			var repoErr *RepositoryError
			assert.ErrorAs(t, err, &repoErr)
		})
	}
}

func TestFileRepositoryCorruptDocument(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	r, err := NewFileRepository(baseDir)
	require.NoError(t, err)

	dir := ProviderDir(baseDir, "amazon")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RegistryFileName), []byte("{not json"), 0644))

	done, err := r.IsDownloaded(ctx, "amazon", "402-1", false)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, r.Add(ctx, domain.RegistryEntry{Provider: "amazon", OrderID: "402-1", FilePath: "a.pdf"}))
	entries, err := r.ListDownloaded(ctx, "amazon")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileRepositoryDocumentLayout(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	r, err := NewFileRepository(baseDir)
	require.NoError(t, err)

	require.NoError(t, r.Add(ctx, domain.RegistryEntry{
		Provider:       "amazon",
		OrderID:        "402-1",
		FilePath:       "a.pdf",
		InvoiceDateISO: "2024-01-15",
	}))

	data, err := os.ReadFile(filepath.Join(baseDir, "amazon", RegistryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amazon": [`)
	assert.Contains(t, string(data), `"order_id": "402-1"`)
	assert.Contains(t, string(data), `"invoice_date": "2024-01-15"`)
	assert.NotContains(t, string(data), `"provider"`)
}

func TestFileRepositoryCancelledContext(t *testing.T) {
	r, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.IsDownloaded(ctx, "amazon", "402-1", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresRegistryRejectsBadDate(t *testing.T) {
	r := openPostgresRegistry(t, t.TempDir())
	defer r.Close()

	err := r.Add(context.Background(), domain.RegistryEntry{Provider: "amazon", OrderID: "402-9", FilePath: "a.pdf", InvoiceDateISO: "15/01/2024"})
	var repoErr *RepositoryError
	assert.ErrorAs(t, err, &repoErr)
}

func TestOpenRegistryUnknownBackend(t *testing.T) {
	_, err := OpenRegistry(context.Background(), RegistryOptions{Backend: "redis"})
	assert.Error(t, err)
}
