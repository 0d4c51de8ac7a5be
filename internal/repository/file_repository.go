package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// RegistryFileName is the ledger document kept in each provider directory
const RegistryFileName = ".invoice_registry.json"

const lockRetryDelay = 50 * time.Millisecond

// registryDocument is the on-disk layout: provider -> entries
type registryDocument map[string][]domain.RegistryEntry

// FileRepository implements InvoiceRegistry with one JSON document per provider directory.
// Writes hold an in-process mutex and an advisory file lock, and replace the
// document atomically, so several processes may share a download directory.
type FileRepository struct {
	baseDir string
	mutex   sync.RWMutex
	log     *logrus.Entry
}

// NewFileRepository creates a new file-based invoice registry rooted at baseDir
func NewFileRepository(baseDir string) (*FileRepository, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, &RepositoryError{
			Op:  "create_repository",
			Err: fmt.Errorf("failed to create base directory: %w", err),
		}
	}

	return &FileRepository{
		baseDir: baseDir,
		log:     logrus.StandardLogger().WithField("type", "repository/file"),
	}, nil
}

func (r *FileRepository) documentPath(provider string) string {
	return filepath.Join(ProviderDir(r.baseDir, provider), RegistryFileName)
}

// IsDownloaded reports whether (provider, orderID) is on record
func (r *FileRepository) IsDownloaded(ctx context.Context, provider, orderID string, checkFile bool) (bool, error) {
	if err := checkContext(ctx, "is_downloaded"); err != nil {
		return false, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	doc, err := r.readLocked(ctx, provider)
	if err != nil {
		return false, err
	}

	for _, e := range doc[provider] {
		if e.OrderID != orderID {
			continue
		}
		if checkFile {
			return fileExists(resolveFile(r.baseDir, provider, e.FilePath)), nil
		}
		return true, nil
	}
	return false, nil
}

// Add upserts the entry and writes the document through to disk
func (r *FileRepository) Add(ctx context.Context, entry domain.RegistryEntry) error {
	if err := checkContext(ctx, "add"); err != nil {
		return err
	}
	if entry.Provider == "" || entry.OrderID == "" {
		return &RepositoryError{Op: "add", Err: errors.New("provider and order id are required")}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	dir := ProviderDir(r.baseDir, entry.Provider)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &RepositoryError{Op: "add", Err: fmt.Errorf("failed to create provider directory: %w", err)}
	}

	lock := flock.New(r.documentPath(entry.Provider) + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return &RepositoryError{Op: "add", Err: fmt.Errorf("failed to lock registry: %w", err)}
	}
	if !locked {
		return &RepositoryError{Op: "add", Err: errors.New("registry is locked by another writer")}
	}
	defer lock.Unlock()

	doc := r.load(entry.Provider)

	record := domain.RegistryEntry{
		OrderID:         entry.OrderID,
		FilePath:        entry.FilePath,
		InvoiceDateISO:  entry.InvoiceDateISO,
		DownloadedAtISO: nowISO(),
	}

	entries := doc[entry.Provider]
	replaced := false
	for i := range entries {
		if entries[i].OrderID == entry.OrderID {
			entries[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, record)
	}
	doc[entry.Provider] = entries

	if err := r.save(entry.Provider, doc); err != nil {
		return &RepositoryError{Op: "add", Err: err}
	}
	return nil
}

// ListDownloaded returns the entries of provider, or of all providers under baseDir
func (r *FileRepository) ListDownloaded(ctx context.Context, provider string) ([]domain.RegistryEntry, error) {
	if err := checkContext(ctx, "list_downloaded"); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	providers := []string{provider}
	if provider == "" {
		dirs, err := os.ReadDir(r.baseDir)
		if err != nil {
			if os.IsNotExist(err) {
				return []domain.RegistryEntry{}, nil
			}
			return nil, &RepositoryError{
				Op:  "list_downloaded",
				Err: fmt.Errorf("failed to read download directory: %w", err),
			}
		}
		providers = providers[:0]
		for _, d := range dirs {
			if d.IsDir() {
				providers = append(providers, d.Name())
			}
		}
	}

	result := []domain.RegistryEntry{}
	for _, p := range providers {
		doc, err := r.readLocked(ctx, p)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if provider != "" && k != provider {
				continue
			}
			for _, e := range doc[k] {
				e.Provider = k
				result = append(result, e)
			}
		}
	}
	return result, nil
}

// Close is a no-op; every write is already on disk
func (r *FileRepository) Close() error {
	return nil
}

// readLocked loads a provider document under a shared file lock
func (r *FileRepository) readLocked(ctx context.Context, provider string) (registryDocument, error) {
	path := r.documentPath(provider)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return registryDocument{}, nil
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		// Reads degrade rather than fail
		r.log.WithError(err).WithField("provider", provider).Warn("registry lock unavailable, reading without it")
		return r.load(provider), nil
	}
	defer lock.Unlock()

	return r.load(provider), nil
}

// load reads a provider document. A missing, unreadable or corrupt document
// yields an empty one.
func (r *FileRepository) load(provider string) registryDocument {
	path := r.documentPath(provider)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.WithError(err).WithField("path", path).Warn("registry unreadable, starting empty")
		}
		return registryDocument{}
	}

	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		r.log.WithError(err).WithField("path", path).Warn("registry corrupt, starting empty")
		return registryDocument{}
	}
	if doc == nil {
		doc = registryDocument{}
	}
	return doc
}

// save replaces the provider document atomically
func (r *FileRepository) save(provider string, doc registryDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize registry: %w", err)
	}

	path := r.documentPath(provider)
	tmp, err := os.CreateTemp(filepath.Dir(path), RegistryFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}
