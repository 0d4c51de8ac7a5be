package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/metrics"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultMaxInvoices applies when neither the request nor the options set a maximum
const DefaultMaxInvoices = 100

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	// DownloadDir is the download root; each provider writes to DownloadDir/<id>
	DownloadDir string

	// DefaultMax applies when a request leaves MaxInvoices unset
	DefaultMax int

	// FetchInterval is the minimum spacing between two document fetches
	FetchInterval time.Duration
}

// Orchestrator runs download batches for a single provider
type Orchestrator struct {
	provider Provider
	registry repository.InvoiceRegistry
	archiver Archiver

	downloadDir string
	defaultMax  int
	limiter     *rate.Limiter

	running sync.Mutex
	log     *logrus.Entry
}

// NewOrchestrator creates an orchestrator for p. archiver may be nil.
func NewOrchestrator(p Provider, registry repository.InvoiceRegistry, archiver Archiver, opts OrchestratorOptions) *Orchestrator {
	if opts.DefaultMax <= 0 {
		opts.DefaultMax = DefaultMaxInvoices
	}

	limit := rate.Inf
	if opts.FetchInterval > 0 {
		limit = rate.Every(opts.FetchInterval)
	}

	return &Orchestrator{
		provider:    p,
		registry:    registry,
		archiver:    archiver,
		downloadDir: opts.DownloadDir,
		defaultMax:  opts.DefaultMax,
		limiter:     rate.NewLimiter(limit, 1),
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":     "service/orchestrator",
			"provider": p.ID(),
		}),
	}
}

// Provider returns the provider driven by the orchestrator
func (o *Orchestrator) Provider() Provider {
	return o.provider
}

// DownloadInvoices logs in, walks the listing pages and downloads every
// candidate matching the request until MaxInvoices documents were stored.
//
// The result counts documents actually stored by this call. A failing
// candidate is logged and skipped; login, listing and registry write failures
// abort the run. When the run aborts after progress, the partial result is
// returned alongside the error. Only one run per provider may be in flight;
// a concurrent call fails with ErrBusy.
func (o *Orchestrator) DownloadInvoices(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadResult, error) {
	id := o.provider.ID()
	if !o.running.TryLock() {
		return nil, &DownloadError{Op: "download", Provider: id, Err: ErrBusy}
	}
	defer o.running.Unlock()

	start := time.Now()
	defer func() {
		metrics.RunDurationHistogramVec.WithLabelValues(id).Observe(time.Since(start).Seconds())
	}()

	max := req.MaxInvoices
	if max <= 0 {
		max = o.defaultMax
	}
	criteria := req.Criteria()

	o.log.WithFields(logrus.Fields{
		"max_invoices": max,
		"year":         criteria.Year,
		"month":        criteria.Month,
		"months":       criteria.Months,
		"date_start":   criteria.DateStart.ISO(),
		"date_end":     criteria.DateEnd.ISO(),
		"force":        req.ForceRedownload,
		"otp_supplied": req.OTPCode != "",
	}).Info("starting download run")

	if err := o.provider.Login(ctx, req.OTPCode); err != nil {
		return nil, &DownloadError{Op: "login", Provider: id, Err: err}
	}

	if err := o.provider.NavigateToInvoiceListing(ctx); err != nil {
		return nil, &DownloadError{Op: "navigate", Provider: id, Err: err}
	}

	dir := repository.ProviderDir(o.downloadDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &DownloadError{Op: "prepare", Provider: id, Err: fmt.Errorf("failed to create download directory: %w", err)}
	}

	result := &domain.DownloadResult{Files: []string{}}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return result, &DownloadError{Op: "download", Provider: id, Err: err}
		}

		candidates, err := o.provider.ListCandidates(ctx)
		if err != nil {
			if page == 1 {
				return result, &DownloadError{Op: "list_candidates", Provider: id, Err: err}
			}
			o.log.WithError(err).WithField("page", page).Warn("failed to list candidates, stopping")
			break
		}

		filtered := FilterCandidates(candidates, criteria)
		o.log.WithFields(logrus.Fields{
			"page":     page,
			"seen":     len(candidates),
			"filtered": len(filtered),
		}).Info("scanned listing page")

		for _, rec := range filtered {
			if result.Count >= max {
				break
			}
			if err := ctx.Err(); err != nil {
				return result, &DownloadError{Op: "download", Provider: id, Err: err}
			}

			name, err := o.downloadOne(ctx, dir, rec, req.ForceRedownload)
			if err != nil {
				var fatal *DownloadError
				if errors.As(err, &fatal) {
					return result, fatal
				}
				metrics.FailedCounterVec.WithLabelValues(id).Inc()
				o.log.WithError(err).WithField("order_id", rec.OrderID).Warn("skipping candidate")
				continue
			}
			if name == "" {
				continue
			}

			result.Count++
			result.Files = append(result.Files, name)
		}

		if result.Count >= max || !o.provider.HasNextPage(ctx) {
			break
		}
		if err := o.provider.AdvanceToNextPage(ctx); err != nil {
			o.log.WithError(err).WithField("page", page).Warn("failed to advance to next page, stopping")
			break
		}
	}

	o.log.WithField("count", result.Count).Info("download run finished")
	return result, nil
}

// downloadOne fetches, validates and stores one candidate. It returns the stored
// file name, or an empty name when the candidate is already on record. Errors
// of type *DownloadError abort the run; any other error only skips the candidate.
func (o *Orchestrator) downloadOne(ctx context.Context, dir string, rec domain.InvoiceRecord, force bool) (string, error) {
	id := o.provider.ID()
	log := o.log.WithField("order_id", rec.OrderID)

	if rec.StableID && !force && o.onRecord(ctx, rec.OrderID) {
		log.Debug("already downloaded")
		metrics.SkippedCounterVec.WithLabelValues(id, "already_downloaded").Inc()
		return "", nil
	}

	if err := o.pace(ctx); err != nil {
		return "", &DownloadError{Op: "download", Provider: id, Err: err}
	}

	doc, err := o.provider.DownloadOneInvoice(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if !doc.LooksLikePDF() {
		return "", fmt.Errorf("%w (content type %q)", ErrNotDocument, doc.ContentType)
	}

	key := rec.OrderID
	if !rec.StableID {
		key = ContentID(doc.Data)
		if !force && o.onRecord(ctx, key) {
			log.WithField("content_id", key).Debug("same document already downloaded")
			metrics.SkippedCounterVec.WithLabelValues(id, "duplicate_content").Inc()
			return "", nil
		}
	}

	name := FileName(id, key, rec.InvoiceDate)
	if err := writeFile(filepath.Join(dir, name), doc.Data); err != nil {
		return "", err
	}

	err = o.registry.Add(ctx, domain.RegistryEntry{
		Provider:       id,
		OrderID:        key,
		FilePath:       name,
		InvoiceDateISO: rec.InvoiceDate.ISO(),
	})
	if err != nil {
		return "", &DownloadError{Op: "registry_add", Provider: id, Err: err}
	}

	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, id, name, doc.Data); err != nil {
			log.WithError(err).Warn("failed to archive invoice")
		}
	}

	metrics.DownloadedCounterVec.WithLabelValues(id).Inc()
	log.WithField("file", name).Info("invoice downloaded")
	return name, nil
}

// onRecord checks the registry. A failed lookup counts as not downloaded; the
// upsert keeps a re-download harmless.
func (o *Orchestrator) onRecord(ctx context.Context, key string) bool {
	done, err := o.registry.IsDownloaded(ctx, o.provider.ID(), key, true)
	if err != nil {
		o.log.WithError(err).WithField("order_id", key).Warn("registry lookup failed")
		return false
	}
	return done
}

// pace blocks until the limiter admits another fetch or ctx is done
func (o *Orchestrator) pace(ctx context.Context) error {
	r := o.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func writeFile(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write invoice: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move invoice into place: %w", err)
	}
	return nil
}
