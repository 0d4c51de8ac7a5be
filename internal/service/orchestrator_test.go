package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedProvider serves fixed listing pages and records every interaction
type pagedProvider struct {
	mu sync.Mutex

	pages [][]domain.InvoiceRecord
	page  int

	loginErr    error
	navigateErr error
	loginGate   chan struct{}
	loginSeen   chan struct{}

	failFetch map[string]bool
	notPDF    map[string]bool

	fetched  []string
	advances int
}

func (p *pagedProvider) ID() string { return "fake" }

func (p *pagedProvider) Login(ctx context.Context, otpCode string) error {
	if p.loginGate != nil {
		close(p.loginSeen)
		<-p.loginGate
	}
	return p.loginErr
}

func (p *pagedProvider) NavigateToInvoiceListing(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = 0
	return p.navigateErr
}

func (p *pagedProvider) ListCandidates(ctx context.Context) ([]domain.InvoiceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page >= len(p.pages) {
		return nil, nil
	}
	return p.pages[p.page], nil
}

func (p *pagedProvider) HasNextPage(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page+1 < len(p.pages)
}

func (p *pagedProvider) AdvanceToNextPage(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page++
	p.advances++
	return nil
}

func (p *pagedProvider) DownloadOneInvoice(ctx context.Context, rec domain.InvoiceRecord) (*domain.InvoiceDocument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, rec.OrderID)

	if p.failFetch[rec.OrderID] {
		return nil, &browser.DriverError{Op: "fetch", Err: errors.New("unexpected status 500")}
	}
	if p.notPDF[rec.OrderID] {
		return &domain.InvoiceDocument{Data: []byte("<html>sign in</html>"), ContentType: "text/html"}, nil
	}
	return &domain.InvoiceDocument{
		Data:        []byte("%PDF-1.4 invoice " + rec.Handle.URL),
		ContentType: "application/octet-stream",
	}, nil
}

func (p *pagedProvider) IsOTPRequired(ctx context.Context) bool { return false }

func (p *pagedProvider) SubmitOTP(ctx context.Context, code string) (bool, error) { return true, nil }

func (p *pagedProvider) Session() domain.DownloadSession { return domain.DownloadSession{} }

func (p *pagedProvider) Close() error { return nil }

func (p *pagedProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetched)
}

// makePages builds pages of stable candidates dated in January 2024
func makePages(sizes ...int) [][]domain.InvoiceRecord {
	var pages [][]domain.InvoiceRecord
	n := 0
	for _, size := range sizes {
		var page []domain.InvoiceRecord
		for i := 0; i < size; i++ {
			n++
			id := fmt.Sprintf("402-%07d-0000001", n)
			page = append(page, domain.InvoiceRecord{
				OrderID:     id,
				StableID:    true,
				InvoiceDate: domain.NewDate(2024, time.January, 1+n%28),
				Handle:      domain.RetrievalHandle{URL: "https://example.test/invoice/" + id},
			})
		}
		pages = append(pages, page)
	}
	return pages
}

type failingRegistry struct {
	repository.InvoiceRegistry
}

func (failingRegistry) IsDownloaded(ctx context.Context, provider, orderID string, checkFile bool) (bool, error) {
	return false, nil
}

func (failingRegistry) Add(ctx context.Context, entry domain.RegistryEntry) error {
	return &repository.RepositoryError{Op: "add", Err: errors.New("disk full")}
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) Archive(ctx context.Context, provider, fileName string, data []byte) error {
	a.keys = append(a.keys, provider+"/"+fileName)
	return a.err
}

func newTestOrchestrator(t *testing.T, p Provider) (*Orchestrator, repository.InvoiceRegistry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := repository.NewFileRepository(dir)
	require.NoError(t, err)
	return NewOrchestrator(p, reg, nil, OrchestratorOptions{DownloadDir: dir}), reg, dir
}

func TestDownloadInvoicesMaxCutoff(t *testing.T) {
	p := &pagedProvider{pages: makePages(10, 10, 5)}
	o, _, _ := newTestOrchestrator(t, p)

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{MaxInvoices: 12})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Count)
	assert.Len(t, result.Files, 12)
	assert.Equal(t, 12, p.fetchCount())
	assert.Equal(t, 1, p.advances)
}

func TestDownloadInvoicesWalksAllPages(t *testing.T) {
	p := &pagedProvider{pages: makePages(10, 10, 5)}
	o, _, dir := newTestOrchestrator(t, p)

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{MaxInvoices: 100})
	require.NoError(t, err)

	assert.Equal(t, 25, result.Count)
	assert.Equal(t, 2, p.advances)
	for _, f := range result.Files {
		assert.FileExists(t, filepath.Join(dir, "fake", f))
	}
}

func TestDownloadInvoicesIsIdempotent(t *testing.T) {
	p := &pagedProvider{pages: makePages(3, 2)}
	o, reg, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	first, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Count)

	second, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count)
	assert.Empty(t, second.Files)
	assert.Equal(t, 5, p.fetchCount(), "known invoices are not fetched again")

	entries, err := reg.ListDownloaded(ctx, "fake")
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestDownloadInvoicesForceRedownload(t *testing.T) {
	p := &pagedProvider{pages: makePages(3)}
	o, reg, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	_, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)

	result, err := o.DownloadInvoices(ctx, domain.DownloadRequest{ForceRedownload: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)

	entries, err := reg.ListDownloaded(ctx, "fake")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestDownloadInvoicesRefetchesDeletedFiles(t *testing.T) {
	p := &pagedProvider{pages: makePages(3)}
	o, _, dir := newTestOrchestrator(t, p)
	ctx := context.Background()

	first, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "fake", first.Files[1])))

	second, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{first.Files[1]}, second.Files)
}

func TestDownloadInvoicesAppliesFilter(t *testing.T) {
	pages := makePages(4)
	pages[0][1].InvoiceDate = domain.NewDate(2023, time.June, 1)
	pages[0][2].InvoiceDate = domain.DateOnly{}
	p := &pagedProvider{pages: pages}
	o, _, _ := newTestOrchestrator(t, p)

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{pages[0][0].OrderID, pages[0][3].OrderID}, p.fetched)
}

func TestDownloadInvoicesIsolatesCandidateFailures(t *testing.T) {
	pages := makePages(5)
	p := &pagedProvider{
		pages:     pages,
		failFetch: map[string]bool{pages[0][1].OrderID: true},
		notPDF:    map[string]bool{pages[0][3].OrderID: true},
	}
	o, reg, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	result, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 5, p.fetchCount())

	done, err := reg.IsDownloaded(ctx, "fake", pages[0][3].OrderID, true)
	require.NoError(t, err)
	assert.False(t, done, "a non-document payload is not recorded")
}

func TestDownloadInvoicesUnstableIDsUseContentHash(t *testing.T) {
	pages := makePages(3)
	for i := range pages[0] {
		pages[0][i].OrderID = fmt.Sprintf("order_%d", i)
		pages[0][i].StableID = false
	}
	p := &pagedProvider{pages: pages}
	o, reg, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	first, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count)

	// Same documents listed in a different order
	pages[0][0], pages[0][2] = pages[0][2], pages[0][0]
	second, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count)

	entries, err := reg.ListDownloaded(ctx, "fake")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.OrderID, "sha256-"), e.OrderID)
	}
}

func TestDownloadInvoicesOTPRequired(t *testing.T) {
	p := &pagedProvider{
		pages:    makePages(2),
		loginErr: &AuthError{Provider: "fake", Err: ErrOTPRequired},
	}
	o, _, _ := newTestOrchestrator(t, p)

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsOTPRequired(err))
	assert.Zero(t, p.fetchCount())
}

func TestDownloadInvoicesListingUnreachable(t *testing.T) {
	p := &pagedProvider{
		pages:       makePages(2),
		navigateErr: ErrListingUnreachable,
	}
	o, _, _ := newTestOrchestrator(t, p)

	_, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrListingUnreachable))
	assert.False(t, IsOTPRequired(err))
}

func TestDownloadInvoicesRegistryWriteFailureAborts(t *testing.T) {
	p := &pagedProvider{pages: makePages(3)}
	o := NewOrchestrator(p, failingRegistry{}, nil, OrchestratorOptions{DownloadDir: t.TempDir()})

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
	require.Error(t, err)

	var repoErr *repository.RepositoryError
	assert.True(t, errors.As(err, &repoErr))
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 1, p.fetchCount())
}

func TestDownloadInvoicesArchivesStoredFiles(t *testing.T) {
	p := &pagedProvider{pages: makePages(2)}
	dir := t.TempDir()
	reg, err := repository.NewFileRepository(dir)
	require.NoError(t, err)
	archiver := &recordingArchiver{err: errors.New("bucket unavailable")}
	o := NewOrchestrator(p, reg, archiver, OrchestratorOptions{DownloadDir: dir})

	result, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
	require.NoError(t, err, "archive failures are not fatal")
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"fake/" + result.Files[0], "fake/" + result.Files[1]}, archiver.keys)
}

func TestDownloadInvoicesRejectsConcurrentRuns(t *testing.T) {
	gate := make(chan struct{})
	seen := make(chan struct{})
	p := &pagedProvider{pages: makePages(1), loginGate: gate, loginSeen: seen}
	o, _, _ := newTestOrchestrator(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
		done <- err
	}()

	<-seen
	_, err := o.DownloadInvoices(context.Background(), domain.DownloadRequest{})
	assert.True(t, errors.Is(err, ErrBusy))

	close(gate)
	require.NoError(t, <-done)
}

func TestDownloadInvoicesHonoursCancellation(t *testing.T) {
	p := &pagedProvider{pages: makePages(5)}
	dir := t.TempDir()
	reg, err := repository.NewFileRepository(dir)
	require.NoError(t, err)
	o := NewOrchestrator(p, reg, nil, OrchestratorOptions{DownloadDir: dir, FetchInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := o.DownloadInvoices(ctx, domain.DownloadRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, result.Count, "the first fetch uses the limiter burst")
}
