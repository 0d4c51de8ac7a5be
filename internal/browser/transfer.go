package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

const (
	defaultTransferTimeout = 30 * time.Second
	maxDocumentSize        = 50 * 1024 * 1024
	userAgentScript        = "navigator.userAgent"
)

// Transfer fetches documents over plain HTTP while reusing the cookies and
// user agent of a live browser session.
type Transfer struct {
	httpClient *http.Client
	maxSize    int64
}

// NewTransfer creates a transfer client. A zero timeout selects the default.
func NewTransfer(timeout time.Duration) *Transfer {
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}
	return &Transfer{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxSize: maxDocumentSize,
	}
}

// Fetch downloads rawURL with the session of d
func (t *Transfer) Fetch(ctx context.Context, d Driver, rawURL string) (*domain.InvoiceDocument, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("invalid url: %w", err)}
	}

	cookies, err := d.Cookies(ctx)
	if err != nil {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("failed to read cookies: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for _, c := range cookies {
		if domainMatches(target.Hostname(), c.Domain) {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	var userAgent string
	if err := d.ExecuteScript(ctx, userAgentScript, &userAgent); err == nil && userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if resp.ContentLength > t.maxSize {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("document exceeds %d bytes", t.maxSize)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxSize+1))
	if err != nil {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(data)) > t.maxSize {
		return nil, &DriverError{Op: "fetch", Err: fmt.Errorf("document exceeds %d bytes", t.maxSize)}
	}

	return &domain.InvoiceDocument{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		SourceURL:   resp.Request.URL.String(),
	}, nil
}

// ResolveURL resolves href against the page URL base
func ResolveURL(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// domainMatches applies cookie domain matching: exact host or a parent domain
func domainMatches(host, cookieDomain string) bool {
	if cookieDomain == "" {
		return true
	}
	d := strings.TrimPrefix(strings.ToLower(cookieDomain), ".")
	host = strings.ToLower(host)
	return host == d || strings.HasSuffix(host, "."+d)
}
