package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
)

const (
	// FreeboxID is the provider id of the Freebox subscriber area
	FreeboxID = "freebox"

	freeboxBaseURL = "https://adsl.free.fr"
)

var (
	// billing pages tried in order after login
	freeboxBillingPaths = []string{"/facturation/", "/mes-factures/", "/factures/", "/home.pl", "/"}

	freeboxLoginSelectors    = []string{"input[name='login']", "input[name='identifiant']", "#login", "input[type='text']"}
	freeboxPasswordSelectors = []string{"input[name='pass']", "input[name='password']", "#pass", "#password", "input[type='password']"}
	freeboxSubmitSelectors   = []string{"input[type='submit'][value*='connecter']", "input[type='submit']", "button[type='submit']"}

	freeboxOTPSelectors = []string{"input[name*='otp']", "input[name*='code']", "input[type='tel'][maxlength='6']"}
	freeboxInvoiceLinks = "a[href*='.pdf'], a[href*='facture'], a[href*='download'], a[href*='telecharger']"
)

// FreeboxCredentials holds the subscriber account
type FreeboxCredentials struct {
	Login    string
	Password string
}

// Freebox retrieves invoices from the Freebox subscriber area. The area lists
// invoices as plain links on a single page.
type Freebox struct {
	*session
	creds   FreeboxCredentials
	baseURL string
}

// NewFreebox creates a Freebox adapter. The browser starts on first use.
func NewFreebox(creds FreeboxCredentials, opts Options) *Freebox {
	f := &Freebox{
		session: newSession(FreeboxID, opts),
		creds:   creds,
		baseURL: freeboxBaseURL,
	}
	f.bind(freeboxAuth{f})
	return f
}

func (f *Freebox) url(path string) string {
	return strings.TrimRight(f.baseURL, "/") + path
}

// NavigateToInvoiceListing probes the known billing pages, then follows a
// billing link from the first page that keeps the session
func (f *Freebox) NavigateToInvoiceListing(ctx context.Context) error {
	d, err := f.live()
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrListingUnreachable, err)
	}

	auth := freeboxAuth{f}
	for _, path := range freeboxBillingPaths {
		if err := d.Navigate(ctx, f.url(path)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.WithError(err).WithField("path", path).Debug("billing page unreachable")
			continue
		}
		if !auth.LoggedIn(ctx) {
			continue
		}

		link, err := f.billingLink(ctx, d)
		if err != nil {
			return nil
		}
		return f.followBillingLink(ctx, d, link)
	}

	return fmt.Errorf("%w: no billing page reachable", service.ErrListingUnreachable)
}

// followBillingLink clicks link and waits for the page to change. A click
// does not wait for navigation, so the listing is only confirmed once the
// URL moved and the session is still valid.
func (f *Freebox) followBillingLink(ctx context.Context, d browser.Driver, link browser.Element) error {
	before, _ := d.CurrentURL(ctx)
	href, _ := link.Attribute(ctx, "href")
	if href != "" && browser.ResolveURL(before, href) == before {
		return nil
	}

	if err := d.Click(ctx, link); err != nil {
		return fmt.Errorf("%w: failed to follow billing link: %w", service.ErrListingUnreachable, err)
	}

	interval := min(browser.DefaultPollInterval, f.opts.Timeout/10)
	err := browser.WaitUntil(ctx, f.opts.Timeout, interval, func(ctx context.Context) (bool, error) {
		current, err := d.CurrentURL(ctx)
		return err == nil && current != before, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: billing page did not load from %s: %w", service.ErrListingUnreachable, before, err)
	}

	if !(freeboxAuth{f}).LoggedIn(ctx) {
		return fmt.Errorf("%w: session lost on billing page", service.ErrListingUnreachable)
	}
	return nil
}

func (f *Freebox) billingLink(ctx context.Context, d browser.Driver) (browser.Element, error) {
	links, err := d.FindElements(ctx, "a")
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		text, _ := link.Text(ctx)
		href, _ := link.Attribute(ctx, "href")
		if browser.ContainsAny(text, "factur") || browser.ContainsAny(href, "factur") {
			return link, nil
		}
	}
	return nil, browser.ErrElementNotFound
}

// ListCandidates collects the invoice links of the page. Link positions are
// the only identifiers, so every record is marked unstable.
func (f *Freebox) ListCandidates(ctx context.Context) ([]domain.InvoiceRecord, error) {
	d, err := f.live()
	if err != nil {
		return nil, err
	}

	links, err := d.FindElements(ctx, freeboxInvoiceLinks)
	if err != nil {
		return nil, err
	}
	pageURL, _ := d.CurrentURL(ctx)

	seen := make(map[string]bool, len(links))
	records := make([]domain.InvoiceRecord, 0, len(links))
	for i, link := range links {
		href, _ := link.Attribute(ctx, "href")
		href = strings.TrimSpace(href)
		if href == "" || browser.ContainsAny(href, "logout", "deconnexion") {
			continue
		}
		target := browser.ResolveURL(pageURL, href)
		if seen[target] {
			continue
		}
		seen[target] = true

		text, _ := link.Text(ctx)
		records = append(records, domain.InvoiceRecord{
			OrderID:     fmt.Sprintf("freebox_inv_%d", i),
			StableID:    false,
			InvoiceDate: service.ParseInvoiceDate(text),
			Handle:      domain.RetrievalHandle{URL: target, Ref: link},
		})
	}

	if len(records) == 0 {
		f.log.Warn("no invoice links found on the billing page")
	}
	return records, nil
}

// HasNextPage is always false, the listing is a single page
func (f *Freebox) HasNextPage(ctx context.Context) bool {
	return false
}

// AdvanceToNextPage always fails, see HasNextPage
func (f *Freebox) AdvanceToNextPage(ctx context.Context) error {
	return fmt.Errorf("%w: freebox lists invoices on a single page", service.ErrListingUnreachable)
}

// DownloadOneInvoice fetches the link of rec with the session cookies
func (f *Freebox) DownloadOneInvoice(ctx context.Context, rec domain.InvoiceRecord) (*domain.InvoiceDocument, error) {
	if rec.Handle.URL == "" {
		return nil, fmt.Errorf("invoice %s has no link", rec.OrderID)
	}
	return f.fetch(ctx, rec.Handle.URL)
}

// freeboxAuth is the Freebox half of the login flow
type freeboxAuth struct {
	f *Freebox
}

func (x freeboxAuth) Start(ctx context.Context) error {
	return x.f.start(ctx)
}

func (x freeboxAuth) Active() bool {
	return x.f.active()
}

// LoggedIn treats the subscriber host as authenticated unless the page shows
// the session error or a visible sign-in form
func (x freeboxAuth) LoggedIn(ctx context.Context) bool {
	current := x.f.currentURL(ctx)
	if current == "" || hostOf(current) != hostOf(x.f.baseURL) {
		return false
	}

	body := x.f.pageText(ctx)
	if browser.ContainsAny(body, "session invalide") {
		return false
	}

	d, err := x.f.live()
	if err != nil {
		return false
	}
	if _, err := browser.FindFirstVisible(ctx, d, "input[type='password']"); err == nil {
		return !browser.ContainsAny(body, "se connecter")
	}
	return true
}

func (x freeboxAuth) OpenLoginPage(ctx context.Context) error {
	d, err := x.f.live()
	if err != nil {
		return err
	}
	if err := d.Navigate(ctx, x.f.url("/")); err != nil {
		return err
	}
	_, err = browser.WaitForElement(ctx, d, "input[type='password']", x.f.opts.Timeout)
	if err != nil && x.LoggedIn(ctx) {
		return nil
	}
	return err
}

func (x freeboxAuth) SubmitCredentials(ctx context.Context) error {
	f := x.f
	if f.creds.Login == "" || f.creds.Password == "" {
		return fmt.Errorf("freebox credentials are not configured")
	}

	d, err := f.live()
	if err != nil {
		return err
	}

	login, err := browser.FindFirstVisible(ctx, d, freeboxLoginSelectors...)
	if err != nil {
		return err
	}
	password, err := browser.FindFirstVisible(ctx, d, freeboxPasswordSelectors...)
	if err != nil {
		return err
	}
	if err := d.TypeText(ctx, login, f.creds.Login); err != nil {
		return err
	}
	if err := d.TypeText(ctx, password, f.creds.Password); err != nil {
		return err
	}

	submit, err := browser.FindFirstVisible(ctx, d, freeboxSubmitSelectors...)
	if err != nil {
		submit, err = browser.FindByText(ctx, d, "button", "connecter")
		if err != nil {
			return err
		}
	}
	return d.Click(ctx, submit)
}

func (x freeboxAuth) OTPChallenged(ctx context.Context) bool {
	return x.f.exists(ctx, freeboxOTPSelectors...)
}

func (x freeboxAuth) EnterOTP(ctx context.Context, code string) error {
	if err := x.f.fill(ctx, code, "input[name*='otp']", "input[name*='code']", "input[type='tel']"); err != nil {
		return err
	}
	return x.f.clickFirst(ctx, "input[type='submit']", "button[type='submit']")
}
