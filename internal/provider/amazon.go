package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	// AmazonID is the provider id of Amazon
	AmazonID = "amazon"

	amazonBaseURL    = "https://www.amazon.fr"
	amazonSignInPath = "/ap/signin"
	amazonOrdersPath = "/gp/css/order-history"
)

var (
	amazonEmailSelectors    = []string{"#ap_email", "input[name='email']"}
	amazonContinueSelectors = []string{"#continue", "input#continue", "span#continue input"}
	amazonPasswordSelectors = []string{"#ap_password", "input[name='password']"}
	amazonSubmitSelectors   = []string{"#signInSubmit", "input#signInSubmit"}

	amazonAccountSelectors = []string{"#nav-link-accountList", "#nav-orders"}
	amazonListingSelectors = []string{"#ordersContainer", ".your-orders-content-container", ".order-card"}

	amazonOTPSelectors = []string{
		"input[name='otpCode']",
		"input[name='code']",
		"input#auth-code",
		"input#totpCode",
		"input[placeholder*='code']",
		"input[placeholder*='Code']",
		"input[aria-label*='code']",
		"input[aria-label*='Code']",
	}
	amazonOTPSubmitSelectors = []string{
		"#auth-signin-button",
		"#cvf-submit-otp-button input",
		"input[type='submit']",
		"button[type='submit']",
	}
	amazonOTPKeywords = []string{
		"code de vérification",
		"verification code",
		"code à 6 chiffres",
		"6-digit code",
		"entrez le code",
		"enter the code",
		"authentification à deux facteurs",
		"two-factor authentication",
	}

	amazonOrderSelectors   = []string{"[data-order-id]", ".order-card", ".order", "div[id^='order-']"}
	amazonTriggerSelectors = []string{"a.a-popover-trigger", ".a-popover-trigger", "span.a-declarative a"}
	amazonPopoverLinks     = ".a-popover:not([style*='display: none']) a"
	amazonDirectLinks      = "a[href*='invoice'], a[href*='facture']"

	amazonNextSelectors = []string{
		"ul.a-pagination li.a-last:not(.a-disabled) a",
		"a.s-pagination-next:not(.s-pagination-disabled)",
		"a[href*='pageToken']",
	}

	amazonOrderNumber = regexp.MustCompile(`\d{3}-\d{7}-\d{7}`)
)

const hidePopoversScript = `(function() {
	document.querySelectorAll('.a-popover').forEach(function(p) {
		p.style.display = 'none';
		p.style.visibility = 'hidden';
	});
	document.querySelectorAll('.a-popover-wrapper, .a-popover-modal').forEach(function(o) {
		o.remove();
	});
})()`

// AmazonCredentials holds the account used to sign in
type AmazonCredentials struct {
	Email    string
	Password string
}

// Amazon retrieves invoices from the order history of an Amazon account
type Amazon struct {
	*session
	creds   AmazonCredentials
	baseURL string
}

// NewAmazon creates an Amazon adapter. The browser starts on first use.
func NewAmazon(creds AmazonCredentials, opts Options) *Amazon {
	a := &Amazon{
		session: newSession(AmazonID, opts),
		creds:   creds,
		baseURL: amazonBaseURL,
	}
	a.bind(amazonAuth{a})
	return a
}

func (a *Amazon) url(path string) string {
	return strings.TrimRight(a.baseURL, "/") + path
}

func onSignInPage(rawURL string) bool {
	return strings.Contains(rawURL, "/ap/signin") || strings.Contains(rawURL, "/ap/cvf/")
}

// NavigateToInvoiceListing opens the order history and waits for the order list
func (a *Amazon) NavigateToInvoiceListing(ctx context.Context) error {
	d, err := a.live()
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrListingUnreachable, err)
	}

	if err := d.Navigate(ctx, a.url(amazonOrdersPath)); err != nil {
		return fmt.Errorf("%w: %w", service.ErrListingUnreachable, err)
	}
	return a.confirmListing(ctx)
}

// confirmListing waits for the order list. A redirect to sign-in means the session expired.
func (a *Amazon) confirmListing(ctx context.Context) error {
	err := browser.WaitUntil(ctx, a.opts.Timeout, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return a.exists(ctx, amazonListingSelectors...), nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	current := a.currentURL(ctx)
	if onSignInPage(current) {
		return fmt.Errorf("%w: redirected to sign-in", service.ErrListingUnreachable)
	}
	return fmt.Errorf("%w: order list not found at %s: %w", service.ErrListingUnreachable, current, err)
}

// ListCandidates reads the order blocks of the current page
func (a *Amazon) ListCandidates(ctx context.Context) ([]domain.InvoiceRecord, error) {
	d, err := a.live()
	if err != nil {
		return nil, err
	}

	var blocks []browser.Element
	for _, sel := range amazonOrderSelectors {
		els, err := d.FindElements(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(els) > 0 {
			blocks = els
			break
		}
	}

	seen := make(map[string]bool, len(blocks))
	records := make([]domain.InvoiceRecord, 0, len(blocks))
	for i, block := range blocks {
		text, _ := block.Text(ctx)
		orderID, stable := amazonOrderID(ctx, block, text, i)
		if seen[orderID] {
			continue
		}
		seen[orderID] = true

		records = append(records, domain.InvoiceRecord{
			OrderID:     orderID,
			StableID:    stable,
			InvoiceDate: service.ParseInvoiceDate(text),
			Handle:      domain.RetrievalHandle{Ref: block},
		})
	}

	a.log.WithField("orders", len(records)).Debug("listed orders")
	return records, nil
}

// amazonOrderID reads the order number of a block. The fallback is positional
// and reported as unstable.
func amazonOrderID(ctx context.Context, block browser.Element, text string, index int) (string, bool) {
	if id, err := block.Attribute(ctx, "data-order-id"); err == nil && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id), true
	}
	if id, err := block.Attribute(ctx, "id"); err == nil {
		if m := amazonOrderNumber.FindString(id); m != "" {
			return m, true
		}
	}
	if m := amazonOrderNumber.FindString(text); m != "" {
		return m, true
	}
	return fmt.Sprintf("order_%d", index), false
}

// HasNextPage reports whether the pagination shows an enabled next link
func (a *Amazon) HasNextPage(ctx context.Context) bool {
	_, err := a.nextLink(ctx)
	return err == nil
}

func (a *Amazon) nextLink(ctx context.Context) (browser.Element, error) {
	d, err := a.live()
	if err != nil {
		return nil, err
	}
	if el, err := browser.FindFirstVisible(ctx, d, amazonNextSelectors...); err == nil {
		return el, nil
	}
	return browser.FindByText(ctx, d, "ul.a-pagination li:not(.a-disabled) a", "suivant", "next")
}

// AdvanceToNextPage follows the pagination control and re-checks the listing
func (a *Amazon) AdvanceToNextPage(ctx context.Context) error {
	d, err := a.live()
	if err != nil {
		return err
	}
	next, err := a.nextLink(ctx)
	if err != nil {
		return err
	}

	before, _ := d.CurrentURL(ctx)
	href, _ := next.Attribute(ctx, "href")

	if err := d.Click(ctx, next); err != nil {
		a.log.WithError(err).Debug("next page click failed, following link")
	}

	moved := browser.WaitUntil(ctx, a.opts.Timeout/3, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		u, err := d.CurrentURL(ctx)
		return err == nil && u != before, err
	})
	if moved != nil && href != "" {
		if err := d.Navigate(ctx, browser.ResolveURL(before, href)); err != nil {
			return err
		}
	}

	return a.confirmListing(ctx)
}

// DownloadOneInvoice opens the invoice menu of the order and fetches the
// linked document with the session cookies
func (a *Amazon) DownloadOneInvoice(ctx context.Context, rec domain.InvoiceRecord) (*domain.InvoiceDocument, error) {
	link := rec.Handle.URL
	if link == "" {
		var err error
		link, err = a.resolveInvoiceURL(ctx, rec)
		if err != nil {
			return nil, err
		}
	}

	a.log.WithFields(logrus.Fields{
		"order_id": rec.OrderID,
		"url":      truncate(link, 100),
	}).Debug("fetching invoice")
	return a.fetch(ctx, link)
}

func (a *Amazon) resolveInvoiceURL(ctx context.Context, rec domain.InvoiceRecord) (string, error) {
	d, err := a.live()
	if err != nil {
		return "", err
	}
	block, ok := rec.Handle.Ref.(browser.Element)
	if !ok {
		return "", fmt.Errorf("order %s has no page element", rec.OrderID)
	}

	a.hidePopovers(ctx)
	defer a.hidePopovers(ctx)

	pageURL, _ := d.CurrentURL(ctx)

	trigger, err := a.findTrigger(ctx, d, block)
	if err != nil {
		// Some layouts link the invoice directly from the order card.
		links, ferr := d.FindWithin(ctx, block, amazonDirectLinks)
		if ferr == nil && len(links) > 0 {
			if href, _ := links[0].Attribute(ctx, "href"); href != "" {
				return browser.ResolveURL(pageURL, href), nil
			}
		}
		return "", err
	}

	if err := d.Click(ctx, trigger); err != nil {
		return "", err
	}

	var href string
	err = browser.WaitUntil(ctx, a.opts.Timeout/3, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		h, err := a.popoverInvoiceLink(ctx, d)
		if err != nil {
			return false, err
		}
		href = h
		return true, nil
	})
	if err != nil {
		return "", &browser.DriverError{Op: "invoice_popover", Selector: amazonPopoverLinks, Err: err}
	}
	return browser.ResolveURL(pageURL, href), nil
}

// findTrigger returns the invoice menu button inside an order block
func (a *Amazon) findTrigger(ctx context.Context, d browser.Driver, block browser.Element) (browser.Element, error) {
	for _, sel := range amazonTriggerSelectors {
		els, err := d.FindWithin(ctx, block, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			text, err := el.Text(ctx)
			if err == nil && browser.ContainsAny(text, "facture", "invoice") {
				return el, nil
			}
		}
	}
	return nil, &browser.DriverError{Op: "find_invoice_trigger", Selector: strings.Join(amazonTriggerSelectors, ", "), Err: browser.ErrElementNotFound}
}

// popoverInvoiceLink picks the invoice entry of the open popover, skipping order summaries
func (a *Amazon) popoverInvoiceLink(ctx context.Context, d browser.Driver) (string, error) {
	links, err := d.FindElements(ctx, amazonPopoverLinks)
	if err != nil {
		return "", err
	}
	for _, link := range links {
		if visible, err := link.Visible(ctx); err != nil || !visible {
			continue
		}
		text, _ := link.Text(ctx)
		href, _ := link.Attribute(ctx, "href")
		if href == "" {
			continue
		}

		text = strings.ToLower(strings.TrimSpace(text))
		if text == "facture" || strings.Contains(text, "invoice") {
			return href, nil
		}
		lower := strings.ToLower(href)
		if (strings.Contains(lower, "invoice") || strings.Contains(lower, "document")) &&
			!strings.Contains(lower, "summary") && !strings.Contains(lower, "recap") {
			return href, nil
		}
	}
	return "", browser.ErrElementNotFound
}

func (a *Amazon) hidePopovers(ctx context.Context) {
	d, err := a.live()
	if err != nil {
		return
	}
	if err := d.ExecuteScript(ctx, hidePopoversScript, nil); err != nil {
		a.log.WithError(err).Debug("failed to hide popovers")
	}
}

// amazonAuth is the Amazon half of the login flow
type amazonAuth struct {
	a *Amazon
}

func (x amazonAuth) Start(ctx context.Context) error {
	return x.a.start(ctx)
}

func (x amazonAuth) Active() bool {
	return x.a.active()
}

func (x amazonAuth) LoggedIn(ctx context.Context) bool {
	current := x.a.currentURL(ctx)
	if current == "" || onSignInPage(current) {
		return false
	}
	if x.a.exists(ctx, amazonListingSelectors...) {
		return true
	}

	d, err := x.a.live()
	if err != nil {
		return false
	}
	if _, err := d.FindElement(ctx, "#nav-orders"); err == nil {
		return true
	}
	account, err := d.FindElement(ctx, "#nav-link-accountList")
	if err != nil {
		return false
	}
	text, _ := account.Text(ctx)
	return !browser.ContainsAny(text, "identifiez-vous", "sign in")
}

func (x amazonAuth) OpenLoginPage(ctx context.Context) error {
	d, err := x.a.live()
	if err != nil {
		return err
	}
	if err := d.Navigate(ctx, x.a.url(amazonSignInPath)); err != nil {
		return err
	}

	forms := append(append([]string{}, amazonEmailSelectors...), amazonPasswordSelectors...)
	forms = append(forms, amazonOTPSelectors...)
	_ = browser.WaitUntil(ctx, x.a.opts.Timeout, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return x.a.exists(ctx, forms...) || x.LoggedIn(ctx), nil
	})
	return ctx.Err()
}

// SubmitCredentials handles both the two-step and the single-page sign-in form
func (x amazonAuth) SubmitCredentials(ctx context.Context) error {
	a := x.a
	if a.creds.Email == "" || a.creds.Password == "" {
		return fmt.Errorf("amazon credentials are not configured")
	}

	if a.exists(ctx, amazonEmailSelectors...) {
		if err := a.fill(ctx, a.creds.Email, amazonEmailSelectors...); err != nil {
			return err
		}
		if !a.exists(ctx, amazonPasswordSelectors...) {
			if err := a.clickFirst(ctx, amazonContinueSelectors...); err != nil {
				return err
			}
		}
	}

	d, err := a.live()
	if err != nil {
		return err
	}
	if _, err := browser.WaitForElement(ctx, d, amazonPasswordSelectors[0], a.opts.Timeout); err != nil {
		return err
	}
	if err := a.fill(ctx, a.creds.Password, amazonPasswordSelectors...); err != nil {
		return err
	}
	return a.clickFirst(ctx, amazonSubmitSelectors...)
}

func (x amazonAuth) OTPChallenged(ctx context.Context) bool {
	if x.a.exists(ctx, amazonOTPSelectors...) {
		return true
	}
	return browser.ContainsAny(x.a.pageText(ctx), amazonOTPKeywords...)
}

func (x amazonAuth) EnterOTP(ctx context.Context, code string) error {
	if err := x.a.fill(ctx, code, amazonOTPSelectors...); err != nil {
		return err
	}
	return x.a.clickFirst(ctx, amazonOTPSubmitSelectors...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// hostOf returns the host of rawURL, or "" when it does not parse
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
