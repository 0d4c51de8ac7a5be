package service

import (
	"context"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// Provider is the capability set of one remote invoice source. The
// orchestrator drives any provider through this interface only.
//
// A Provider owns a single browser session and is not safe for concurrent
// multi-step use; the orchestrator serializes runs per provider.
type Provider interface {
	// ID returns the stable provider id, e.g. "amazon"
	ID() string

	// Login authenticates the session. It returns nil once logged in, an
	// error matching ErrOTPRequired when a passcode is still needed, and an
	// error matching ErrAuthFailed for any other failure.
	Login(ctx context.Context, otpCode string) error

	// NavigateToInvoiceListing moves to the order history page. It returns
	// an error matching ErrListingUnreachable when the page cannot be confirmed.
	NavigateToInvoiceListing(ctx context.Context) error

	// ListCandidates scans the current listing page
	ListCandidates(ctx context.Context) ([]domain.InvoiceRecord, error)

	HasNextPage(ctx context.Context) bool

	// AdvanceToNextPage follows the pagination control and re-checks that
	// the new page is still the listing
	AdvanceToNextPage(ctx context.Context) error

	// DownloadOneInvoice resolves the retrieval handle of rec to bytes
	DownloadOneInvoice(ctx context.Context, rec domain.InvoiceRecord) (*domain.InvoiceDocument, error)

	// IsOTPRequired reports whether the session waits for a passcode. It never changes state.
	IsOTPRequired(ctx context.Context) bool

	// SubmitOTP enters code into a pending challenge, or starts a login with it
	// when no session exists. A rejected code returns false with the challenge still pending.
	SubmitOTP(ctx context.Context, code string) (bool, error)

	// Session reports the in-memory session state
	Session() domain.DownloadSession

	// Close releases the browser unless a keep-open or manual policy applies
	Close() error
}

// Archiver mirrors persisted invoices to secondary storage
type Archiver interface {
	Archive(ctx context.Context, provider, fileName string, data []byte) error
}
