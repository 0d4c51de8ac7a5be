package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// DateOnly is a calendar date without a time component. The zero value means "unknown".
type DateOnly struct {
	time.Time
}

// NewDate builds a DateOnly at midnight UTC
func NewDate(year int, month time.Month, day int) DateOnly {
	return DateOnly{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero date.
func ParseDate(s string) (DateOnly, error) {
	if s == "" {
		return DateOnly{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DateOnly{}, err
	}
	return DateOnly{Time: t}, nil
}

// Known reports whether the date carries a value
func (d DateOnly) Known() bool {
	return !d.Time.IsZero()
}

// ISO returns the YYYY-MM-DD form, or an empty string for an unknown date
func (d DateOnly) ISO() string {
	if !d.Known() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// UnmarshalJSON implements custom unmarshaling for date-only strings
func (d *DateOnly) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements custom marshaling for date-only strings
func (d DateOnly) MarshalJSON() ([]byte, error) {
	if !d.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(d.ISO())
}

// RetrievalHandle is how the bytes of an invoice are obtained: either a direct URL
// or an opaque in-page reference owned by the provider that produced it.
type RetrievalHandle struct {
	URL string
	Ref any
}

// InvoiceRecord is a candidate invoice discovered on a listing page
type InvoiceRecord struct {
	OrderID string
	// StableID is false when OrderID is a positional fallback that may differ between runs.
	StableID    bool
	InvoiceDate DateOnly
	Handle      RetrievalHandle
}

// InvoiceDocument is the payload fetched for a candidate
type InvoiceDocument struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// LooksLikePDF accepts a payload whose content type names PDF or whose bytes carry the PDF magic number
func (d *InvoiceDocument) LooksLikePDF() bool {
	if d == nil || len(d.Data) == 0 {
		return false
	}
	if strings.Contains(strings.ToLower(d.ContentType), "pdf") {
		return true
	}
	return bytes.HasPrefix(d.Data, []byte("%PDF"))
}

// RegistryEntry records one downloaded invoice
type RegistryEntry struct {
	Provider        string `json:"provider,omitempty"`
	OrderID         string `json:"order_id"`
	FilePath        string `json:"file_path"`
	InvoiceDateISO  string `json:"invoice_date,omitempty"`
	DownloadedAtISO string `json:"downloaded_at"`
}

// DownloadSession is the in-memory login state held by one provider instance
type DownloadSession struct {
	Active        bool `json:"active"`
	Authenticated bool `json:"authenticated"`
	OTPPending    bool `json:"otpRequired"`
}

// DownloadRequest is the caller-supplied set of download options
type DownloadRequest struct {
	MaxInvoices     int
	Year            int
	Month           int
	Months          []int
	DateStart       DateOnly
	DateEnd         DateOnly
	ForceRedownload bool
	OTPCode         string
}

// Criteria extracts the date filter part of the request
func (r DownloadRequest) Criteria() FilterCriteria {
	return FilterCriteria{
		Year:      r.Year,
		Month:     r.Month,
		Months:    r.Months,
		DateStart: r.DateStart,
		DateEnd:   r.DateEnd,
	}
}

// FilterCriteria narrows candidates by date. Zero values mean "not set".
type FilterCriteria struct {
	Year      int
	Month     int
	Months    []int
	DateStart DateOnly
	DateEnd   DateOnly
}

// HasRange reports whether both range bounds are set
func (c FilterCriteria) HasRange() bool {
	return c.DateStart.Known() && c.DateEnd.Known()
}

// Active reports whether any criterion constrains the candidates
func (c FilterCriteria) Active() bool {
	return c.HasRange() || c.Year != 0 || c.Month != 0 || len(c.Months) > 0
}

// DownloadResult reports what a download run actually persisted
type DownloadResult struct {
	Count int      `json:"count"`
	Files []string `json:"files"`
}
