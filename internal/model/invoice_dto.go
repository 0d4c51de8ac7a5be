package model

import (
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// DownloadRequest is the body of a download call. All fields are optional.
type DownloadRequest struct {
	Provider        string `json:"provider" example:"amazon"`
	MaxInvoices     *int   `json:"maxInvoices" binding:"omitempty,min=1,max=1000" example:"50"`
	Year            *int   `json:"year" binding:"omitempty,min=2020,max=2030" example:"2024"`
	Month           *int   `json:"month" binding:"omitempty,min=1,max=12" example:"1"`
	Months          []int  `json:"months" binding:"omitempty,dive,min=1,max=12"`
	DateStart       string `json:"dateStart" binding:"omitempty,datetime=2006-01-02" example:"2024-01-01"`
	DateEnd         string `json:"dateEnd" binding:"omitempty,datetime=2006-01-02" example:"2024-03-31"`
	ForceRedownload bool   `json:"forceRedownload"`
	OTPCode         string `json:"otpCode,omitempty" binding:"omitempty,min=4,max=10"`
}

// ToDomain converts the request into a domain download request. Dates must
// have passed validation.
func (r *DownloadRequest) ToDomain() (domain.DownloadRequest, error) {
	req := domain.DownloadRequest{
		Months:          r.Months,
		ForceRedownload: r.ForceRedownload,
		OTPCode:         r.OTPCode,
	}
	if r.MaxInvoices != nil {
		req.MaxInvoices = *r.MaxInvoices
	}
	if r.Year != nil {
		req.Year = *r.Year
	}
	if r.Month != nil {
		req.Month = *r.Month
	}

	var err error
	if r.DateStart != "" {
		if req.DateStart, err = domain.ParseDate(r.DateStart); err != nil {
			return req, err
		}
	}
	if r.DateEnd != "" {
		if req.DateEnd, err = domain.ParseDate(r.DateEnd); err != nil {
			return req, err
		}
	}
	return req, nil
}

// DownloadResponse reports a finished download run
type DownloadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Count   int      `json:"count"`
	Files   []string `json:"files"`
	// Warning is set when the run stopped early after storing some invoices
	Warning string `json:"warning,omitempty"`
}

// StatusResponse represents a status message
type StatusResponse struct {
	Status  string `json:"status" example:"ready"`
	Message string `json:"message"`
}

// OTPRequest carries a one-time passcode
type OTPRequest struct {
	OTPCode string `json:"otpCode" binding:"required,min=4,max=10" example:"123456"`
}

// OTPResponse reports the passcode state of a provider
type OTPResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RequiresOTP bool   `json:"requiresOtp"`
}

// ProviderInfo describes one provider
type ProviderInfo struct {
	ID          string `json:"id" example:"amazon"`
	Name        string `json:"name" example:"Amazon"`
	Configured  bool   `json:"configured"`
	Implemented bool   `json:"implemented"`
}

// ProvidersResponse lists the known providers
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// InvoicesResponse lists registry entries
type InvoicesResponse struct {
	Invoices []domain.RegistryEntry `json:"invoices"`
}

// DebugResponse exposes diagnostic state
type DebugResponse struct {
	Downloaders    []string                          `json:"downloaders"`
	SettingsLoaded bool                              `json:"settingsLoaded"`
	HasEmail       bool                              `json:"hasEmail"`
	HasPassword    bool                              `json:"hasPassword"`
	Sessions       map[string]domain.DownloadSession `json:"sessions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
