package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/model"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/provider"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/sirupsen/logrus"
)

// otpCodeRule mirrors the binding tag of model.OTPRequest
const otpCodeRule = "min=4,max=10"

// ProviderSet resolves the orchestrator of each initialised provider
type ProviderSet interface {
	Get(id string) (*service.Orchestrator, error)
	List() []provider.Info
	IDs() []string
}

// Settings carries the configuration facts the handler reports
type Settings struct {
	DefaultProvider string
	HasEmail        bool
	HasPassword     bool
}

// InvoiceHandler handles HTTP requests for invoice downloads
type InvoiceHandler struct {
	providers ProviderSet
	registry  repository.InvoiceRegistry
	settings  Settings
	log       *logrus.Entry
}

// NewInvoiceHandler creates a new invoice download handler
func NewInvoiceHandler(providers ProviderSet, registry repository.InvoiceRegistry, settings Settings) *InvoiceHandler {
	if settings.DefaultProvider == "" {
		settings.DefaultProvider = provider.AmazonID
	}
	return &InvoiceHandler{
		providers: providers,
		registry:  registry,
		settings:  settings,
		log:       logrus.StandardLogger().WithField("type", "handler/invoice"),
	}
}

// RegisterRoutes registers the handler's routes with the given router
func (h *InvoiceHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)

	api := router.Group("/api")
	api.GET("/providers", h.ListProviders)
	api.POST("/download", h.DownloadInvoices)
	api.GET("/status", h.GetStatus)
	api.POST("/submit-otp", h.SubmitOTP)
	api.GET("/check-2fa", h.Check2FA)
	api.GET("/invoices", h.ListInvoices)
	api.GET("/debug", h.Debug)
}

// Root reports that the API is up
// @Summary API status
// @Tags status
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Router / [get]
func (h *InvoiceHandler) Root(c *gin.Context) {
	respondOK(c, model.StatusResponse{
		Status:  "ok",
		Message: "Invoice fetcher API is running",
	})
}

// ListProviders lists every known provider with its state
// @Summary List providers
// @Description Known providers and whether each is implemented and configured
// @Tags providers
// @Produce json
// @Success 200 {object} model.ProvidersResponse
// @Router /api/providers [get]
func (h *InvoiceHandler) ListProviders(c *gin.Context) {
	infos := h.providers.List()
	out := make([]model.ProviderInfo, 0, len(infos))
	for _, i := range infos {
		out = append(out, model.ProviderInfo{
			ID:          i.ID,
			Name:        i.Name,
			Configured:  i.Configured,
			Implemented: i.Implemented,
		})
	}
	respondOK(c, model.ProvidersResponse{Providers: out})
}

// DownloadInvoices runs a download batch for one provider
// @Summary Download invoices
// @Description Logs in, walks the invoice listing and stores every matching invoice not already on record
// @Tags invoices
// @Accept json
// @Produce json
// @Param otp_code query string false "One-time passcode for two-factor authentication"
// @Param request body model.DownloadRequest false "Download options"
// @Success 200 {object} model.DownloadResponse
// @Failure 400 {object} model.ErrorResponse "Invalid request"
// @Failure 401 {object} model.ErrorResponse "OTP required"
// @Failure 409 {object} model.ErrorResponse "Download already running"
// @Failure 500 {object} model.ErrorResponse "Download failed"
// @Failure 501 {object} model.ErrorResponse "Provider not implemented"
// @Failure 503 {object} model.ErrorResponse "Provider not configured"
// @Router /api/download [post]
func (h *InvoiceHandler) DownloadInvoices(c *gin.Context) {
	var body model.DownloadRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		respondBadRequest(c, ErrInvalidInput, validationDetails(err)...)
		return
	}

	if (body.DateStart == "") != (body.DateEnd == "") {
		respondBadRequest(c, "dateStart and dateEnd must be given together",
			newErrorDetail("dateStart", "requires dateEnd"))
		return
	}

	req, err := body.ToDomain()
	if err != nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("dateStart", err.Error()))
		return
	}
	if req.DateStart.Known() && req.DateEnd.Before(req.DateStart.Time) {
		respondBadRequest(c, "dateEnd must not be before dateStart", newErrorDetail("dateEnd", "before dateStart"))
		return
	}
	if otp := getQueryString(c, "otp_code"); otp != "" {
		if details := validateQueryValue("otp_code", otp, otpCodeRule); len(details) > 0 {
			respondBadRequest(c, ErrInvalidQueryParams, details...)
			return
		}
		req.OTPCode = otp
	}

	id := provider.Normalize(body.Provider, h.settings.DefaultProvider)
	run, ok := h.resolve(c, id)
	if !ok {
		return
	}

	log := h.log.WithField("provider", id)
	result, err := run.DownloadInvoices(c.Request.Context(), req)
	if err != nil {
		if result != nil && result.Count > 0 {
			log.WithError(err).Warn("download stopped early after partial progress")
			respondOK(c, downloadResponse(result, err.Error()))
			return
		}

		switch {
		case service.IsOTPRequired(err):
			respondUnauthorized(c, ErrOTPRequired)
		case errors.Is(err, service.ErrBusy):
			respondConflict(c, ErrRunInProgress)
		default:
			log.WithError(err).Error("download failed")
			respondInternalServerError(c, fmt.Sprintf("Download failed: %v", err))
		}
		return
	}

	respondOK(c, downloadResponse(result, ""))
}

func downloadResponse(result *domain.DownloadResult, warning string) model.DownloadResponse {
	files := result.Files
	if files == nil {
		files = []string{}
	}
	return model.DownloadResponse{
		Success: true,
		Message: fmt.Sprintf("%d invoice(s) downloaded", result.Count),
		Count:   result.Count,
		Files:   files,
		Warning: warning,
	}
}

// resolve looks up a provider and writes the 501/503 response when it is unavailable
func (h *InvoiceHandler) resolve(c *gin.Context, id string) (*service.Orchestrator, bool) {
	run, err := h.providers.Get(id)
	if err == nil {
		return run, true
	}

	if errors.Is(err, provider.ErrNotImplemented) {
		respondNotImplemented(c, fmt.Sprintf("Provider '%s' is not implemented yet", id))
	} else {
		respondServiceUnavailable(c, fmt.Sprintf("Provider '%s' is not configured or initialized", id))
	}
	return nil, false
}

// GetStatus reports whether a provider is ready or waits for a passcode
// @Summary Provider status
// @Tags status
// @Produce json
// @Param provider query string false "Provider id"
// @Success 200 {object} model.StatusResponse
// @Router /api/status [get]
func (h *InvoiceHandler) GetStatus(c *gin.Context) {
	id := provider.Normalize(getQueryString(c, "provider"), h.settings.DefaultProvider)
	run, err := h.providers.Get(id)
	if err != nil {
		respondOK(c, model.StatusResponse{
			Status:  "error",
			Message: fmt.Sprintf("The %s downloader is not initialized", id),
		})
		return
	}

	if run.Provider().IsOTPRequired(c.Request.Context()) {
		respondOK(c, model.StatusResponse{
			Status:  "otp_required",
			Message: "OTP required - please provide the code",
		})
		return
	}

	respondOK(c, model.StatusResponse{
		Status:  "ready",
		Message: "The downloader is ready",
	})
}

// SubmitOTP answers a pending passcode challenge
// @Summary Submit OTP
// @Tags auth
// @Accept json
// @Produce json
// @Param provider query string false "Provider id"
// @Param request body model.OTPRequest true "Passcode"
// @Success 200 {object} model.OTPResponse
// @Failure 400 {object} model.ErrorResponse "Invalid passcode format"
// @Failure 500 {object} model.ErrorResponse "Submission failed"
// @Failure 503 {object} model.ErrorResponse "Downloader not initialized"
// @Router /api/submit-otp [post]
func (h *InvoiceHandler) SubmitOTP(c *gin.Context) {
	var req model.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, ErrInvalidInput, validationDetails(err)...)
		return
	}

	id := provider.Normalize(getQueryString(c, "provider"), h.settings.DefaultProvider)
	run, err := h.providers.Get(id)
	if err != nil {
		respondServiceUnavailable(c, ErrNotInitialized)
		return
	}

	p := run.Provider()
	h.log.WithField("provider", id).Info("submitting passcode")
	accepted, err := p.SubmitOTP(c.Request.Context(), req.OTPCode)
	if errors.Is(err, service.ErrNoOTPPending) {
		respondOK(c, model.OTPResponse{
			Success:     false,
			Message:     "No OTP challenge pending",
			RequiresOTP: false,
		})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("provider", id).Error("passcode submission failed")
		respondInternalServerError(c, fmt.Sprintf("OTP submission failed: %v", err))
		return
	}

	if !accepted {
		respondOK(c, model.OTPResponse{
			Success:     false,
			Message:     "OTP code incorrect or expired",
			RequiresOTP: true,
		})
		return
	}

	still := p.IsOTPRequired(c.Request.Context())
	message := "OTP code accepted"
	if still {
		message = "OTP code accepted, but two-factor authentication is still required"
	}
	respondOK(c, model.OTPResponse{
		Success:     true,
		Message:     message,
		RequiresOTP: still,
	})
}

// Check2FA reports whether a passcode is pending
// @Summary Check two-factor state
// @Tags auth
// @Produce json
// @Param provider query string false "Provider id"
// @Success 200 {object} model.OTPResponse
// @Failure 503 {object} model.ErrorResponse "Downloader not initialized"
// @Router /api/check-2fa [get]
func (h *InvoiceHandler) Check2FA(c *gin.Context) {
	id := provider.Normalize(getQueryString(c, "provider"), h.settings.DefaultProvider)
	run, err := h.providers.Get(id)
	if err != nil {
		respondServiceUnavailable(c, ErrNotInitialized)
		return
	}

	required := run.Provider().IsOTPRequired(c.Request.Context())
	message := "No OTP required"
	if required {
		message = "OTP required"
	}
	respondOK(c, model.OTPResponse{
		Success:     !required,
		Message:     message,
		RequiresOTP: required,
	})
}

// ListInvoices lists the registry entries
// @Summary List downloaded invoices
// @Tags invoices
// @Produce json
// @Param provider query string false "Provider id; all providers when empty"
// @Success 200 {object} model.InvoicesResponse
// @Failure 500 {object} model.ErrorResponse "Registry unreadable"
// @Router /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	id := provider.Normalize(getQueryString(c, "provider"), "")
	entries, err := h.registry.ListDownloaded(c.Request.Context(), id)
	if err != nil {
		h.log.WithError(err).Error("failed to list registry")
		respondInternalServerError(c, fmt.Sprintf("Failed to list invoices: %v", err))
		return
	}
	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	respondOK(c, model.InvoicesResponse{Invoices: entries})
}

// Debug exposes the loaded providers and their session state
// @Summary Diagnostics
// @Tags status
// @Produce json
// @Success 200 {object} model.DebugResponse
// @Router /api/debug [get]
func (h *InvoiceHandler) Debug(c *gin.Context) {
	ids := h.providers.IDs()
	sessions := make(map[string]domain.DownloadSession, len(ids))
	for _, id := range ids {
		if run, err := h.providers.Get(id); err == nil {
			sessions[id] = run.Provider().Session()
		}
	}

	respondOK(c, model.DebugResponse{
		Downloaders:    ids,
		SettingsLoaded: true,
		HasEmail:       h.settings.HasEmail,
		HasPassword:    h.settings.HasPassword,
		Sessions:       sessions,
	})
}
