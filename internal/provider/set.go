package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownProvider means the id is not in the label registry
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNotImplemented means the provider is known but has no adapter
	ErrNotImplemented = errors.New("provider not implemented")

	// ErrNotConfigured means the provider has an adapter that was not initialised
	ErrNotConfigured = errors.New("provider not configured or initialized")
)

// labels lists every provider shown to clients, implemented or planned
var labels = []Info{
	{ID: AmazonID, Name: "Amazon"},
	{ID: "fnac", Name: "FNAC"},
	{ID: FreeboxID, Name: "Freebox"},
	{ID: "bouygues", Name: "Bouygues Telecom"},
	{ID: "decathlon", Name: "Decathlon"},
	{ID: "leroy_merlin", Name: "Leroy Merlin"},
}

var implemented = map[string]bool{
	AmazonID:  true,
	FreeboxID: true,
}

// Info describes a provider for listing
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Configured  bool   `json:"configured"`
	Implemented bool   `json:"implemented"`
}

// Normalize lowercases and trims a provider id, falling back to def when empty
func Normalize(id, def string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return def
	}
	return id
}

// Set holds the initialised providers, each behind its own orchestrator
type Set struct {
	mu         sync.RWMutex
	runs       map[string]*service.Orchestrator
	configured map[string]bool
	log        *logrus.Entry
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{
		runs:       make(map[string]*service.Orchestrator),
		configured: make(map[string]bool),
		log:        logrus.StandardLogger().WithField("type", "provider/set"),
	}
}

// Register adds an initialised provider. configured records whether its
// credentials are set.
func (s *Set) Register(o *service.Orchestrator, configured bool) {
	id := o.Provider().ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = o
	s.configured[id] = configured
}

// Get returns the orchestrator of id. A labelled provider without adapter
// yields ErrNotImplemented, an implemented one that was not initialised
// yields ErrNotConfigured.
func (s *Set) Get(id string) (*service.Orchestrator, error) {
	s.mu.RLock()
	o, ok := s.runs[id]
	s.mu.RUnlock()
	if ok {
		return o, nil
	}

	if !known(id) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if !implemented[id] {
		return nil, fmt.Errorf("%w: %q", ErrNotImplemented, id)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotConfigured, id)
}

func known(id string) bool {
	for _, l := range labels {
		if l.ID == id {
			return true
		}
	}
	return false
}

// List reports every labelled provider. An initialised provider counts as configured.
func (s *Set) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(labels))
	for _, l := range labels {
		_, live := s.runs[l.ID]
		l.Implemented = implemented[l.ID]
		l.Configured = l.Implemented && (s.configured[l.ID] || live)
		out = append(out, l)
	}
	return out
}

// IDs returns the initialised provider ids in sorted order
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases every provider session
func (s *Set) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for id, o := range s.runs {
		if err := o.Provider().Close(); err != nil {
			s.log.WithError(err).WithField("provider", id).Warn("failed to close provider")
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Build creates the adapters the configuration allows. Amazon is always
// initialised since a manual or profile-backed session needs no credentials;
// Freebox only when its credentials are set.
func Build(cfg *config.Config, registry repository.InvoiceRegistry, archiver service.Archiver) *Set {
	set := NewSet()
	opts := OptionsFromConfig(cfg)
	runOpts := service.OrchestratorOptions{
		DownloadDir:   cfg.DownloadPath,
		DefaultMax:    cfg.MaxInvoices,
		FetchInterval: cfg.DownloadInterval,
	}

	amazon := NewAmazon(AmazonCredentials{
		Email:    cfg.Amazon.Email,
		Password: cfg.Amazon.Password,
	}, opts)
	set.Register(service.NewOrchestrator(amazon, registry, archiver, runOpts), cfg.AmazonConfigured())

	if cfg.FreeboxConfigured() {
		freebox := NewFreebox(FreeboxCredentials{
			Login:    cfg.Freebox.Login,
			Password: cfg.Freebox.Password,
		}, opts)
		set.Register(service.NewOrchestrator(freebox, registry, archiver, runOpts), true)
	} else {
		set.log.Info("freebox credentials not set, provider disabled")
	}

	set.log.WithField("providers", set.IDs()).Info("providers initialised")
	return set
}

// OptionsFromConfig maps the browser settings onto adapter options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Headless:      cfg.Browser.Headless,
		ProfileDir:    cfg.Browser.ProfileDir,
		ExecPath:      cfg.Browser.ExecPath,
		Timeout:       cfg.BrowserTimeout(),
		KeepOpen:      cfg.Browser.KeepOpen,
		Manual:        cfg.Browser.ManualMode,
		ManualTimeout: cfg.ManualLoginTimeout,
		ManualPoll:    cfg.ManualLoginPoll,
	}
}

type otpPrompter interface {
	SetOTPFunc(fn service.OTPFunc)
}

// SetOTPFunc installs fn as the passcode callback of every provider that accepts one
func (s *Set) SetOTPFunc(fn service.OTPFunc) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.runs {
		if p, ok := o.Provider().(otpPrompter); ok {
			p.SetOTPFunc(fn)
		}
	}
}
