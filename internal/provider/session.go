package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/sirupsen/logrus"
)

const defaultWaitTimeout = 30 * time.Second

// DriverFactory starts a browser session
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// Options configures the browser session behind an adapter
type Options struct {
	Headless   bool
	ProfileDir string
	ExecPath   string

	// Timeout bounds driver calls and element waits
	Timeout time.Duration

	// KeepOpen leaves the browser running when the adapter is closed
	KeepOpen bool

	// Manual waits for an operator to log in instead of filling the form
	Manual        bool
	ManualTimeout time.Duration
	ManualPoll    time.Duration

	OTPFunc service.OTPFunc

	// NewDriver replaces the Chrome driver
	NewDriver DriverFactory

	// Transfer replaces the default document transfer client
	Transfer *browser.Transfer
}

// session owns the lazily started driver and the login state of one adapter
type session struct {
	id       string
	opts     Options
	transfer *browser.Transfer
	login    *service.LoginMachine
	log      *logrus.Entry

	mu     sync.Mutex
	driver browser.Driver
}

func newSession(id string, opts Options) *session {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWaitTimeout
	}
	if opts.NewDriver == nil {
		opts.NewDriver = chromeFactory(opts)
	}
	if opts.Transfer == nil {
		opts.Transfer = browser.NewTransfer(opts.Timeout)
	}

	return &session{
		id:       id,
		opts:     opts,
		transfer: opts.Transfer,
		log:      logrus.StandardLogger().WithField("type", "provider/"+id),
	}
}

func chromeFactory(opts Options) DriverFactory {
	return func(ctx context.Context) (browser.Driver, error) {
		return browser.NewChromeDriver(ctx, browser.ChromeOptions{
			Headless:   opts.Headless,
			ProfileDir: opts.ProfileDir,
			ExecPath:   opts.ExecPath,
			Timeout:    opts.Timeout,
		})
	}
}

// bind attaches the login machine driving auth
func (s *session) bind(auth service.Authenticator) {
	s.login = service.NewLoginMachine(auth, service.LoginOptions{
		Provider:      s.id,
		Manual:        s.opts.Manual,
		ManualTimeout: s.opts.ManualTimeout,
		ManualPoll:    s.opts.ManualPoll,
		SettleTimeout: s.opts.Timeout,
		OTPFunc:       s.opts.OTPFunc,
	})
}

// ID returns the provider id
func (s *session) ID() string {
	return s.id
}

// start launches the browser if none is running
func (s *session) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver != nil {
		return nil
	}

	d, err := s.opts.NewDriver(ctx)
	if err != nil {
		return err
	}
	s.driver = d
	s.log.Info("browser session started")
	return nil
}

func (s *session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver != nil
}

// live returns the running driver or ErrNoSession
func (s *session) live() (browser.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return nil, browser.ErrNoSession
	}
	return s.driver, nil
}

// currentURL returns the page URL, or "" without a session
func (s *session) currentURL(ctx context.Context) string {
	d, err := s.live()
	if err != nil {
		return ""
	}
	u, err := d.CurrentURL(ctx)
	if err != nil {
		return ""
	}
	return u
}

func (s *session) pageText(ctx context.Context) string {
	d, err := s.live()
	if err != nil {
		return ""
	}
	text, err := d.PageText(ctx)
	if err != nil {
		return ""
	}
	return text
}

// exists reports whether any selector matches
func (s *session) exists(ctx context.Context, selectors ...string) bool {
	d, err := s.live()
	if err != nil {
		return false
	}
	_, _, err = browser.FindFirst(ctx, d, selectors...)
	return err == nil
}

// fill types text into the first matching field
func (s *session) fill(ctx context.Context, text string, selectors ...string) error {
	d, err := s.live()
	if err != nil {
		return err
	}
	el, _, err := browser.FindFirst(ctx, d, selectors...)
	if err != nil {
		return err
	}
	return d.TypeText(ctx, el, text)
}

// clickFirst clicks the first matching element
func (s *session) clickFirst(ctx context.Context, selectors ...string) error {
	d, err := s.live()
	if err != nil {
		return err
	}
	el, _, err := browser.FindFirst(ctx, d, selectors...)
	if err != nil {
		return err
	}
	return d.Click(ctx, el)
}

// fetch downloads url with the cookies of the live session
func (s *session) fetch(ctx context.Context, url string) (*domain.InvoiceDocument, error) {
	d, err := s.live()
	if err != nil {
		return nil, err
	}
	return s.transfer.Fetch(ctx, d, url)
}

// Login runs the login flow, using otpCode if a challenge appears
func (s *session) Login(ctx context.Context, otpCode string) error {
	return s.login.Login(ctx, otpCode)
}

// IsOTPRequired reports whether a passcode challenge is pending
func (s *session) IsOTPRequired(ctx context.Context) bool {
	return s.login.IsOTPRequired(ctx)
}

// SubmitOTP answers a pending passcode challenge
func (s *session) SubmitOTP(ctx context.Context, code string) (bool, error) {
	return s.login.SubmitOTP(ctx, code)
}

// Session reports the login state of the browser session
func (s *session) Session() domain.DownloadSession {
	return s.login.Session()
}

// SetOTPFunc replaces the passcode callback
func (s *session) SetOTPFunc(fn service.OTPFunc) {
	s.login.SetOTPFunc(fn)
}

// Close quits the browser and resets the login state. Under the keep-open
// or manual policy the browser is left running.
func (s *session) Close() error {
	if s.opts.KeepOpen || s.opts.Manual {
		s.log.Info("leaving browser open")
		return nil
	}

	s.mu.Lock()
	d := s.driver
	s.driver = nil
	s.mu.Unlock()

	if d == nil {
		return nil
	}

	s.login.Reset()
	if err := d.Close(); err != nil {
		s.log.WithError(err).Warn("failed to close browser")
		return err
	}
	s.log.Info("browser session closed")
	return nil
}
