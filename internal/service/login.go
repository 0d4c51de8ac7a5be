package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

// LoginState is the position of a session in the login flow
type LoginState int32

const (
	// StateLoggedOut means no authenticated session
	StateLoggedOut LoginState = iota
	// StateAuthenticating means credentials were submitted and the outcome is pending
	StateAuthenticating
	// StateOTPRequired means the site is waiting for a one-time passcode
	StateOTPRequired
	// StateLoggedIn means the session can reach the account pages
	StateLoggedIn
)

// String returns the state name used in logs
func (s LoginState) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateOTPRequired:
		return "otp_required"
	case StateLoggedIn:
		return "logged_in"
	default:
		return fmt.Sprintf("LoginState(%d)", int32(s))
	}
}

// Authenticator is the site-specific half of a login flow. Each method
// performs one step against the browser; LoginMachine decides the order.
type Authenticator interface {
	// Start makes sure a browser session exists
	Start(ctx context.Context) error

	// Active reports whether a browser session exists
	Active() bool

	// LoggedIn probes the current page for signs of an authenticated session
	LoggedIn(ctx context.Context) bool

	OpenLoginPage(ctx context.Context) error
	SubmitCredentials(ctx context.Context) error

	// OTPChallenged probes the current page for a passcode prompt
	OTPChallenged(ctx context.Context) bool

	// EnterOTP fills and submits the passcode prompt
	EnterOTP(ctx context.Context, code string) error
}

// OTPFunc asks an out-of-band source (terminal, UI) for a passcode
type OTPFunc func(ctx context.Context) (string, error)

// LoginOptions configures a LoginMachine
type LoginOptions struct {
	Provider string

	// Manual skips field entry and waits for an operator to log in
	Manual        bool
	ManualTimeout time.Duration
	ManualPoll    time.Duration

	// SettleTimeout bounds the wait for the site to react to a submitted form
	SettleTimeout time.Duration

	// OTPFunc is consulted when a challenge appears and no code was supplied
	OTPFunc OTPFunc
}

// LoginMachine drives an Authenticator through login and the optional
// passcode challenge
type LoginMachine struct {
	auth Authenticator
	opts LoginOptions
	log  *logrus.Entry

	mu         sync.Mutex
	state      atomic.Int32
	pendingOTP string
}

// NewLoginMachine creates a login state machine over auth
func NewLoginMachine(auth Authenticator, opts LoginOptions) *LoginMachine {
	if opts.ManualTimeout <= 0 {
		opts.ManualTimeout = 5 * time.Minute
	}
	if opts.ManualPoll <= 0 {
		opts.ManualPoll = 5 * time.Second
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 15 * time.Second
	}

	return &LoginMachine{
		auth: auth,
		opts: opts,
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":     "service/login",
			"provider": opts.Provider,
		}),
	}
}

// State returns the current login state without blocking
func (m *LoginMachine) State() LoginState {
	return LoginState(m.state.Load())
}

func (m *LoginMachine) setState(s LoginState) {
	if prev := LoginState(m.state.Swap(int32(s))); prev != s {
		m.log.WithField("from", prev.String()).Debugf("login state -> %s", s)
	}
}

// SetOTPFunc replaces the passcode callback
func (m *LoginMachine) SetOTPFunc(fn OTPFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.OTPFunc = fn
}

// Login authenticates the session, using otpCode if a challenge appears.
// A supplied code is kept until a challenge consumes it.
func (m *LoginMachine) Login(ctx context.Context, otpCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx, otpCode)
}

func (m *LoginMachine) login(ctx context.Context, otpCode string) error {
	if otpCode != "" {
		m.pendingOTP = otpCode
	}

	if err := m.auth.Start(ctx); err != nil {
		return m.fail(fmt.Errorf("%w: start browser: %w", ErrAuthFailed, err))
	}

	if m.auth.LoggedIn(ctx) {
		m.log.Info("session already authenticated")
		m.setState(StateLoggedIn)
		return nil
	}

	if m.opts.Manual {
		return m.waitForOperator(ctx)
	}

	m.setState(StateAuthenticating)
	if err := m.auth.OpenLoginPage(ctx); err != nil {
		return m.fail(fmt.Errorf("%w: open login page: %w", ErrAuthFailed, err))
	}

	// Remembered devices sometimes land straight on the challenge.
	if !m.auth.OTPChallenged(ctx) {
		if err := m.auth.SubmitCredentials(ctx); err != nil {
			return m.fail(fmt.Errorf("%w: submit credentials: %w", ErrAuthFailed, err))
		}
	}

	_ = browser.WaitUntil(ctx, m.opts.SettleTimeout, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return m.auth.LoggedIn(ctx) || m.auth.OTPChallenged(ctx), nil
	})
	if ctx.Err() != nil {
		return m.fail(fmt.Errorf("%w: %w", ErrAuthFailed, ctx.Err()))
	}

	switch {
	case m.auth.LoggedIn(ctx):
		m.setState(StateLoggedIn)
		metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "success").Inc()
		m.log.Info("login successful")
		return nil

	case m.auth.OTPChallenged(ctx):
		m.setState(StateOTPRequired)
		return m.resolveChallenge(ctx)

	default:
		return m.fail(fmt.Errorf("%w: still on login page after submitting credentials", ErrAuthFailed))
	}
}

// resolveChallenge answers a pending challenge from the remembered code or the callback
func (m *LoginMachine) resolveChallenge(ctx context.Context) error {
	code := m.pendingOTP
	m.pendingOTP = ""

	if code == "" && m.opts.OTPFunc != nil {
		m.log.Info("passcode required, asking callback")
		c, err := m.opts.OTPFunc(ctx)
		if err != nil {
			m.log.WithError(err).Warn("passcode callback failed")
		}
		code = c
	}

	if code == "" {
		metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "otp_required").Inc()
		m.log.Info("passcode required, waiting for caller")
		return &AuthError{Provider: m.opts.Provider, Err: ErrOTPRequired}
	}

	return m.enterOTP(ctx, code)
}

func (m *LoginMachine) enterOTP(ctx context.Context, code string) error {
	if err := m.auth.EnterOTP(ctx, code); err != nil {
		m.log.WithError(err).Warn("failed to enter passcode")
		return &AuthError{Provider: m.opts.Provider, Err: fmt.Errorf("%w: %w", ErrOTPRequired, err)}
	}

	_ = browser.WaitUntil(ctx, m.opts.SettleTimeout, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		return m.auth.LoggedIn(ctx), nil
	})

	if m.auth.LoggedIn(ctx) {
		m.setState(StateLoggedIn)
		metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "success").Inc()
		m.log.Info("passcode accepted")
		return nil
	}

	m.setState(StateOTPRequired)
	metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "otp_rejected").Inc()
	m.log.Warn("passcode rejected")
	return &AuthError{Provider: m.opts.Provider, Err: fmt.Errorf("%w: code rejected", ErrOTPRequired)}
}

// waitForOperator leaves the login page open and polls until someone logs in by hand
func (m *LoginMachine) waitForOperator(ctx context.Context) error {
	if err := m.auth.OpenLoginPage(ctx); err != nil {
		m.log.WithError(err).Warn("failed to open login page for manual login")
	}

	m.log.WithField("timeout", m.opts.ManualTimeout).Info("manual mode: waiting for operator login")
	err := browser.WaitUntil(ctx, m.opts.ManualTimeout, m.opts.ManualPoll, func(ctx context.Context) (bool, error) {
		return m.auth.LoggedIn(ctx), nil
	})
	if err != nil {
		return m.fail(fmt.Errorf("%w: manual login: %w", ErrAuthFailed, err))
	}

	m.setState(StateLoggedIn)
	metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "manual").Inc()
	m.log.Info("manual login detected")
	return nil
}

func (m *LoginMachine) fail(err error) error {
	m.setState(StateLoggedOut)
	metrics.LoginCounterVec.WithLabelValues(m.opts.Provider, "failure").Inc()
	m.log.WithError(err).Error("login failed")
	return &AuthError{Provider: m.opts.Provider, Err: err}
}

// IsOTPRequired reports whether a passcode challenge is pending. It does not
// change state; while another flow holds the session it answers from the last known state.
func (m *LoginMachine) IsOTPRequired(ctx context.Context) bool {
	if !m.mu.TryLock() {
		return m.State() == StateOTPRequired
	}
	defer m.mu.Unlock()

	if !m.auth.Active() {
		return false
	}
	return m.auth.OTPChallenged(ctx)
}

// SubmitOTP answers a pending challenge with code. Without a session it
// starts a login that will use code.
func (m *LoginMachine) SubmitOTP(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.auth.Active() {
		err := m.login(ctx, code)
		return otpOutcome(err)
	}

	if !m.auth.OTPChallenged(ctx) {
		if m.auth.LoggedIn(ctx) {
			m.setState(StateLoggedIn)
			return true, nil
		}
		m.log.Warn("passcode submitted but no challenge is pending")
		return false, ErrNoOTPPending
	}

	m.setState(StateOTPRequired)
	return otpOutcome(m.enterOTP(ctx, code))
}

func otpOutcome(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if IsOTPRequired(err) {
		return false, nil
	}
	return false, err
}

// Session reports the in-memory session state
func (m *LoginMachine) Session() domain.DownloadSession {
	state := m.State()
	return domain.DownloadSession{
		Active:        m.auth.Active(),
		Authenticated: state == StateLoggedIn,
		OTPPending:    state == StateOTPRequired,
	}
}

// Reset returns the machine to LoggedOut after the session was closed
func (m *LoginMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingOTP = ""
	m.setState(StateLoggedOut)
}
