package service

import (
	"errors"
	"fmt"
)

var (
	// ErrOTPRequired means the provider is waiting for a one-time passcode
	ErrOTPRequired = errors.New("otp required")

	// ErrAuthFailed means login failed for a reason an OTP cannot fix
	ErrAuthFailed = errors.New("authentication failed")

	// ErrListingUnreachable means the invoice history page could not be confirmed
	ErrListingUnreachable = errors.New("invoice listing unreachable")

	// ErrNotDocument means the fetched payload is not an invoice document
	ErrNotDocument = errors.New("payload is not an invoice document")

	// ErrNoOTPPending means a passcode was submitted while no challenge was waiting for one
	ErrNoOTPPending = errors.New("no otp challenge pending")

	// ErrBusy means a download run is already in progress for the provider
	ErrBusy = errors.New("download already in progress")
)

// AuthError represents a failed login attempt
type AuthError struct {
	// Provider is the provider id
	Provider string

	// Err is the underlying error
	Err error
}

// Error returns a string representation of the error
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s login: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// DownloadError represents an error that aborted a download run
type DownloadError struct {
	// Op is the step that failed
	Op string

	// Provider is the provider id
	Provider string

	// Err is the underlying error
	Err error
}

// Error returns a string representation of the error
func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return e.Provider + " " + e.Op
}

// Unwrap returns the underlying error
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// IsOTPRequired reports whether err means a passcode is needed to continue
func IsOTPRequired(err error) bool {
	return errors.Is(err, ErrOTPRequired)
}
