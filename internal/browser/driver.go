package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound means a required page element is absent
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout means a bounded wait expired before its condition held
	ErrTimeout = errors.New("timed out waiting")

	// ErrNoSession means the driver has not been started or was closed
	ErrNoSession = errors.New("no browser session")
)

// DriverError represents an error that occurred while driving the browser
type DriverError struct {
	// Op is the operation that failed
	Op string

	// Selector is the CSS selector involved, if any
	Selector string

	// Err is the underlying error
	Err error
}

// Error returns a string representation of the error
func (e *DriverError) Error() string {
	msg := "browser " + e.Op
	if e.Selector != "" {
		msg += fmt.Sprintf(" [%s]", e.Selector)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Cookie is a browser cookie
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Element is a handle on a DOM node owned by a Driver
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) (bool, error)
}

// Driver is the browser automation contract the invoice providers rely on.
// Selectors are CSS selectors. Implementations are not safe for concurrent
// multi-step flows; callers serialize use per provider.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// FindElement returns ErrElementNotFound when nothing matches
	FindElement(ctx context.Context, selector string) (Element, error)
	FindElements(ctx context.Context, selector string) ([]Element, error)
	FindWithin(ctx context.Context, parent Element, selector string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	// TypeText replaces the current value of an input
	TypeText(ctx context.Context, el Element, text string) error
	CurrentURL(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	ExecuteScript(ctx context.Context, script string, result any) error
	Close() error
}
