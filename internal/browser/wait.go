package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultPollInterval is how often bounded waits re-check their condition
const DefaultPollInterval = 250 * time.Millisecond

// WaitUntil re-evaluates cond every interval until it returns true, ctx is done,
// or timeout elapses. Errors from cond are treated as "not yet".
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if ok, _ := cond(ctx); ok {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrTimeout
		case <-ticker.C:
			if ok, _ := cond(ctx); ok {
				return nil
			}
		}
	}
}

// WaitForElement waits up to timeout for selector to match
func WaitForElement(ctx context.Context, d Driver, selector string, timeout time.Duration) (Element, error) {
	var found Element
	err := WaitUntil(ctx, timeout, DefaultPollInterval, func(ctx context.Context) (bool, error) {
		el, err := d.FindElement(ctx, selector)
		if err != nil {
			return false, err
		}
		found = el
		return true, nil
	})
	if err != nil {
		return nil, &DriverError{Op: "wait_for_element", Selector: selector, Err: err}
	}
	return found, nil
}

// FindFirst tries each selector in order and returns the first match
func FindFirst(ctx context.Context, d Driver, selectors ...string) (Element, string, error) {
	for _, sel := range selectors {
		el, err := d.FindElement(ctx, sel)
		if err == nil {
			return el, sel, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}
	return nil, "", &DriverError{Op: "find_first", Selector: strings.Join(selectors, ", "), Err: ErrElementNotFound}
}

// FindFirstVisible is FindFirst restricted to displayed elements
func FindFirstVisible(ctx context.Context, d Driver, selectors ...string) (Element, error) {
	for _, sel := range selectors {
		els, err := d.FindElements(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if visible, err := el.Visible(ctx); err == nil && visible {
				return el, nil
			}
		}
	}
	return nil, &DriverError{Op: "find_first_visible", Selector: strings.Join(selectors, ", "), Err: ErrElementNotFound}
}

// FindByText returns the first element matching selector whose text contains any keyword (case-insensitive)
func FindByText(ctx context.Context, d Driver, selector string, keywords ...string) (Element, error) {
	els, err := d.FindElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if ContainsAny(text, keywords...) {
			return el, nil
		}
	}
	return nil, &DriverError{Op: "find_by_text", Selector: selector, Err: ErrElementNotFound}
}

// ContainsAny reports whether s contains any of the keywords, ignoring case
func ContainsAny(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err comes from an expired bounded wait
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound reports whether err means a required element is missing
func IsNotFound(err error) bool {
	return errors.Is(err, ErrElementNotFound)
}
