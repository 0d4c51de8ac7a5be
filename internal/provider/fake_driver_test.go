package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/browser"
)

// fakeElement is a node of a scripted page
type fakeElement struct {
	text     string
	attrs    map[string]string
	hidden   bool
	children map[string][]*fakeElement
	onClick  func(d *fakeDriver)

	value string
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, error) {
	return e.attrs[name], nil
}

func (e *fakeElement) Visible(ctx context.Context) (bool, error) {
	return !e.hidden, nil
}

// fakePage maps selectors to the elements they match
type fakePage struct {
	text     string
	elements map[string][]*fakeElement
}

// fakeDriver serves scripted pages keyed by URL
type fakeDriver struct {
	mu        sync.Mutex
	url       string
	page      *fakePage
	pages     map[string]*fakePage
	redirects map[string]string
	cookies   []browser.Cookie

	visited []string
	scripts int
	closed  bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		url:       "about:blank",
		page:      &fakePage{},
		pages:     make(map[string]*fakePage),
		redirects: make(map[string]string),
	}
}

func (d *fakeDriver) factory() DriverFactory {
	return func(ctx context.Context) (browser.Driver, error) {
		return d, nil
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visited = append(d.visited, url)
	if to, ok := d.redirects[url]; ok {
		url = to
	}
	d.url = url
	if p, ok := d.pages[url]; ok {
		d.page = p
	} else {
		d.page = &fakePage{}
	}
	return nil
}

func (d *fakeDriver) FindElement(ctx context.Context, selector string) (browser.Element, error) {
	els, _ := d.FindElements(ctx, selector)
	if len(els) == 0 {
		return nil, &browser.DriverError{Op: "find_element", Selector: selector, Err: browser.ErrElementNotFound}
	}
	return els[0], nil
}

func (d *fakeDriver) FindElements(ctx context.Context, selector string) ([]browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return wrap(d.page.elements[selector]), nil
}

func (d *fakeDriver) FindWithin(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	return wrap(parent.(*fakeElement).children[selector]), nil
}

func wrap(els []*fakeElement) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}

func (d *fakeDriver) Click(ctx context.Context, el browser.Element) error {
	if fn := el.(*fakeElement).onClick; fn != nil {
		fn(d)
	}
	return nil
}

func (d *fakeDriver) TypeText(ctx context.Context, el browser.Element, text string) error {
	el.(*fakeElement).value = text
	return nil
}

func (d *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *fakeDriver) PageText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page.text, nil
}

func (d *fakeDriver) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return d.cookies, nil
}

func (d *fakeDriver) ExecuteScript(ctx context.Context, script string, result any) error {
	d.mu.Lock()
	d.scripts++
	d.mu.Unlock()
	if s, ok := result.(*string); ok && strings.Contains(script, "userAgent") {
		*s = "fake-agent/1.0"
	}
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// goTo moves the driver to url, as a click on a link would
func (d *fakeDriver) goTo(url string) {
	_ = d.Navigate(context.Background(), url)
}

// show adds elements to the current page
func (d *fakeDriver) show(selector string, els ...*fakeElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page.elements == nil {
		d.page.elements = make(map[string][]*fakeElement)
	}
	d.page.elements[selector] = append(d.page.elements[selector], els...)
}

func (d *fakeDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func link(text, href string) *fakeElement {
	return &fakeElement{text: text, attrs: map[string]string{"href": href}}
}
