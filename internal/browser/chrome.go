package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromeOptions configures a Chrome session
type ChromeOptions struct {
	Headless   bool
	ProfileDir string
	ExecPath   string
	// Timeout bounds every single driver call
	Timeout time.Duration
}

// ChromeDriver implements Driver on top of the Chrome DevTools protocol
type ChromeDriver struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         *logrus.Entry

	closeOnce sync.Once
}

type chromeElement struct {
	d    *ChromeDriver
	node *cdp.Node
}

// NewChromeDriver starts a Chrome instance
func NewChromeDriver(ctx context.Context, opts ChromeOptions) (*ChromeDriver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		browserCtx:  browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     timeout,
		log:         logrus.StandardLogger().WithField("type", "browser/chrome"),
	}

	// The first Run launches the browser process and ties it to browserCtx,
	// so it must not run on a derived context.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		d.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &DriverError{Op: "start", Err: err}
	}

	d.log.WithFields(logrus.Fields{
		"headless": opts.Headless,
		"profile":  opts.ProfileDir != "",
	}).Info("chrome session started")
	return d, nil
}

// run executes actions bounded by the driver timeout and the caller context
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if d.browserCtx.Err() != nil {
		return ErrNoSession
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, d.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return ErrTimeout
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return &DriverError{Op: "navigate", Err: err}
	}
	return nil
}

// FindElement returns the first node matching selector
func (d *ChromeDriver) FindElement(ctx context.Context, selector string) (Element, error) {
	els, err := d.FindElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, &DriverError{Op: "find_element", Selector: selector, Err: ErrElementNotFound}
	}
	return els[0], nil
}

// FindElements returns every node matching selector, possibly none
func (d *ChromeDriver) FindElements(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, &DriverError{Op: "find_elements", Selector: selector, Err: err}
	}
	return d.wrap(nodes), nil
}

// FindWithin searches the subtree of parent
func (d *ChromeDriver) FindWithin(ctx context.Context, parent Element, selector string) ([]Element, error) {
	p, ok := parent.(*chromeElement)
	if !ok {
		return nil, &DriverError{Op: "find_within", Selector: selector, Err: fmt.Errorf("foreign element %T", parent)}
	}

	var nodes []*cdp.Node
	err := d.run(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(p.node)))
	if err != nil {
		return nil, &DriverError{Op: "find_within", Selector: selector, Err: err}
	}
	return d.wrap(nodes), nil
}

// Click dispatches a mouse click on el
func (d *ChromeDriver) Click(ctx context.Context, el Element) error {
	ids, err := nodeIDs(el)
	if err != nil {
		return err
	}
	err = d.run(ctx,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.Click(ids, chromedp.ByNodeID),
	)
	if err != nil {
		return &DriverError{Op: "click", Err: err}
	}
	return nil
}

// TypeText clears el and types text into it
func (d *ChromeDriver) TypeText(ctx context.Context, el Element, text string) error {
	ids, err := nodeIDs(el)
	if err != nil {
		return err
	}
	err = d.run(ctx,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
	if err != nil {
		return &DriverError{Op: "type_text", Err: err}
	}
	return nil
}

// CurrentURL returns the location of the page
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := d.run(ctx, chromedp.Location(&location)); err != nil {
		return "", &DriverError{Op: "current_url", Err: err}
	}
	return location, nil
}

// PageText returns the visible text of the document body
func (d *ChromeDriver) PageText(ctx context.Context) (string, error) {
	var text string
	script := `document.body ? document.body.innerText : ""`
	if err := d.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", &DriverError{Op: "page_text", Err: err}
	}
	return text, nil
}

// Cookies returns the cookies of the browser session
func (d *ChromeDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
		}
		return nil
	}))
	if err != nil {
		return nil, &DriverError{Op: "cookies", Err: err}
	}
	return out, nil
}

// ExecuteScript evaluates script and decodes its result into result
func (d *ChromeDriver) ExecuteScript(ctx context.Context, script string, result any) error {
	if err := d.run(ctx, chromedp.Evaluate(script, result)); err != nil {
		return &DriverError{Op: "execute_script", Err: err}
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (d *ChromeDriver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = chromedp.Cancel(d.browserCtx)
		d.cancel()
		d.allocCancel()
		d.log.Info("chrome session closed")
	})
	return err
}

func (d *ChromeDriver) wrap(nodes []*cdp.Node) []Element {
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{d: d, node: n})
	}
	return els
}

func nodeIDs(el Element) ([]cdp.NodeID, error) {
	ce, ok := el.(*chromeElement)
	if !ok {
		return nil, &DriverError{Op: "resolve_element", Err: fmt.Errorf("foreign element %T", el)}
	}
	return []cdp.NodeID{ce.node.NodeID}, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	ids := []cdp.NodeID{e.node.NodeID}
	if err := e.d.run(ctx, chromedp.JavascriptAttribute(ids, "innerText", &text, chromedp.ByNodeID)); err != nil {
		return "", &DriverError{Op: "element_text", Err: err}
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	ids := []cdp.NodeID{e.node.NodeID}
	if err := e.d.run(ctx, chromedp.AttributeValue(ids, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", &DriverError{Op: "element_attribute", Err: err}
	}
	return value, nil
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var width float64
	ids := []cdp.NodeID{e.node.NodeID}
	if err := e.d.run(ctx, chromedp.JavascriptAttribute(ids, "offsetWidth", &width, chromedp.ByNodeID)); err != nil {
		return false, &DriverError{Op: "element_visible", Err: err}
	}
	return width > 0, nil
}
