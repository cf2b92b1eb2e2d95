package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/gsexport/internal/session"
)

// DefaultTimeout bounds every navigation and export call. Gradescope pages
// can take minutes to settle, so the default is deliberately long.
const DefaultTimeout = 300 * time.Second

// ErrAuthExpired means the platform rejected the injected session identity.
// The caller is expected to log in again and retry exactly once.
var ErrAuthExpired = errors.New("session identity rejected by the platform")

// NavigateError reports a failed page load: a timeout, a launch problem, or
// a terminal HTTP status of 400 or above.
type NavigateError struct {
	URL    string
	Status int64
	Err    error
}

func (e *NavigateError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("navigate %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigateError) Unwrap() error { return e.Err }

// ExportError reports a failed print-to-PDF call.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string { return fmt.Sprintf("print current page: %v", e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

// Config controls the single browser automation context.
type Config struct {
	// ExecPath names the Chrome/Chromium executable. Empty falls back to
	// chromedp's own lookup.
	ExecPath string
	// Timeout bounds each navigation/export; zero means DefaultTimeout.
	Timeout time.Duration
	// RootURL is navigated after identity injection to confirm the session
	// is accepted.
	RootURL string
	// LoggedIn inspects the rendered root page for authenticated markers.
	LoggedIn func(html string) bool
}

// Bridge owns the one browser context of the process. Only the bridge
// touches browser state; everything else goes through its methods.
type Bridge struct {
	cfg         Config
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func New(cfg Config) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Bridge{cfg: cfg}
}

// Start launches the headless browser. Launch failures (bad or missing
// executable) surface here, before any authenticated work begins.
func (b *Bridge) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run with no actions forces the browser process to start now.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	b.ctx = browserCtx
	b.cancel = cancel
	b.allocCancel = allocCancel
	return nil
}

// Close tears down the browser context. Safe to call after a failed Start.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// ApplyIdentity injects every session token into the browser's cookie store,
// then loads the platform root to confirm the identity is accepted. A root
// page without authenticated markers yields ErrAuthExpired.
func (b *Bridge) ApplyIdentity(id session.Identity) error {
	params := cookieParams(id, time.Now())

	ctx, cancel := b.op()
	defer cancel()

	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, p := range params {
				set := network.SetCookie(p.Name, p.Value).
					WithDomain(p.Domain).
					WithPath(p.Path).
					WithSecure(p.Secure).
					WithHTTPOnly(p.HTTPOnly)
				if p.Expires != nil {
					set = set.WithExpires(p.Expires)
				}
				if err := set.Do(ctx); err != nil {
					return fmt.Errorf("set cookie %s: %w", p.Name, err)
				}
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("inject session cookies: %w", err)
	}

	if err := b.Navigate(b.cfg.RootURL); err != nil {
		return err
	}
	html, err := b.HTML()
	if err != nil {
		return err
	}
	if b.cfg.LoggedIn != nil && !b.cfg.LoggedIn(html) {
		return ErrAuthExpired
	}
	return nil
}

// Navigate loads a URL on the browser's single tab and waits for the body to
// be ready, bounded by the configured timeout.
func (b *Bridge) Navigate(urlstr string) error {
	ctx, cancel := b.op()
	defer cancel()

	resp, err := chromedp.RunResponse(ctx,
		chromedp.Navigate(urlstr),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return &NavigateError{URL: urlstr, Err: err}
	}
	if resp != nil && resp.Status >= 400 {
		return &NavigateError{URL: urlstr, Status: resp.Status}
	}
	return nil
}

// HTML returns the full markup of the currently loaded page.
func (b *Bridge) HTML() (string, error) {
	ctx, cancel := b.op()
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// Evaluate runs a script against the currently loaded page, discarding its
// result.
func (b *Bridge) Evaluate(script string) error {
	ctx, cancel := b.op()
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// PrintToPDF invokes the browser's native print capability on the currently
// loaded page and returns the document bytes.
func (b *Bridge) PrintToPDF() ([]byte, error) {
	ctx, cancel := b.op()
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		if err != nil {
			return err
		}
		pdf = buf
		return nil
	}))
	if err != nil {
		return nil, &ExportError{Err: err}
	}
	if len(pdf) == 0 {
		return nil, &ExportError{Err: errors.New("browser produced an empty document")}
	}
	return pdf, nil
}

// op scopes one blocking browser operation to the page-load timeout.
func (b *Bridge) op() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.cfg.Timeout)
}
