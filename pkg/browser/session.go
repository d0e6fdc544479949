// Package browser owns the headless Chrome process used by the scraping
// pipeline. A Session wraps exactly one browser process; page contexts are
// isolated tabs created from it and closed after use. Nothing outside this
// package may terminate or relaunch the process.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrNotInitialized is returned when a page context is requested before a
// successful Init.
var ErrNotInitialized = errors.New("browser session not initialized")

// LaunchError indicates the Chrome process could not be started. It is fatal
// to a scraping run and is never retried here.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError indicates a single page navigation failed (timeout,
// unreachable host, renderer crash). Callers recover by skipping the URL.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed for %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Options configures the browser process.
type Options struct {
	Headless  bool
	UserAgent string
}

// Session manages a single headless browser process. At most one browser
// exists per Session; there is no pooling.
type Session struct {
	opts Options

	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	initialized bool
}

// NewSession returns an unstarted session. Call Init before requesting page
// contexts.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Init launches the browser process. A failure to start surfaces as a
// *LaunchError and leaves the session unusable; it is not retried.
func (s *Session) Init(ctx context.Context) error {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if s.opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(s.opts.UserAgent))
	}

	s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(ctx, execOpts...)
	s.browserCtx, s.cancelBrowser = chromedp.NewContext(s.allocCtx)

	// Running an empty task forces the process to start now, so a broken
	// Chrome install fails the run before any driver executes.
	if err := chromedp.Run(s.browserCtx); err != nil {
		s.cancelBrowser()
		s.cancelAlloc()
		s.initialized = false
		return &LaunchError{Err: err}
	}

	s.initialized = true
	return nil
}

// Close terminates the browser process if it is running. Calling Close
// without a prior successful Init is a no-op, as is calling it twice.
func (s *Session) Close() {
	if !s.initialized {
		return
	}
	s.initialized = false
	s.cancelBrowser()
	s.cancelAlloc()
}

// Page is an isolated tab used for one navigation sequence. It must be
// closed after use on every exit path.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the chromedp context backing this tab.
func (p *Page) Context() context.Context { return p.ctx }

// Close releases the tab.
func (p *Page) Close() { p.cancel() }

// NewPage creates an isolated page context. It fails with ErrNotInitialized
// if the browser has not been launched.
func (s *Session) NewPage() (*Page, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	ctx, cancel := chromedp.NewContext(s.browserCtx)
	return &Page{ctx: ctx, cancel: cancel}, nil
}

// Fetch navigates a fresh page context to pageURL, waits for the document to
// become ready plus a short settle period for late XHR content, and returns
// the rendered HTML. The page context is released on every exit path.
func (s *Session) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	page, err := s.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(page.Context(), timeout)
	defer cancel()

	// Honor caller cancellation as well as the per-navigation bound.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-navCtx.Done():
		}
	}()

	var html string
	err = chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &NavigationError{URL: pageURL, Err: err}
	}
	return html, nil
}
