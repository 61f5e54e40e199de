package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/lepinkainen/bookenrich/internal/config"
	apperrors "github.com/lepinkainen/bookenrich/internal/errors"
)

const defaultBrowserTimeout = 30 * time.Second

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
)

// BrowserFetcher renders pages in headless Chrome, for search pages that
// only fill in their results with JavaScript. One browser is started lazily
// and every Fetch opens a fresh tab.
type BrowserFetcher struct {
	opts      config.BrowserConfig
	userAgent string

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ Fetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher creates a fetcher; Chrome is not started until the first Fetch.
func NewBrowserFetcher(opts config.BrowserConfig, userAgent string) *BrowserFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBrowserTimeout
	}
	return &BrowserFetcher{opts: opts, userAgent: userAgent}
}

func buildExecAllocatorOptions(opts config.BrowserConfig, userAgent string) []chromedp.ExecAllocatorOption {
	options := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	}
	if userAgent != "" {
		options = append(options, chromedp.UserAgent(userAgent))
	}
	return options
}

func (b *BrowserFetcher) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	allocCtx, cancelAlloc := chromedpExecAllocator(context.Background(), buildExecAllocatorOptions(b.opts, b.userAgent)...)
	browserCtx, cancelBrowser := chromedpContext(allocCtx)

	// Running an empty task list starts the browser so later tabs share it.
	if err := chromedpRunner(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	slog.Debug("Started headless browser", "headless", b.opts.Headless)
	b.browserCtx = browserCtx
	b.cancelBrowser = cancelBrowser
	b.cancelAlloc = cancelAlloc
	return browserCtx, nil
}

// Fetch navigates a new tab to rawURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedpContext(browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelTimeout()

	// The tab hangs off the long-lived browser context; tie it to the caller too.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	shown := redactURL(rawURL)

	var html string
	if err := chromedpRunner(tabCtx, renderTasks(rawURL, header, &html)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rendering %s: %w", shown, err)
	}

	if strings.TrimSpace(html) == "" {
		return nil, &apperrors.BlockedError{URL: shown, Reason: "empty page"}
	}
	if blocked, kind := detectBlockBody([]byte(html)); blocked {
		return nil, &apperrors.BlockedError{URL: shown, Reason: string(kind)}
	}

	slog.Debug("Rendered", "url", shown, "bytes", len(html))
	return []byte(html), nil
}

func renderTasks(rawURL string, header http.Header, html *string) chromedp.Tasks {
	tasks := chromedp.Tasks{network.Enable()}
	if len(header) > 0 {
		headers := make(network.Headers, len(header))
		for k := range header {
			headers[k] = header.Get(k)
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	return append(tasks,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
		b.browserCtx = nil
		b.cancelBrowser = nil
		b.cancelAlloc = nil
	}
}
