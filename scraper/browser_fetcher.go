package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"car_scrooper/config"
	"car_scrooper/logging"
)

// BrowserFetcher renders pages in headless Chromium for sites that need
// JavaScript before the offer markup exists. The browser starts lazily on
// the first fetch and is reused until Close.
type BrowserFetcher struct {
	cfg *config.HTTPConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	page        playwright.Page
	initialized bool
}

func NewBrowserFetcher(cfg *config.HTTPConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if f.cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: f.cfg.ProxyURL}
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(f.cfg.UserAgent),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	f.pw = pw
	f.browser = browser
	f.page = page
	f.initialized = true
	logging.Infof("Browser fetcher started")
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	resp, err := f.page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.cfg.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if resp != nil && !resp.Ok() {
		return nil, &FetchError{URL: pageURL, Status: resp.Status()}
	}

	html, err := f.page.Content()
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	return NewPage(f.page.URL(), strings.NewReader(html))
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	if f.page != nil {
		f.page.Close()
		f.page = nil
	}
	if f.browser != nil {
		f.browser.Close()
	}
	f.initialized = false
	return f.pw.Stop()
}
