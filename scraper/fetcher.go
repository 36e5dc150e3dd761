package scraper

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"car_scrooper/config"
	"car_scrooper/httputil"
)

// Fetcher loads one page. Any error it returns is fatal for the run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// NewFetcher picks the fetcher named by the site's handler.
func NewFetcher(siteCfg *config.SiteConfig, httpCfg *config.HTTPConfig) (Fetcher, error) {
	switch siteCfg.Handler {
	case config.HandlerBrowser:
		return NewBrowserFetcher(httpCfg), nil
	case config.HandlerHTTP, "":
		client, err := httputil.NewScrapingClient(httpCfg)
		if err != nil {
			return nil, err
		}
		return NewHTTPFetcher(client), nil
	default:
		return nil, fmt.Errorf("unknown handler %q for site %s", siteCfg.Handler, siteCfg.ID)
	}
}

type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(client *resty.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if resp.IsError() {
		return nil, &FetchError{URL: pageURL, Status: resp.StatusCode()}
	}

	// Relative links resolve against where redirects landed.
	finalURL := pageURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return NewPage(finalURL, bytes.NewReader(resp.Body()))
}

// countingFetcher tallies fetches for run statistics.
type countingFetcher struct {
	inner Fetcher
	count int
}

func (c *countingFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	c.count++
	return c.inner.Fetch(ctx, pageURL)
}
