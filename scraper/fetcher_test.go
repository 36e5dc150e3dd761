package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"car_scrooper/config"
	"car_scrooper/httputil"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func loadPage(t *testing.T, url, name string) *Page {
	t.Helper()
	page, err := NewPage(url, bytes.NewReader(loadFixture(t, name)))
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return page
}

// fakeFetcher serves fixtures by URL and answers 404 for anything else.
type fakeFetcher struct {
	t       *testing.T
	pages   map[string]string
	fetched []string
}

func newFakeFetcher(t *testing.T, pages map[string]string) *fakeFetcher {
	return &fakeFetcher{t: t, pages: pages}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.fetched = append(f.fetched, url)
	name, ok := f.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, Status: http.StatusNotFound}
	}
	return NewPage(url, bytes.NewReader(loadFixture(f.t, name)))
}

func newTestHTTPFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	client, err := httputil.NewScrapingClient(&config.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "car_scrooper-test"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return NewHTTPFetcher(client)
}

func TestHTTPFetcher_FetchesAndFollowsRedirects(t *testing.T) {
	var userAgent string
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/shop/", http.StatusFound)
	})
	mux.HandleFunc("/shop/", func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body><div class="dealer-title"> Car  Center </div><a href="offer-1.html">x</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestHTTPFetcher(t).Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if page.URL != srv.URL+"/shop/" {
		t.Fatalf("expected final URL after redirect, got %s", page.URL)
	}
	if got := page.Text("div.dealer-title"); got != "Car Center" {
		t.Fatalf("expected normalized dealer title, got %q", got)
	}
	if got := page.Resolve("offer-1.html"); got != srv.URL+"/shop/offer-1.html" {
		t.Fatalf("expected link resolved against final URL, got %s", got)
	}
	if userAgent != "car_scrooper-test" {
		t.Fatalf("expected configured user agent, got %q", userAgent)
	}
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestHTTPFetcher(t).Fetch(context.Background(), srv.URL)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", fetchErr.Status)
	}
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestHTTPFetcher(t).Fetch(context.Background(), url)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Status != 0 || fetchErr.Err == nil {
		t.Fatalf("expected transport FetchError, got %v", err)
	}
}

func TestNewFetcher_Handlers(t *testing.T) {
	httpCfg := &config.HTTPConfig{Timeout: time.Second}

	site := config.DefaultSite()
	f, err := NewFetcher(site, httpCfg)
	if err != nil {
		t.Fatalf("http fetcher failed: %v", err)
	}
	if _, ok := f.(*HTTPFetcher); !ok {
		t.Fatalf("expected HTTPFetcher, got %T", f)
	}

	site.Handler = config.HandlerBrowser
	f, err = NewFetcher(site, httpCfg)
	if err != nil {
		t.Fatalf("browser fetcher failed: %v", err)
	}
	if _, ok := f.(*BrowserFetcher); !ok {
		t.Fatalf("expected BrowserFetcher, got %T", f)
	}

	site.Handler = "carrier-pigeon"
	if _, err := NewFetcher(site, httpCfg); err == nil {
		t.Fatalf("expected error for unknown handler")
	}
}

func TestPage_QueriesWithoutMatchesAreEmpty(t *testing.T) {
	page := loadPage(t, "https://dealer.otomoto.pl", "dealer_empty.html")

	if page.Find("a.offer-title__link").Length() != 0 {
		t.Fatalf("expected no matches")
	}
	if page.Text("span.missing") != "" {
		t.Fatalf("expected empty text for missing element")
	}
}
