package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSite(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSite_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSite(t, dir, "demo.yaml", `
id: demo
base_url: "https://example.com/cars?dist=50"
page_level_price: true
selectors:
  dealer_title: "h1.shop-name"
`)

	site, err := LoadSite(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if site.Handler != HandlerHTTP {
		t.Fatalf("expected default handler %q, got %q", HandlerHTTP, site.Handler)
	}
	if site.Name != "demo" {
		t.Fatalf("expected name to default to id, got %q", site.Name)
	}
	if site.PriceSuffix != " PLN" {
		t.Fatalf("expected default price suffix, got %q", site.PriceSuffix)
	}
	if !site.PageLevelPrice {
		t.Fatalf("expected page_level_price to be read")
	}
	if site.Selectors.DealerTitle != "h1.shop-name" {
		t.Fatalf("expected overridden dealer title selector, got %q", site.Selectors.DealerTitle)
	}
	if site.Selectors.OfferLink != "a.offer-title__link" {
		t.Fatalf("expected default offer link selector, got %q", site.Selectors.OfferLink)
	}
}

func TestLoadSite_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"missing_id.yaml":   "base_url: https://example.com\n",
		"missing_base.yaml": "id: x\n",
		"bad_handler.yaml":  "id: x\nbase_url: https://example.com\nhandler: carrier-pigeon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeSite(t, dir, name, body)
			if _, err := LoadSite(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoad_FallsBackToDefaultSite(t *testing.T) {
	t.Setenv("SITES_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("SCRAPE_INTERVAL", "90m")
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Sites) != 1 {
		t.Fatalf("expected 1 default site, got %d", len(cfg.Sites))
	}
	site, ok := cfg.Sites["otomoto"]
	if !ok {
		t.Fatalf("expected otomoto site, got %v", cfg.SiteIDs())
	}
	if site.BaseURL != defaultBaseURL {
		t.Fatalf("unexpected base url %s", site.BaseURL)
	}
	if cfg.Scheduler.Interval != 90*time.Minute {
		t.Fatalf("expected 90m interval, got %s", cfg.Scheduler.Interval)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.HTTP.Timeout)
	}
}

func TestLoad_ReadsSitesDir(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "b.yaml", "id: bravo\nbase_url: https://b.example.com\n")
	writeSite(t, dir, "a.yml", "id: alpha\nbase_url: https://a.example.com\n")
	writeSite(t, dir, "notes.txt", "ignored")
	t.Setenv("SITES_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ids := cfg.SiteIDs()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "bravo" {
		t.Fatalf("unexpected site ids %v", ids)
	}
}
