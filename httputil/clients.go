package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"car_scrooper/config"
)

// NewScrapingClient returns the resty client used for page fetches. Requests
// go through the configured proxy, if any, over HTTP/1.1.
func NewScrapingClient(cfg *config.HTTPConfig) (*resty.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ForceAttemptHTTP2 = false
	transport.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := resty.New()
	client.SetTransport(transport)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "pl-PL,pl;q=0.9,en;q=0.8")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return client, nil
}

// ProxyHost is the proxy host for log lines, without credentials.
func ProxyHost(cfg *config.HTTPConfig) string {
	if cfg.ProxyURL == "" {
		return "direct"
	}
	u, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return "invalid"
	}
	return u.Host
}
