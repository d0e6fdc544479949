// Package fetch provides the static-HTML client used for discovery on sites
// that serve procedure links without JavaScript (SUNAT, RENIEC portals).
// Rendered detail pages still go through the browser session.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client wraps a resty client tuned for Peruvian government portals.
type Client struct {
	http *resty.Client
}

// NewClient builds a static-HTML client. An empty userAgent falls back to a
// desktop Chrome string; several gob.pe portals reject unknown agents.
func NewClient(userAgent string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := resty.New()
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "es-PE,es;q=0.9,en;q=0.8")
	client.SetTimeout(timeout)
	return &Client{http: client}
}

// GetHTML fetches a page and returns its body. Non-2xx statuses are errors;
// callers treat them the same as network failures and skip the URL.
func (c *Client) GetHTML(ctx context.Context, pageURL string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("fetching %s: status %d", pageURL, res.StatusCode())
	}
	return string(res.Body()), nil
}
