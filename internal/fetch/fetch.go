// Package fetch provides the shared HTTP client used by the source pollers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Client wraps an http.Client with the request conventions the upstream
// sources expect: a browser-ish User-Agent, an optional Referer, a bounded
// timeout and a capped number of redirect hops.
type Client struct {
	http      *http.Client
	userAgent string
	maxHops   int
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxHops   int
}

// NewClient creates a new upstream HTTP client.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxHops == 0 {
		opts.MaxHops = 3
	}

	maxHops := opts.MaxHops
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return fmt.Errorf("stopped after %d redirects", maxHops)
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxHops:   opts.MaxHops,
	}
}

// Get issues a GET request and returns the response body. Non-2xx statuses
// are returned as errors so pollers treat them uniformly with transport
// failures.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return c.get(ctx, rawURL, headers, 0)
}

func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string, hop int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "*/*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}

	// Some upstreams answer 200 with a client-side redirect directive
	// embedded in the HTML instead of a proper Location header.
	if target, ok := metaRefreshTarget(resp, body); ok {
		if hop >= c.maxHops {
			return nil, fmt.Errorf("fetching %s: stopped after %d meta-refresh hops", rawURL, c.maxHops)
		}
		resolved, err := resolveRedirect(rawURL, target)
		if err != nil {
			return nil, err
		}
		return c.get(ctx, resolved, headers, hop+1)
	}

	return body, nil
}

// GetJSON fetches a URL and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, target interface{}) error {
	body, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

var metaRefreshRe = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']?refresh["']?[^>]+content=["'][^"';]*;\s*url=([^"'>\s]+)`)

// metaRefreshTarget extracts the target of an HTML meta-refresh directive,
// if the body carries one.
func metaRefreshTarget(resp *http.Response, body []byte) (string, bool) {
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "text/html") {
		return "", false
	}
	m := metaRefreshRe.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(string(m[1])), true
}

func resolveRedirect(base, target string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %s: %w", base, err)
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing redirect target %s: %w", target, err)
	}
	return baseURL.ResolveReference(targetURL).String(), nil
}
