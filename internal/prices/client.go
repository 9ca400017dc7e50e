package prices

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ClientConfig identifies the upstream price API.
type ClientConfig struct {
	SourceURL string
	APIHost   string
	APIKey    string
}

// Client calls the upstream price API once per Fetch.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient validates cfg and returns a Client. A missing API key is a
// ConfigError. hc may be nil to use DefaultHTTPClient.
func NewClient(cfg ClientConfig, hc *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.SourceURL == "" {
		return nil, &ConfigError{Msg: "source URL is empty"}
	}
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// SourceURL returns the endpoint the client fetches.
func (c *Client) SourceURL() string { return c.cfg.SourceURL }

// Fetch issues the GET request and decodes the response body.
func (c *Client) Fetch(ctx context.Context) (*Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.cfg.SourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamHTTPError{StatusCode: resp.StatusCode, URL: c.cfg.SourceURL}
	}

	v, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// FetchAndExtract fetches the upstream document and extracts a Snapshot from
// it. The decoded document is returned alongside for diagnostics.
func (c *Client) FetchAndExtract(ctx context.Context, now time.Time) (Snapshot, *Value, error) {
	raw, err := c.Fetch(ctx)
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap, err := Extract(raw, now)
	if err != nil {
		return Snapshot{}, raw, err
	}
	return snap, raw, nil
}
