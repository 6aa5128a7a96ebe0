package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is the HTTP client shared by the adapters. It spaces page requests
// with a rate limiter, retries transient failures and decodes JSON with
// json.Number so numeric fields keep their source precision.
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
	header     http.Header
}

// NewClient creates a client that issues at most one request per interval.
func NewClient(name string, cfg Config, interval time.Duration) *Client {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		name: name,
		httpClient: &http.Client{
			Timeout: cfg.timeout(),
		},
		limiter: rate.NewLimiter(limit, 1),
		retry:   cfg.retry(),
		header:  make(http.Header),
	}
}

// SetHeader adds a header to every request.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// GetJSON fetches endpoint?params and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	fullURL := endpoint
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	return c.retry.Do(ctx, c.name, func() error {
		return c.get(ctx, fullURL, out)
	})
}

func (c *Client) get(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	return nil
}
