// Package feed implements the lifelog API client.
//
// The feed is a JSON HTTP API returning the day's lifelog entries. Requests
// are scoped to a calendar date and optionally lower-bounded by a start
// timestamp so settled entries are not re-fetched. The API returns entries
// newest-first; Entries reverses them so callers always process
// oldest-to-newest.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Entry is one lifelog entry as delivered by the feed. Entries are immutable
// snapshots; the same ID may recur across fetches with different content and
// end time while the entry is still being written on the source side.
type Entry struct {
	ID      string `json:"id"`
	Content string `json:"markdown"`
	EndTime string `json:"endTime"`
	Title   string `json:"title"`
}

// Config configures the feed client.
type Config struct {
	// URL is the lifelog API endpoint.
	URL string
	// APIKey is sent as X-API-Key. ${ENV_VAR} patterns are expanded.
	APIKey string
	// Timezone is passed to the API so "today" matches the caller's day.
	Timezone string
	// Limit is the page size. Default: 1000.
	Limit int
	// Timeout is the HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body size. Default: 10MB.
	MaxBytes int64
}

func (c *Config) defaults() {
	if c.Limit <= 0 {
		c.Limit = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
}

// Client fetches lifelog entries over HTTP.
type Client struct {
	client *http.Client
	config Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a feed Client.
func New(cfg Config, opts ...Option) *Client {
	cfg.defaults()
	c := &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope matches the API response shape.
type envelope struct {
	Data struct {
		Lifelogs []Entry `json:"lifelogs"`
	} `json:"data"`
}

// Entries fetches the entries for date, optionally bounded below by start.
// Either may be empty. The result is ordered oldest-to-newest. Any transport
// error or non-2xx status is a fetch failure.
func (c *Client) Entries(ctx context.Context, date, start string) ([]Entry, error) {
	q := url.Values{}
	q.Set("timezone", c.config.Timezone)
	q.Set("includeMarkdown", "true")
	q.Set("includeHeadings", "true")
	q.Set("direction", "desc")
	q.Set("limit", strconv.Itoa(c.config.Limit))
	if date != "" {
		q.Set("date", date)
	}
	if start != "" {
		q.Set("start", start)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed: new request: %w", err)
	}
	req.Header.Set("X-API-Key", expandEnv(c.config.APIKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("feed: read body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("feed: json decode: %w", err)
	}

	// API order is newest-first; reverse to oldest-first.
	entries := env.Data.Lifelogs
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// expandEnv replaces ${ENV_VAR} patterns with their values.
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
