// Package notify posts plain-text messages to an ntfy-style pub/sub
// endpoint.
//
// Delivery is fire-and-forget: the caller logs failures and moves on, so no
// retries happen here. Bodies over the byte budget are truncated with a
// marker before sending.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// TruncationMarker is appended to bodies cut at the byte budget.
const TruncationMarker = "...\n[message truncated]"

// Message is one notification.
type Message struct {
	Body     string
	Title    string
	Priority string
	Tags     string
}

// Notifier publishes messages to a single topic URL.
type Notifier struct {
	url      string
	client   *http.Client
	maxBytes int
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) { n.client = hc }
}

// WithMaxBytes sets the message byte budget. Default: 4000.
func WithMaxBytes(max int) Option {
	return func(n *Notifier) { n.maxBytes = max }
}

// New creates a Notifier targeting the given topic URL.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		maxBytes: 4000,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Publish POSTs the message body with its display metadata headers. Non-2xx
// responses are errors.
func (n *Notifier) Publish(ctx context.Context, msg Message) error {
	body := Truncate(msg.Body, n.maxBytes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: new request: %w", err)
	}
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if msg.Priority != "" {
		req.Header.Set("Priority", msg.Priority)
	}
	if msg.Tags != "" {
		req.Header.Set("Tags", msg.Tags)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: http %d", resp.StatusCode)
	}
	return nil
}

// Truncate caps s at max bytes, replacing the tail with TruncationMarker.
// The cut never splits a UTF-8 rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}
