// Package stooq downloads daily price history in CSV form from stooq.com.
package stooq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultBaseURL is the Stooq CSV download endpoint.
	DefaultBaseURL = "https://stooq.com/q/d/l/"

	// DefaultSymbol is the S&P 500 ETF listed in the US.
	DefaultSymbol = "spy.us"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 20 * time.Second

	maxBodyBytes = 16 << 20
	previewLen   = 200
)

// NotCSVError is returned when Stooq serves an HTML page instead of CSV,
// which it does for unknown symbols and when a daily quota is exhausted.
type NotCSVError struct {
	Status  int
	Preview string
}

func (e *NotCSVError) Error() string {
	return fmt.Sprintf("stooq: non-CSV response (status %d)", e.Status)
}

// DailyFeed is the raw CSV text of a daily history download.
type DailyFeed struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
	Body   string `json:"-"`
}

// Client is a Stooq CSV client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Stooq client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "stooq_client"))
	return c
}

// DailyURL returns the download URL for a symbol's daily history.
func (c *Client) DailyURL(symbol string) string {
	params := url.Values{}
	params.Set("s", symbol)
	params.Set("i", "d")
	return c.baseURL + "?" + params.Encode()
}

// Daily downloads the full daily history of symbol.
func (c *Client) Daily(ctx context.Context, symbol string) (*DailyFeed, error) {
	target := c.DailyURL(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.DebugContext(ctx, "Stooq daily download",
		slog.String("symbol", symbol),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	feed := &DailyFeed{Status: resp.StatusCode, URL: target, Body: string(body)}
	if LooksLikeHTML(body) {
		p := []rune(string(body))
		if len(p) > previewLen {
			p = p[:previewLen]
		}
		return feed, &NotCSVError{Status: resp.StatusCode, Preview: string(p)}
	}
	return feed, nil
}

// LooksLikeHTML reports whether body starts with markup rather than text.
func LooksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	z := html.NewTokenizer(bytes.NewReader(trimmed))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken, html.DoctypeToken, html.CommentToken, html.EndTagToken:
		return true
	default:
		return false
	}
}
