// Package twelvedata is a minimal client for the Twelve Data time_series API.
package twelvedata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Twelve Data REST endpoint.
	DefaultBaseURL = "https://api.twelvedata.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 20 * time.Second

	maxBodyBytes = 4 << 20
	previewLen   = 200
	redacted     = "REDACTED"
)

// ErrMissingAPIKey is returned when the client has no API key configured.
var ErrMissingAPIKey = errors.New("twelvedata: missing API key")

// Value is one bar as returned by the API. Numbers arrive as strings.
type Value struct {
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
}

// TimeSeries is a decoded time_series response plus request diagnostics.
type TimeSeries struct {
	Status    int     `json:"status"`
	URL       string  `json:"url"`
	APIStatus string  `json:"api_status,omitempty"`
	Message   string  `json:"message,omitempty"`
	Values    []Value `json:"-"`
	Preview   string  `json:"preview,omitempty"`
}

// Client is a Twelve Data client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API URL.
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

// NewClient creates a new Twelve Data client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "twelvedata_client"))
	return c
}

// HasAPIKey reports whether an API key is configured.
func (c *Client) HasAPIKey() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

func (c *Client) timeSeriesURL(symbol, interval string, size int, key string) string {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("outputsize", strconv.Itoa(size))
	params.Set("apikey", key)
	return strings.TrimRight(c.baseURL, "/") + "/time_series?" + params.Encode()
}

// TimeSeries fetches the most recent size bars of symbol at interval.
// The URL reported back has the API key redacted.
func (c *Client) TimeSeries(ctx context.Context, symbol, interval string, size int) (*TimeSeries, error) {
	if !c.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}

	result := &TimeSeries{URL: c.timeSeriesURL(symbol, interval, size, redacted)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.timeSeriesURL(symbol, interval, size, c.apiKey), nil)
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

	result.Status = resp.StatusCode
	r := []rune(string(body))
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	result.Preview = string(r)

	c.logger.DebugContext(ctx, "Twelve Data time_series",
		slog.String("symbol", symbol),
		slog.String("interval", interval),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if !gjson.ValidBytes(body) {
		return result, nil
	}

	doc := gjson.ParseBytes(body)
	result.APIStatus = doc.Get("status").String()
	result.Message = doc.Get("message").String()

	values := doc.Get("values")
	if values.IsArray() {
		items := values.Array()
		result.Values = make([]Value, 0, len(items))
		for _, item := range items {
			result.Values = append(result.Values, Value{
				Datetime: item.Get("datetime").String(),
				Close:    item.Get("close").String(),
			})
		}
	}
	return result, nil
}
