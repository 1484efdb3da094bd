package gdelt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"quotepulse/pkg/contracts/domain"
)

const (
	// DefaultBaseURL is the GDELT DOC 2.0 endpoint.
	DefaultBaseURL = "https://api.gdeltproject.org/api/v2/doc/doc"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 20 * time.Second

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 4 << 20

	previewLen = 200
)

// Sort orders supported by the article list mode.
const (
	SortDateAsc  = "dateasc"
	SortDateDesc = "datedesc"
)

// Client is a GDELT DOC API client.
type Client struct {
	baseURL    string
	proxyURL   string
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

// WithProxy routes requests through a caching proxy.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
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

// NewClient creates a new GDELT client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "gdelt_client"))
	return c
}

// SearchParams selects articles from the article list mode.
type SearchParams struct {
	Query      string
	Sort       string
	MaxRecords int
	// ProxyCache asks the proxy to cache the upstream response briefly.
	ProxyCache bool
}

// SearchResult is a decoded article list plus request diagnostics.
type SearchResult struct {
	Status   int              `json:"status"`
	URL      string           `json:"url"`
	Proxied  string           `json:"proxied,omitempty"`
	Articles []domain.Article `json:"-"`
	Preview  string           `json:"preview,omitempty"`
}

// SearchURL builds the upstream article list URL.
func (c *Client) SearchURL(p SearchParams) string {
	params := url.Values{}
	params.Set("query", p.Query)
	params.Set("mode", "artlist")
	params.Set("format", "json")
	if p.Sort != "" {
		params.Set("sort", p.Sort)
	}
	if p.MaxRecords > 0 {
		params.Set("maxrecords", strconv.Itoa(p.MaxRecords))
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) requestURL(upstream string, cache bool) string {
	if c.proxyURL == "" {
		return upstream
	}
	params := url.Values{}
	params.Set("url", upstream)
	if cache {
		params.Set("cache", "1")
	}
	return c.proxyURL + "/?" + params.Encode()
}

// Search runs an article list query. Articles keep the order GDELT returned.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	upstream := c.SearchURL(p)
	target := c.requestURL(upstream, p.ProxyCache)

	result := &SearchResult{URL: upstream}
	if target != upstream {
		result.Proxied = target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.DebugContext(ctx, "GDELT search request",
		slog.String("query", p.Query),
		slog.String("sort", p.Sort),
		slog.Int("max_records", p.MaxRecords),
		slog.Bool("proxied", result.Proxied != ""))

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
	result.Preview = preview(body)

	c.logger.DebugContext(ctx, "GDELT search response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusTooManyRequests {
		return result, &RateLimitError{
			Status:     resp.StatusCode,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Preview:    result.Preview,
		}
	}

	if !gjson.ValidBytes(body) {
		return result, &InvalidResponseError{
			Status:  resp.StatusCode,
			URL:     target,
			Preview: result.Preview,
		}
	}

	result.Articles = decodeArticles(body)
	return result, nil
}

func decodeArticles(body []byte) []domain.Article {
	list := gjson.GetBytes(body, "articles")
	if !list.IsArray() {
		return []domain.Article{}
	}

	items := list.Array()
	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, domain.Article{
			URL:           item.Get("url").String(),
			Title:         item.Get("title").String(),
			SeenDate:      item.Get("seendate").String(),
			SeenDateCamel: item.Get("seenDate").String(),
			DateTime:      item.Get("datetime").String(),
			Date:          item.Get("date").String(),
			Domain:        item.Get("domain").String(),
			Language:      item.Get("language").String(),
			SourceCountry: item.Get("sourcecountry").String(),
		})
	}
	return articles
}

func preview(body []byte) string {
	r := []rune(string(body))
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 10 * time.Second
}
