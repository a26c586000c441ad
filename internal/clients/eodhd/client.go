// Package eodhd provides a client for the EODHD API covering exchange
// rates and instrument name lookups.
package eodhd

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

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the RateClient and LookupClient interfaces
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// forexBar is one end-of-day bar from the forex endpoint.
type forexBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// GetExchangeRate returns the most recent end-of-day rate converting one
// unit of from-currency into to-currency. Matching currencies return 1.0
// without a network call. The forex ticker format is "FROMTO.FOREX".
func (c *Client) GetExchangeRate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return 1.0, nil
	}

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "d")
	params.Set("limit", "1")

	path := fmt.Sprintf("/eod/%s%s.FOREX", from, to)

	var bars []forexBar
	if err := c.get(ctx, path, params, &bars); err != nil {
		return 0, err
	}
	if len(bars) == 0 || bars[0].Close <= 0 {
		return 0, fmt.Errorf("no rate available for %s/%s", from, to)
	}

	c.logger.Debug().
		Str("pair", from+"/"+to).
		Float64("rate", bars[0].Close).
		Str("date", bars[0].Date).
		Msg("Fetched exchange rate")

	return bars[0].Close, nil
}

// searchResult is one item in the search API response.
type searchResult struct {
	Code     string `json:"Code"`
	Exchange string `json:"Exchange"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	Currency string `json:"Currency"`
	ISIN     string `json:"ISIN"`
}

// LookupNameFromTicker resolves an instrument name by ticker. A search
// with no hits returns an empty name and no error.
func (c *Client) LookupNameFromTicker(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", nil
	}

	results, err := c.search(ctx, ticker)
	if err != nil {
		return "", err
	}

	// Prefer an exact code match over the API's own ranking.
	for _, r := range results {
		if strings.EqualFold(r.Code, ticker) {
			return r.Name, nil
		}
	}
	if len(results) > 0 {
		return results[0].Name, nil
	}
	return "", nil
}

// LookupNameFromISIN resolves an instrument name by ISIN.
func (c *Client) LookupNameFromISIN(ctx context.Context, isin string) (string, error) {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if isin == "" {
		return "", nil
	}

	results, err := c.search(ctx, isin)
	if err != nil {
		return "", err
	}

	for _, r := range results {
		if strings.EqualFold(r.ISIN, isin) {
			return r.Name, nil
		}
	}
	if len(results) > 0 {
		return results[0].Name, nil
	}
	return "", nil
}

func (c *Client) search(ctx context.Context, term string) ([]searchResult, error) {
	path := fmt.Sprintf("/search/%s", url.PathEscape(term))

	var results []searchResult
	if err := c.get(ctx, path, nil, &results); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("term", term).Int("results", len(results)).Msg("EODHD search")

	return results, nil
}

// Ensure Client implements the client interfaces
var _ interfaces.RateClient = (*Client)(nil)
var _ interfaces.LookupClient = (*Client)(nil)
