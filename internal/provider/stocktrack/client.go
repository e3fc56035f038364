// Package stocktrack provides the HTTP client for the stocktrack.ca Best Buy
// price-drop feed.
//
// The feed exposes a drops endpoint (count and list share one URL, switched
// by the count parameter) and a per-SKU history endpoint. History calls are
// throttled by a token bucket with one token per configured delay.
package stocktrack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/dropwatch/internal/cache"
)

const hostHeader = "stocktrack.ca"

// Config holds the client settings.
type Config struct {
	DropsURL       string
	HistoryURL     string
	ProductBaseURL string
	UserAgent      string
	Timeout        time.Duration
	RequestDelay   time.Duration // minimum spacing between history fetches
}

// Client is the HTTP client for the stocktrack endpoints.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	history    *cache.Cache
	logger     *slog.Logger
}

// NewClient creates a stocktrack client. historyCache may be nil.
func NewClient(cfg Config, historyCache *cache.Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		history:    historyCache,
		logger:     logger,
	}
}

// get performs a GET request and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, op, sku, base string, params url.Values) ([]byte, error) {
	u := base
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Op: op, SKU: sku, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Host = hostHeader
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, SKU: sku, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, SKU: sku, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Op:         op,
			SKU:        sku,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("returned %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}
	return body, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
