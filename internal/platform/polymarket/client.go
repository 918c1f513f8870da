// Package polymarket is the read-only client for the Polymarket Gamma and
// CLOB APIs: market discovery on Gamma, order books and prices on the CLOB.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/polytrage/polytrage/internal/domain"
)

const (
	// DefaultGammaURL is the Gamma API root for market discovery.
	DefaultGammaURL = "https://gamma-api.polymarket.com"

	// DefaultClobURL is the CLOB API root for order books and prices.
	DefaultClobURL = "https://clob.polymarket.com"

	// DefaultConcurrency caps in-flight requests against the venue.
	DefaultConcurrency = 10

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 15 * time.Second

	// DefaultClientRefresh is how long a pooled HTTP client lives before it
	// is torn down; long-lived connections to the venue go stale.
	DefaultClientRefresh = time.Hour

	// DefaultMaxAttempts is how many times a request is tried before the
	// error is surfaced as an upstream failure.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the wait before the first retry; it doubles per
	// attempt.
	DefaultRetryBackoff = time.Second

	pageSize = 100
)

// Config configures the API client. Zero values select the defaults above.
type Config struct {
	GammaURL      string
	ClobURL       string
	Concurrency   int64
	MaxAttempts   int
	Timeout       time.Duration
	RetryBackoff  time.Duration
	ClientRefresh time.Duration // 0 keeps the default; negative disables refresh
	RateLimitRPS  float64       // optional requests-per-second throttle, 0 disables
}

func (c Config) withDefaults() Config {
	if c.GammaURL == "" {
		c.GammaURL = DefaultGammaURL
	}
	if c.ClobURL == "" {
		c.ClobURL = DefaultClobURL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.ClientRefresh == 0 {
		c.ClientRefresh = DefaultClientRefresh
	}
	return c
}

// Client is a read-only client for the Polymarket Gamma and CLOB APIs. It
// bounds concurrency with a permit pool, retries transient failures with
// exponential backoff, and periodically recreates its underlying HTTP client
// so connection pools never grow stale. Safe for concurrent use.
type Client struct {
	cfg     Config
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger

	mu         sync.Mutex // guards httpClient and createdAt
	httpClient *http.Client
	createdAt  time.Time
}

// New creates a Polymarket API client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.Concurrency),
		logger: logger.With(slog.String("component", "polymarket")),
	}
	if cfg.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.Concurrency))
	}
	return c
}

// Close releases pooled connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
}

// client returns the HTTP client, creating it lazily and recreating it once
// it outlives the refresh interval. The mutex keeps concurrent callers from
// racing a recreation.
func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.httpClient != nil && c.cfg.ClientRefresh > 0 && now.Sub(c.createdAt) >= c.cfg.ClientRefresh {
		c.logger.Info("refreshing HTTP client", slog.Duration("age", now.Sub(c.createdAt)))
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
			},
		}
		c.createdAt = now
	}

	return c.httpClient
}

// getJSON issues a GET with retries and decodes the response body into out.
// Transport failures and 5xx responses are retried with exponential backoff;
// 4xx responses fail immediately since repeating them cannot help. After the
// final attempt the error wraps domain.ErrUpstream.
func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	httpc := c.client()

	reqURL := rawURL
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		body, err := c.doGet(ctx, httpc, reqURL)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if attempt < c.cfg.MaxAttempts-1 {
			wait := c.cfg.RetryBackoff * (1 << attempt)
			c.logger.Warn("request failed, retrying",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", c.cfg.MaxAttempts),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrUpstream, rawURL, c.cfg.MaxAttempts, lastErr)
}

// doGet performs one GET attempt under a concurrency permit and, when
// configured, the request-rate throttle.
func (c *Client) doGet(ctx context.Context, httpc *http.Client, reqURL string) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode < 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrBadRequest, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// isRetryable reports whether an attempt may be repeated. Client errors are
// final; everything else (transport failures, timeouts, 5xx) is transient.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrBadRequest):
		return false
	}
	return true
}
