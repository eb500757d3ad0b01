// Package client provides the resilient HTTP fetch used by every job, with
// bounded retries for transient failures, optional request pacing and an
// optional shared response cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/devdata-fetch/pkg/cache"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devdata_fetch_requests_total",
		Help: "Total fetch requests by host and status",
	}, []string{"host", "status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devdata_fetch_duration_seconds",
		Help:    "Fetch request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devdata_fetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// DefaultMaxCacheEntryBytes bounds the bodies stored in the response cache.
const DefaultMaxCacheEntryBytes = 4 << 20

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is true when the body came from the response cache.
	FromCache bool
}

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single attempt, including reading the body.
	Timeout time.Duration

	Retry RetryConfig

	// Verbose logs every attempt at info level instead of debug.
	Verbose bool

	// Cache is the optional shared response cache.
	Cache *cache.Manager

	// MaxCacheEntryBytes skips caching larger bodies. Zero uses the default.
	MaxCacheEntryBytes int

	// Pacer optionally spaces out successive requests.
	Pacer *ratelimit.Pacer

	// HTTPClient overrides the default HTTP client (for testing).
	HTTPClient *http.Client

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:          userAgent,
		Timeout:            60 * time.Second,
		Retry:              DefaultRetryConfig(),
		MaxCacheEntryBytes: DefaultMaxCacheEntryBytes,
	}
}

// Client fetches resources from the public APIs.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}
	if cfg.MaxCacheEntryBytes <= 0 {
		cfg.MaxCacheEntryBytes = DefaultMaxCacheEntryBytes
	}

	logger := logging.NewLogger("fetch")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		httpClient = &hc
	}
	if httpClient.CheckRedirect == nil {
		httpClient.CheckRedirect = checkRedirect
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Fetch performs a GET request. Transient failures are retried; non-2xx
// responses and all other failures are returned at once. Any returned
// error is a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassOther)).Inc()
		msg := "unsupported url"
		if err != nil {
			msg = err.Error()
		}
		return nil, &FetchError{URL: rawURL, ErrorClass: ErrorClassOther, Message: msg, Err: ErrInvalidURL}
	}
	host := u.Host

	cacheKey := cache.KeyForURL(rawURL)
	if c.config.Cache != nil {
		entry, err := c.config.Cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("url", rawURL).Msg("Response cache hit")
			fetchRequestsTotal.WithLabelValues(host, "cached").Inc()
			return &Response{
				URL:        rawURL,
				StatusCode: entry.StatusCode,
				Header:     http.Header{"Content-Type": []string{entry.ContentType}},
				Body:       entry.Data,
				FromCache:  true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache get error")
		}
	}

	var resp *Response
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) error {
		r, err := c.attempt(ctx, rawURL, host, attempt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(Class(err))).Inc()
		return nil, err
	}

	if c.config.Cache != nil && len(resp.Body) <= c.config.MaxCacheEntryBytes {
		entry := cache.NewEntry(resp.StatusCode, resp.Header.Get("Content-Type"), resp.Body, c.config.Cache.TTL())
		if err := c.config.Cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// attempt performs one request and reads the whole body.
func (c *Client) attempt(ctx context.Context, rawURL, host string, attempt int) (*Response, error) {
	if err := c.config.Pacer.Wait(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, ErrorClass: ErrorClassOther, Err: err}
	}

	event := c.logger.Debug()
	if c.config.Verbose {
		event = c.logger.Info()
	}
	event.Str("url", rawURL).Int("attempt", attempt).Msg("Fetching")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, ErrorClass: ErrorClassOther, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		fetchRequestsTotal.WithLabelValues(host, "network_error").Inc()
		return nil, &FetchError{URL: rawURL, ErrorClass: classifyTransportError(ctx, err), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		fetchRequestsTotal.WithLabelValues(host, "read_error").Inc()
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			ErrorClass: classifyTransportError(ctx, err),
			Message:    "read body",
			Err:        err,
		}
	}

	fetchRequestsTotal.WithLabelValues(host, fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Debug().
			Str("url", rawURL).
			Int("status", httpResp.StatusCode).
			Msg("Non-success status")
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassHTTP,
			Message:    httpResp.Status,
		}
	}

	return &Response{
		URL:        rawURL,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// FetchJSON fetches rawURL and decodes the body into v. A body that does not
// decode is reported with ErrorClassOther.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(v)
}

// DecodeJSON decodes the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassOther)).Inc()
		return &FetchError{URL: r.URL, StatusCode: r.StatusCode, ErrorClass: ErrorClassOther, Message: "decode json", Err: err}
	}
	return nil
}
