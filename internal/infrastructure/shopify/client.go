package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// MaxPageSize is the largest page the REST Admin API returns
	MaxPageSize = 250

	throttleThreshold = 0.8
	drainTarget       = 0.5
)

// ClientConfig configures a per-tenant client
type ClientConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	// BaseURL overrides the shop origin, e.g. for a proxy; the Admin API path is kept
	BaseURL            string
	PageSize           int
	PageDelay          time.Duration
	LeakRatePerSecond  float64
	DefaultBucketSize  int
	MaxThrottleRetries int
	RequestTimeout     time.Duration
	HTTPClient         *http.Client
}

// DefaultClientConfig returns the standard REST Admin API settings for a store
func DefaultClientConfig(shopDomain, accessToken string) ClientConfig {
	return ClientConfig{
		ShopDomain:         shopDomain,
		AccessToken:        accessToken,
		PageSize:           MaxPageSize,
		PageDelay:          500 * time.Millisecond,
		LeakRatePerSecond:  2,
		DefaultBucketSize:  40,
		MaxThrottleRetries: 10,
		RequestTimeout:     30 * time.Second,
	}
}

// Client is a rate-limit aware REST client for one tenant built on go-shopify.
// It is the only writer of its RateLimitState.
type Client struct {
	cfg    ClientConfig
	pacer  *rate.Limiter
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	// callMu serializes api calls; goshopify.Client records RateLimits per call
	callMu sync.Mutex
	api    *goshopify.Client

	mu    sync.RWMutex
	state domain.RateLimitState
}

var _ ports.ShopifyClient = (*Client)(nil)

// NewClient creates a client; zero config fields fall back to the defaults
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	def := DefaultClientConfig(cfg.ShopDomain, cfg.AccessToken)
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = def.PageSize
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.LeakRatePerSecond <= 0 {
		cfg.LeakRatePerSecond = def.LeakRatePerSecond
	}
	if cfg.DefaultBucketSize <= 0 {
		cfg.DefaultBucketSize = def.DefaultBucketSize
	}
	if cfg.MaxThrottleRetries <= 0 {
		cfg.MaxThrottleRetries = def.MaxThrottleRetries
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	api, err := newAPIClient(cfg.ShopDomain, cfg.BaseURL, cfg.AccessToken, cfg.APIVersion, httpClient, logger)
	if err != nil {
		return nil, err
	}

	pace := rate.Inf
	if cfg.PageDelay > 0 {
		pace = rate.Every(cfg.PageDelay)
	}

	return &Client{
		cfg:    cfg,
		pacer:  rate.NewLimiter(pace, 1),
		logger: logger,
		sleep:  sleepContext,
		api:    api,
		state: domain.RateLimitState{
			BucketSize:        cfg.DefaultBucketSize,
			LeakRatePerSecond: cfg.LeakRatePerSecond,
		},
	}, nil
}

// NewClientFactory returns a factory that builds clients sharing the given defaults
func NewClientFactory(defaults ClientConfig, logger zerolog.Logger) ports.ShopifyClientFactory {
	return func(cred *domain.TenantCredential) (ports.ShopifyClient, error) {
		cfg := defaults
		cfg.ShopDomain = cred.ShopDomain
		cfg.BaseURL = cred.BaseURL
		cfg.AccessToken = cred.AccessToken
		client, err := NewClient(cfg, logger.With().Str("tenantId", cred.TenantID).Str("shop", cred.ShopDomain).Logger())
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// FetchPage issues one paginated GET for resource
func (c *Client) FetchPage(ctx context.Context, resource domain.ResourceType, params url.Values, sinceID string) ([]json.RawMessage, string, error) {
	path, opts, err := c.listRequest(resource, params, sinceID)
	if err != nil {
		return nil, "", err
	}

	var envelope map[string]json.RawMessage
	err = c.call(ctx, func() error {
		envelope = nil
		return c.api.Get(ctx, path, &envelope, opts)
	})
	if err != nil {
		return nil, "", err
	}

	var items []json.RawMessage
	if raw, ok := envelope[string(resource)]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, "", fmt.Errorf("failed to decode %s list: %w", resource, err)
		}
	}

	next := ""
	if len(items) > 0 {
		next = lastID(items[len(items)-1])
	}
	return items, next, nil
}

// FetchAll walks every page using since_id cursoring and stops on a short page.
// With a nil onBatch the items are returned; otherwise they are streamed and the result is nil.
func (c *Client) FetchAll(ctx context.Context, resource domain.ResourceType, params url.Values, onBatch ports.BatchFunc) ([]json.RawMessage, error) {
	pageSize := c.cfg.PageSize
	if l, err := strconv.Atoi(params.Get("limit")); err == nil && l > 0 {
		pageSize = l
	}

	var all []json.RawMessage
	sinceID := ""
	for page := 0; ; page++ {
		if page > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				return all, err
			}
		} else {
			c.pacer.Allow()
		}

		items, next, err := c.FetchPage(ctx, resource, params, sinceID)
		if err != nil {
			return all, fmt.Errorf("failed to fetch %s page %d: %w", resource, page+1, err)
		}

		c.logger.Debug().
			Str("resource", string(resource)).
			Int("page", page+1).
			Int("items", len(items)).
			Msg("Fetched page")

		if len(items) > 0 {
			if onBatch != nil {
				if err := onBatch(ctx, items); err != nil {
					return nil, err
				}
			} else {
				all = append(all, items...)
			}
		}

		if len(items) < pageSize || next == "" {
			return all, nil
		}
		sinceID = next
	}
}

// HealthCheck fetches the shop; 401/403 map to domain.ErrInvalidCredentials
func (c *Client) HealthCheck(ctx context.Context) error {
	err := c.call(ctx, func() error {
		_, err := c.api.Shop.Get(ctx, nil)
		return err
	})
	if err != nil {
		if status, ok := StatusCode(err); ok && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
		}
		return err
	}
	return nil
}

// IsThrottled reports whether the bucket is more than 80% full
func (c *Client) IsThrottled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.RetryAfterSeconds != nil || c.state.Utilization() > throttleThreshold
}

// WaitTime returns how long to back off: Retry-After verbatim, otherwise
// long enough for the bucket to drain to 50%.
func (c *Client) WaitTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.RetryAfterSeconds != nil {
		return secondsToDuration(*c.state.RetryAfterSeconds)
	}
	excess := float64(c.state.CallsMade) - float64(c.state.BucketSize)*drainTarget
	if excess <= 0 || c.state.LeakRatePerSecond <= 0 {
		return 0
	}
	return secondsToDuration(excess / c.state.LeakRatePerSecond)
}

// RateLimit returns a copy of the current bucket state
func (c *Client) RateLimit() domain.RateLimitState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.RetryAfterSeconds != nil {
		v := *s.RetryAfterSeconds
		s.RetryAfterSeconds = &v
	}
	return s
}

// StatusCode extracts the HTTP status from a go-shopify response error
func StatusCode(err error) (int, bool) {
	var limited goshopify.RateLimitError
	if errors.As(err, &limited) {
		return limited.Status, true
	}
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status, true
	}
	var decodeErr goshopify.ResponseDecodingError
	if errors.As(err, &decodeErr) {
		return decodeErr.Status, true
	}
	return 0, false
}

// call runs one API request, retrying it on 429 after the advertised wait
func (c *Client) call(ctx context.Context, do func() error) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	for attempt := 0; ; attempt++ {
		err := do()

		var limited goshopify.RateLimitError
		if !errors.As(err, &limited) {
			c.observe(err)
			return err
		}

		c.observeThrottle(limited)
		if attempt >= c.cfg.MaxThrottleRetries {
			return fmt.Errorf("%w: gave up after %d retries", domain.ErrRateLimited, attempt)
		}
		wait := c.WaitTime()
		c.logger.Warn().
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Rate limited by Shopify, retrying page")
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// observe refreshes the bucket from the limits go-shopify recorded for the last response
func (c *Client) observe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if limits := c.api.RateLimits; limits.BucketSize > 0 {
			c.state.CallsMade = limits.RequestCount
			c.state.BucketSize = limits.BucketSize
		}
		c.state.RetryAfterSeconds = nil
		return
	}
	if _, answered := StatusCode(err); answered {
		c.state.RetryAfterSeconds = nil
	}
}

// observeThrottle marks the bucket full and records the server's Retry-After
func (c *Client) observeThrottle(limited goshopify.RateLimitError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.CallsMade = c.state.BucketSize
	secs := float64(limited.RetryAfter)
	if secs <= 0 {
		secs = 1 / c.state.LeakRatePerSecond
	}
	c.state.RetryAfterSeconds = &secs
}

// listRequest splits params into go-shopify list options and a query kept on the path
func (c *Client) listRequest(resource domain.ResourceType, params url.Values, sinceID string) (string, goshopify.ListOptions, error) {
	opts := goshopify.ListOptions{Limit: c.cfg.PageSize}
	extra := url.Values{}
	for k, v := range params {
		switch k {
		case "limit":
			if n, err := strconv.Atoi(params.Get(k)); err == nil && n > 0 {
				opts.Limit = n
			}
		case "since_id":
		default:
			extra[k] = append([]string(nil), v...)
		}
	}
	if sinceID != "" {
		id, err := strconv.ParseUint(sinceID, 10, 64)
		if err != nil {
			return "", opts, fmt.Errorf("invalid since_id %q: %w", sinceID, err)
		}
		opts.SinceId = &id
	}

	path := string(resource) + ".json"
	if len(extra) > 0 {
		path += "?" + extra.Encode()
	}
	return path, opts, nil
}

func lastID(raw json.RawMessage) string {
	var item struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return ""
	}
	return item.ID.String()
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
