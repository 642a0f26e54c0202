package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"
)

// fakeClient serves canned pages per resource
type fakeClient struct {
	mu         sync.Mutex
	pages      map[domain.ResourceType][][]json.RawMessage
	fetchErrs  map[domain.ResourceType]error
	params     map[domain.ResourceType]url.Values
	throttled  atomic.Bool
	wait       time.Duration
	healthErr  error
	healthHits atomic.Int32
	state      domain.RateLimitState
}

var _ ports.ShopifyClient = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:     make(map[domain.ResourceType][][]json.RawMessage),
		fetchErrs: make(map[domain.ResourceType]error),
		params:    make(map[domain.ResourceType]url.Values),
		state:     domain.RateLimitState{BucketSize: 40, LeakRatePerSecond: 2},
	}
}

func (c *fakeClient) addPage(resource domain.ResourceType, items ...string) {
	page := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		page = append(page, json.RawMessage(it))
	}
	c.mu.Lock()
	c.pages[resource] = append(c.pages[resource], page)
	c.mu.Unlock()
}

func (c *fakeClient) FetchPage(ctx context.Context, resource domain.ResourceType, params url.Values, sinceID string) ([]json.RawMessage, string, error) {
	return nil, "", errors.New("not implemented")
}

func (c *fakeClient) FetchAll(ctx context.Context, resource domain.ResourceType, params url.Values, onBatch ports.BatchFunc) ([]json.RawMessage, error) {
	c.mu.Lock()
	c.params[resource] = params
	pages := c.pages[resource]
	fetchErr := c.fetchErrs[resource]
	c.mu.Unlock()

	if fetchErr != nil {
		return nil, fetchErr
	}
	var all []json.RawMessage
	for _, page := range pages {
		if onBatch == nil {
			all = append(all, page...)
			continue
		}
		if err := onBatch(ctx, page); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (c *fakeClient) IsThrottled() bool       { return c.throttled.Load() }
func (c *fakeClient) WaitTime() time.Duration { return c.wait }

func (c *fakeClient) RateLimit() domain.RateLimitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeClient) HealthCheck(ctx context.Context) error {
	c.healthHits.Add(1)
	return c.healthErr
}

// flakyStore fails the first n writes of every kind, or all of them when n < 0
type flakyStore struct {
	ports.RecordStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (s *flakyStore) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.RecordStore.UpsertCustomer(ctx, c)
}

// sleepRecorder replaces real sleeps in tests
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
