package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/google/uuid"
)

func recordKey(tenantID, externalID string) string {
	return tenantID + "|" + externalID
}

type storedOrder struct {
	order  domain.Order
	items  []domain.LineItem
	events []domain.OrderEvent
}

// MemoryRecordStore is an in-process RecordStore for single-node runs and tests
type MemoryRecordStore struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]storedOrder
}

var _ ports.RecordStore = (*MemoryRecordStore)(nil)

// NewMemoryRecordStore creates an empty store
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]storedOrder),
	}
}

func (s *MemoryRecordStore) UpsertCustomer(ctx context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[recordKey(customer.TenantID, customer.ExternalID)] = *customer
	return nil
}

func (s *MemoryRecordStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[recordKey(product.TenantID, product.ExternalID)] = *product
	return nil
}

func (s *MemoryRecordStore) UpsertOrder(ctx context.Context, order *domain.Order, items []domain.LineItem, events []domain.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[recordKey(order.TenantID, order.ExternalID)] = storedOrder{
		order:  *order,
		items:  append([]domain.LineItem(nil), items...),
		events: append([]domain.OrderEvent(nil), events...),
	}
	return nil
}

func (s *MemoryRecordStore) Exists(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := recordKey(tenantID, externalID)
	switch resource {
	case domain.ResourceCustomers:
		_, ok := s.customers[key]
		return ok, nil
	case domain.ResourceProducts:
		_, ok := s.products[key]
		return ok, nil
	case domain.ResourceOrders:
		_, ok := s.orders[key]
		return ok, nil
	}
	return false, fmt.Errorf("%w: %q", domain.ErrUnknownResource, resource)
}

func (s *MemoryRecordStore) Delete(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(tenantID, externalID)
	switch resource {
	case domain.ResourceCustomers:
		delete(s.customers, key)
	case domain.ResourceProducts:
		delete(s.products, key)
	case domain.ResourceOrders:
		delete(s.orders, key)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownResource, resource)
	}
	return nil
}

// Customer returns a stored customer, or nil
func (s *MemoryRecordStore) Customer(tenantID, externalID string) *domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[recordKey(tenantID, externalID)]
	if !ok {
		return nil
	}
	return &c
}

// Product returns a stored product, or nil
func (s *MemoryRecordStore) Product(tenantID, externalID string) *domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[recordKey(tenantID, externalID)]
	if !ok {
		return nil
	}
	return &p
}

// Order returns a stored order with its children, or nil
func (s *MemoryRecordStore) Order(tenantID, externalID string) (*domain.Order, []domain.LineItem, []domain.OrderEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[recordKey(tenantID, externalID)]
	if !ok {
		return nil, nil, nil
	}
	return &o.order, o.items, o.events
}

// Count returns how many records of a resource are stored for a tenant
func (s *MemoryRecordStore) Count(resource domain.ResourceType, tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	prefix := tenantID + "|"
	count := func(key string) {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			n++
		}
	}
	switch resource {
	case domain.ResourceCustomers:
		for k := range s.customers {
			count(k)
		}
	case domain.ResourceProducts:
		for k := range s.products {
			count(k)
		}
	case domain.ResourceOrders:
		for k := range s.orders {
			count(k)
		}
	}
	return n
}

// MemoryTenantRepository is an in-process TenantRepository
type MemoryTenantRepository struct {
	mu    sync.RWMutex
	creds []*domain.TenantCredential
}

var _ ports.TenantRepository = (*MemoryTenantRepository)(nil)

// NewMemoryTenantRepository creates an empty repository
func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{}
}

func (r *MemoryTenantRepository) Save(ctx context.Context, cred *domain.TenantCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, c := range r.creds {
		if c.TenantID == cred.TenantID && c.Active {
			c.Active = false
			c.UpdatedAt = now
		}
	}
	stored := *cred
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Active = true
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.creds = append(r.creds, &stored)
	return nil
}

func (r *MemoryTenantRepository) GetActive(ctx context.Context, tenantID string) (*domain.TenantCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.creds {
		if c.TenantID == tenantID && c.Active {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryTenantRepository) GetActiveByShopDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.creds {
		if c.ShopDomain == shopDomain && c.Active {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryTenantRepository) ListActive(ctx context.Context) ([]*domain.TenantCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.TenantCredential
	for _, c := range r.creds {
		if c.Active {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (r *MemoryTenantRepository) Deactivate(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.TenantID == tenantID && c.Active {
			c.Active = false
			c.UpdatedAt = time.Now()
		}
	}
	return nil
}

// MemoryWebhookEventLog is an in-process WebhookEventLog
type MemoryWebhookEventLog struct {
	mu     sync.RWMutex
	events map[string]*domain.WebhookEvent
}

var _ ports.WebhookEventLog = (*MemoryWebhookEventLog)(nil)

// NewMemoryWebhookEventLog creates an empty log
func NewMemoryWebhookEventLog() *MemoryWebhookEventLog {
	return &MemoryWebhookEventLog{events: make(map[string]*domain.WebhookEvent)}
}

func (l *MemoryWebhookEventLog) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *event
	l.events[event.ID] = &cp
	return nil
}

func (l *MemoryWebhookEventLog) MarkProcessed(ctx context.Context, eventID string, attempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.events[eventID]; ok {
		now := time.Now()
		e.Processed = true
		e.Status = domain.WebhookStatusProcessed
		e.Attempts = attempts
		e.Error = ""
		e.ProcessedAt = &now
	}
	return nil
}

func (l *MemoryWebhookEventLog) MarkFailed(ctx context.Context, eventID string, attempts int, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.events[eventID]; ok {
		now := time.Now()
		e.Status = domain.WebhookStatusFailed
		e.Attempts = attempts
		e.Error = errMsg
		e.ProcessedAt = &now
	}
	return nil
}

func (l *MemoryWebhookEventLog) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, e := range l.events {
		if e.Processed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(l.events, id)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of a logged event, or nil
func (l *MemoryWebhookEventLog) Get(eventID string) *domain.WebhookEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.events[eventID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}
