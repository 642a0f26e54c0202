package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/application"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/pubsub"
	"archie-core-shopify-ingestion/internal/infrastructure/queue"
	"archie-core-shopify-ingestion/internal/infrastructure/repository"
	"archie-core-shopify-ingestion/internal/infrastructure/scheduler"
	"archie-core-shopify-ingestion/internal/infrastructure/shopify"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testShop   = "acme.myshopify.com"
	testSecret = "s3cret"
	adminToken = "admin-token"
)

type staticResolver map[string]*domain.TenantCredential

func (r staticResolver) ResolveTenantByDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error) {
	return r[shopDomain], nil
}

type brokenQueue struct{ ports.EventQueue }

func (brokenQueue) Enqueue(context.Context, *domain.WebhookEvent) error {
	return errors.New("redis unavailable")
}

type fakeCoordinator struct {
	mu      sync.Mutex
	tenants map[string]domain.TenantCredential
	addErr  error
	imports []domain.ResourceType
	// block holds imports until closed or until their context ends
	block chan struct{}
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{tenants: map[string]domain.TenantCredential{
		"t1": {TenantID: "t1", ShopDomain: testShop, AccessToken: "shpat_secret", Active: true},
	}}
}

func (c *fakeCoordinator) AddTenant(ctx context.Context, in application.TenantInput) (*domain.TenantCredential, error) {
	if c.addErr != nil {
		return nil, c.addErr
	}
	cred := domain.TenantCredential{TenantID: in.TenantID, ShopDomain: in.ShopDomain, AccessToken: in.AccessToken, WebhookSecret: in.WebhookSecret, Active: true}
	c.mu.Lock()
	c.tenants[in.TenantID] = cred
	c.mu.Unlock()
	return &cred, nil
}

func (c *fakeCoordinator) RemoveTenant(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tenants[tenantID]; !ok {
		return domain.ErrTenantNotFound
	}
	delete(c.tenants, tenantID)
	return nil
}

func (c *fakeCoordinator) Tenants() []domain.TenantCredential {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.TenantCredential
	for _, t := range c.tenants {
		out = append(out, t)
	}
	return out
}

func (c *fakeCoordinator) ImportData(ctx context.Context, tenantID string, resource domain.ResourceType, opts domain.ImportOptions) ([]*domain.ImportResult, error) {
	c.mu.Lock()
	if _, ok := c.tenants[tenantID]; !ok {
		c.mu.Unlock()
		return nil, domain.ErrTenantNotFound
	}
	c.imports = append(c.imports, resource)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []*domain.ImportResult{{TenantID: tenantID, Resource: resource, Status: domain.ImportStatusSuccess, DryRun: opts.DryRun, Imported: 3}}, nil
}

func (c *fakeCoordinator) GetSyncStatus() domain.SyncStatus {
	return domain.SyncStatus{}
}

func (c *fakeCoordinator) GetTenantSyncStatus(tenantID string) (*domain.TenantSyncStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tenants[tenantID]; !ok {
		return nil, domain.ErrTenantNotFound
	}
	return &domain.TenantSyncStatus{TenantID: tenantID}, nil
}

func (c *fakeCoordinator) GetHealthStatus() domain.HealthStatus {
	return domain.HealthStatus{Healthy: false, Tenants: map[string]domain.TenantHealth{"t1": {Healthy: false, Error: "401"}}}
}

func (c *fakeCoordinator) importCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.imports)
}

type testRig struct {
	queue   *queue.MemoryEventQueue
	events  *repository.MemoryWebhookEventLog
	coord   *fakeCoordinator
	jobs    *scheduler.Scheduler
	pubsub  *pubsub.SyncPubSub
	handler http.Handler
}

func newTestRig(t *testing.T, q ports.EventQueue) *testRig {
	t.Helper()
	rig := &testRig{
		queue:  queue.NewMemoryEventQueue(),
		events: repository.NewMemoryWebhookEventLog(),
		coord:  newFakeCoordinator(),
		jobs:   scheduler.New(scheduler.Config{}, nil, zerolog.Nop()),
		pubsub: pubsub.NewSyncPubSub(zerolog.Nop()),
	}
	if q == nil {
		q = rig.queue
	}
	resolver := staticResolver{testShop: {TenantID: "t1", ShopDomain: testShop, WebhookSecret: testSecret}}
	receiver := application.NewWebhookReceiver(resolver, shopify.VerifySignature, q, rig.events, nil, zerolog.Nop())
	rig.handler = NewRouter(Options{AdminToken: adminToken}, Deps{
		Receiver:    receiver,
		Coordinator: rig.coord,
		Jobs:        rig.jobs,
		Events:      rig.pubsub,
	}, zerolog.Nop())
	t.Cleanup(func() { _ = rig.jobs.Stop(context.Background()) })
	return rig
}

func (rig *testRig) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	rig.handler.ServeHTTP(rec, req)
	return rec
}

func (rig *testRig) admin(method, path string, body []byte) *httptest.ResponseRecorder {
	return rig.do(method, path, body, map[string]string{AdminTokenHeader: adminToken})
}

func webhookHeaders(topic, signature string) map[string]string {
	return map[string]string{
		HeaderTopic:      topic,
		HeaderShopDomain: testShop,
		HeaderHmac:       signature,
		HeaderWebhookID:  "wh-1",
	}
}

func TestHealth(t *testing.T) {
	rig := newTestRig(t, nil)
	rec := rig.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhook_AcceptedAfterEnqueue(t *testing.T) {
	rig := newTestRig(t, nil)
	body := []byte(`{"id":42,"email":"a@example.com"}`)
	sig := shopify.NewWebhookVerifier(testSecret).Sign(body)

	rec := rig.do(http.MethodPost, "/webhooks/shopify", body, webhookHeaders("customers/create", sig))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["received"])
	assert.Equal(t, "wh-1", resp["id"])
	assert.Equal(t, "customers/create", resp["topic"])

	n, err := rig.queue.Len(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	logged := rig.events.Get("wh-1")
	require.NotNil(t, logged)
	assert.Equal(t, "t1", logged.TenantID)
}

func TestWebhook_Rejections(t *testing.T) {
	body := []byte(`{"id":42}`)
	good := shopify.NewWebhookVerifier(testSecret).Sign(body)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"wrong secret", webhookHeaders("customers/create", shopify.NewWebhookVerifier("other").Sign(body)), http.StatusUnauthorized},
		{"missing topic", webhookHeaders("", good), http.StatusBadRequest},
		{"missing signature", webhookHeaders("customers/create", ""), http.StatusBadRequest},
		{"unknown shop", map[string]string{HeaderTopic: "customers/create", HeaderShopDomain: "other.myshopify.com", HeaderHmac: good}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			rec := rig.do(http.MethodPost, "/webhooks/shopify", body, tt.headers)
			assert.Equal(t, tt.want, rec.Code)

			n, err := rig.queue.Len(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Nil(t, rig.events.Get("wh-1"))
		})
	}
}

func TestWebhook_EnqueueFailureIsNotAcknowledged(t *testing.T) {
	rig := newTestRig(t, brokenQueue{})
	body := []byte(`{"id":42}`)
	sig := shopify.NewWebhookVerifier(testSecret).Sign(body)

	rec := rig.do(http.MethodPost, "/webhooks/shopify", body, webhookHeaders("customers/create", sig))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestAdmin_RequiresToken(t *testing.T) {
	rig := newTestRig(t, nil)
	assert.Equal(t, http.StatusUnauthorized, rig.do(http.MethodGet, "/api/v1/tenants", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, rig.do(http.MethodGet, "/api/v1/tenants", nil, map[string]string{AdminTokenHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK, rig.admin(http.MethodGet, "/api/v1/tenants", nil).Code)
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	h := NewRouter(Options{}, Deps{Coordinator: newFakeCoordinator()}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_Tenants(t *testing.T) {
	rig := newTestRig(t, nil)

	rec := rig.admin(http.MethodPost, "/api/v1/tenants", []byte(`{"tenant_id":"t2","shop_domain":"beta.myshopify.com","access_token":"shpat_x","webhook_secret":"w"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "shpat_x")

	rec = rig.admin(http.MethodGet, "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shpat_secret")
	assert.Contains(t, rec.Body.String(), `"t2"`)

	assert.Equal(t, http.StatusNoContent, rig.admin(http.MethodDelete, "/api/v1/tenants/t2", nil).Code)
	assert.Equal(t, http.StatusNotFound, rig.admin(http.MethodDelete, "/api/v1/tenants/t2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, rig.admin(http.MethodPost, "/api/v1/tenants", []byte(`{`)).Code)
}

func TestAdmin_AddTenantErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.Join(domain.ErrValidation, errors.New("shop_domain")), http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnprocessableEntity},
		{errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rig := newTestRig(t, nil)
		rig.coord.addErr = tt.err
		rec := rig.admin(http.MethodPost, "/api/v1/tenants", []byte(`{"tenant_id":"t2"}`))
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestAdmin_Imports(t *testing.T) {
	rig := newTestRig(t, nil)

	rec := rig.admin(http.MethodPost, "/api/v1/tenants/t1/imports", []byte(`{"resource":"customers","wait":true,"dry_run":true}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Results []domain.ImportResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.ResourceCustomers, resp.Results[0].Resource)
	assert.True(t, resp.Results[0].DryRun)

	rec = rig.admin(http.MethodPost, "/api/v1/tenants/t1/imports", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return rig.coord.importCount() == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, rig.admin(http.MethodPost, "/api/v1/tenants/t1/imports", []byte(`{"resource":"refunds"}`)).Code)
	assert.Equal(t, http.StatusNotFound, rig.admin(http.MethodPost, "/api/v1/tenants/nope/imports", []byte(`{"resource":"orders"}`)).Code)
}

func TestAdmin_AsyncImportsDrainOnShutdown(t *testing.T) {
	coord := newFakeCoordinator()
	coord.block = make(chan struct{})
	tasks := NewBackgroundTasks()
	h := NewRouter(Options{AdminToken: adminToken}, Deps{Coordinator: coord, Tasks: tasks}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/t1/imports", nil)
	req.Header.Set(AdminTokenHeader, adminToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return coord.importCount() == 1 }, time.Second, 5*time.Millisecond)

	// the request is long gone; the import still runs until shutdown gives up on it
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tasks.Drain(ctx), context.DeadlineExceeded)
}

func TestAdmin_HealthReportsUnhealthyTenants(t *testing.T) {
	rig := newTestRig(t, nil)
	rec := rig.admin(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"401"`)
}

func TestAdmin_Jobs(t *testing.T) {
	rig := newTestRig(t, nil)
	ran := make(chan struct{}, 1)
	require.NoError(t, rig.jobs.Register(scheduler.JobSpec{
		ID:       "t1:customer-sync",
		Name:     "customer-sync",
		Cron:     "0 */6 * * *",
		TenantID: "t1",
		Run: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	rec := rig.admin(http.MethodGet, "/api/v1/jobs?tenant=t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "t1:customer-sync")

	rec = rig.admin(http.MethodPost, "/api/v1/jobs/t1:customer-sync/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info domain.JobInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.False(t, info.Enabled)

	require.Equal(t, http.StatusOK, rig.admin(http.MethodPost, "/api/v1/jobs/t1:customer-sync/trigger", nil).Code)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("triggered job did not run")
	}

	assert.Equal(t, http.StatusNotFound, rig.admin(http.MethodPost, "/api/v1/jobs/missing/trigger", nil).Code)
}

func TestAdmin_EventStream(t *testing.T) {
	rig := newTestRig(t, nil)
	srv := httptest.NewServer(rig.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?tenant=t1", nil)
	require.NoError(t, err)
	req.Header.Set(AdminTokenHeader, adminToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	rig.pubsub.Publish(&domain.Notification{Kind: domain.NotificationTenantAdded, TenantID: "other"})
	rig.pubsub.Publish(&domain.Notification{Kind: domain.NotificationImportFinished, TenantID: "t1", Status: "success"})

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, string(domain.NotificationImportFinished), event)
	assert.Contains(t, data, `"tenant_id":"t1"`)
}
