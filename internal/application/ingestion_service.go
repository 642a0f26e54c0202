package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// IngestionConfig holds the coordinator's schedules and defaults
type IngestionConfig struct {
	// WebhookAddress is the public URL webhooks are registered against; empty skips registration
	WebhookAddress string
	WebhookTopics  []string

	CustomerSyncCron string
	ProductSyncCron  string
	OrderSyncCron    string
	FullSyncCron     string
	HealthCheckCron  string
	RateLimitCron    string
	CleanupCron      string

	// OrderSyncWindow bounds the incremental order sync to recently updated orders
	OrderSyncWindow    time.Duration
	TenantJobTimeout   time.Duration
	GlobalJobTimeout   time.Duration
	HealthCheckTimeout time.Duration
	WebhookRetention   time.Duration

	ImportDefaults domain.ImportOptions
}

// DefaultIngestionConfig returns the production schedules
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		CustomerSyncCron:   "0 */6 * * *",
		ProductSyncCron:    "0 2 * * *",
		OrderSyncCron:      "*/15 * * * *",
		FullSyncCron:       "0 3 * * 0",
		HealthCheckCron:    "*/5 * * * *",
		RateLimitCron:      "* * * * *",
		CleanupCron:        "0 4 * * *",
		OrderSyncWindow:    7 * 24 * time.Hour,
		TenantJobTimeout:   30 * time.Minute,
		GlobalJobTimeout:   2 * time.Minute,
		HealthCheckTimeout: 10 * time.Second,
		WebhookRetention:   30 * 24 * time.Hour,
	}
}

// Job names; per-tenant job ids are "<tenantID>:<name>"
const (
	JobCustomerSync     = "customer-sync"
	JobProductSync      = "product-sync"
	JobOrderSync        = "order-sync"
	JobFullSync         = "full-sync"
	JobHealthCheck      = "health-check"
	JobRateLimitMonitor = "rate-limit-monitor"
	JobCleanup          = "cleanup"
)

// TenantJobID returns the scheduler id of a tenant job
func TenantJobID(tenantID, name string) string {
	return tenantID + ":" + name
}

type tenantEntry struct {
	cred        *domain.TenantCredential
	client      ports.ShopifyClient
	health      domain.TenantHealth
	lastImports map[domain.ResourceType]*domain.ImportResult
}

// IngestionService composes the client registry, importer, scheduler and
// webhook registration into tenant lifecycle operations
type IngestionService struct {
	mu       sync.RWMutex
	tenants  map[string]*tenantEntry
	byDomain map[string]string

	credentials   *CredentialsService
	clientFactory ports.ShopifyClientFactory
	importer      *Importer
	scheduler     ports.Scheduler
	registrar     ports.WebhookRegistrar
	events        ports.WebhookEventLog
	notifier      ports.Notifier
	metrics       ports.Metrics
	cfg           IngestionConfig
	logger        zerolog.Logger
	now           func() time.Time
}

// NewIngestionService creates the coordinator. registrar may be nil.
func NewIngestionService(
	credentials *CredentialsService,
	clientFactory ports.ShopifyClientFactory,
	importer *Importer,
	scheduler ports.Scheduler,
	registrar ports.WebhookRegistrar,
	events ports.WebhookEventLog,
	notifier ports.Notifier,
	metrics ports.Metrics,
	cfg IngestionConfig,
	logger zerolog.Logger,
) *IngestionService {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &IngestionService{
		tenants:       make(map[string]*tenantEntry),
		byDomain:      make(map[string]string),
		credentials:   credentials,
		clientFactory: clientFactory,
		importer:      importer,
		scheduler:     scheduler,
		registrar:     registrar,
		events:        events,
		notifier:      notifier,
		metrics:       metrics,
		cfg:           cfg,
		logger:        logger.With().Str("component", "ingestion").Logger(),
		now:           time.Now,
	}
}

// AddTenant validates credentials against the API, stores them and starts
// the tenant's jobs. Re-adding a tenant replaces its credentials.
func (s *IngestionService) AddTenant(ctx context.Context, input TenantInput) (*domain.TenantCredential, error) {
	if err := s.credentials.Validate(&input); err != nil {
		return nil, err
	}
	cred := &domain.TenantCredential{
		TenantID:      input.TenantID,
		ShopDomain:    input.ShopDomain,
		BaseURL:       input.BaseURL,
		AccessToken:   input.AccessToken,
		WebhookSecret: input.WebhookSecret,
		Active:        true,
	}

	client, err := s.clientFactory(cred)
	if err == nil {
		err = s.checkHealth(ctx, client)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("tenantId", cred.TenantID).Str("shop", cred.ShopDomain).Msg("Rejected tenant credentials")
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}

	if err := s.credentials.Store(ctx, cred); err != nil {
		return nil, err
	}
	if err := s.register(cred, client); err != nil {
		return nil, err
	}

	if s.registrar != nil && s.cfg.WebhookAddress != "" {
		if err := s.registrar.Register(ctx, cred, s.cfg.WebhookAddress, s.cfg.WebhookTopics); err != nil {
			// the pull path still covers the tenant; webhooks can be re-registered by re-adding
			s.logger.Error().Err(err).Str("tenantId", cred.TenantID).Msg("Failed to register webhooks")
		}
	}

	s.notifier.Publish(&domain.Notification{Kind: domain.NotificationTenantAdded, TenantID: cred.TenantID, At: s.now().UTC()})
	s.logger.Info().Str("tenantId", cred.TenantID).Str("shop", cred.ShopDomain).Msg("Tenant onboarded")
	return cred, nil
}

// register installs a client and the per-tenant job set, replacing any previous registration
func (s *IngestionService) register(cred *domain.TenantCredential, client ports.ShopifyClient) error {
	s.scheduler.RemoveTenant(cred.TenantID)

	s.mu.Lock()
	if prev, ok := s.tenants[cred.TenantID]; ok {
		delete(s.byDomain, prev.cred.ShopDomain)
	}
	s.tenants[cred.TenantID] = &tenantEntry{
		cred:        cred,
		client:      client,
		lastImports: make(map[domain.ResourceType]*domain.ImportResult),
	}
	s.byDomain[cred.ShopDomain] = cred.TenantID
	s.mu.Unlock()

	for _, spec := range s.tenantJobs(cred.TenantID) {
		if err := s.scheduler.Register(spec); err != nil {
			s.scheduler.RemoveTenant(cred.TenantID)
			return fmt.Errorf("failed to schedule %s: %w", spec.ID, err)
		}
	}
	return nil
}

func (s *IngestionService) tenantJobs(tenantID string) []ports.JobSpec {
	job := func(name, expr string, run ports.JobFunc) ports.JobSpec {
		return ports.JobSpec{
			ID:       TenantJobID(tenantID, name),
			Name:     name,
			Cron:     expr,
			TenantID: tenantID,
			Timeout:  s.cfg.TenantJobTimeout,
			Run:      run,
		}
	}
	return []ports.JobSpec{
		job(JobCustomerSync, s.cfg.CustomerSyncCron, func(ctx context.Context) error {
			return s.scheduledImport(ctx, tenantID, domain.ResourceCustomers, s.cfg.ImportDefaults)
		}),
		job(JobProductSync, s.cfg.ProductSyncCron, func(ctx context.Context) error {
			return s.scheduledImport(ctx, tenantID, domain.ResourceProducts, s.cfg.ImportDefaults)
		}),
		job(JobOrderSync, s.cfg.OrderSyncCron, func(ctx context.Context) error {
			opts := s.cfg.ImportDefaults
			since := s.now().Add(-s.cfg.OrderSyncWindow)
			opts.UpdatedAtMin = &since
			return s.scheduledImport(ctx, tenantID, domain.ResourceOrders, opts)
		}),
		job(JobFullSync, s.cfg.FullSyncCron, func(ctx context.Context) error {
			return s.scheduledImport(ctx, tenantID, domain.ResourceAll, s.cfg.ImportDefaults)
		}),
	}
}

func (s *IngestionService) scheduledImport(ctx context.Context, tenantID string, resource domain.ResourceType, opts domain.ImportOptions) error {
	results, err := s.ImportData(ctx, tenantID, resource, opts)
	if err != nil {
		return err
	}
	var failed []string
	for _, r := range results {
		if r.Status == domain.ImportStatusFailed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Resource, r.Error))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("import failed: %v", failed)
	}
	return nil
}

// RemoveTenant stops a tenant's jobs, unregisters its webhooks and deactivates its credentials
func (s *IngestionService) RemoveTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	entry, ok := s.tenants[tenantID]
	if ok {
		delete(s.tenants, tenantID)
		delete(s.byDomain, entry.cred.ShopDomain)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTenantNotFound, tenantID)
	}

	removed := s.scheduler.RemoveTenant(tenantID)

	if s.registrar != nil && s.cfg.WebhookAddress != "" {
		if err := s.registrar.Unregister(ctx, entry.cred, s.cfg.WebhookAddress); err != nil {
			s.logger.Warn().Err(err).Str("tenantId", tenantID).Msg("Failed to unregister webhooks")
		}
	}
	if err := s.credentials.Revoke(ctx, tenantID); err != nil {
		return err
	}

	s.notifier.Publish(&domain.Notification{Kind: domain.NotificationTenantRemoved, TenantID: tenantID, At: s.now().UTC()})
	s.logger.Info().Str("tenantId", tenantID).Int("jobsRemoved", removed).Msg("Tenant offboarded")
	return nil
}

// LoadTenants registers every stored active tenant; used at start-up
func (s *IngestionService) LoadTenants(ctx context.Context) (int, error) {
	creds, err := s.credentials.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cred := range creds {
		client, err := s.clientFactory(cred)
		if err == nil {
			err = s.register(cred, client)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("tenantId", cred.TenantID).Msg("Failed to load tenant")
			continue
		}
		n++
	}
	s.logger.Info().Int("tenants", n).Msg("Tenants loaded")
	return n, nil
}

// ImportData runs a manual or scheduled import. The run is refused when the
// tenant is unknown or its API cannot be reached; item failures are reported
// in the results instead.
func (s *IngestionService) ImportData(ctx context.Context, tenantID string, resource domain.ResourceType, opts domain.ImportOptions) ([]*domain.ImportResult, error) {
	entry, err := s.entry(tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkHealth(ctx, entry.client); err != nil {
		s.recordHealth(tenantID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrHealthCheckFailed, err)
	}
	s.recordHealth(tenantID, nil)

	var results []*domain.ImportResult
	if resource == domain.ResourceAll {
		results = s.importer.ImportAll(ctx, entry.client, tenantID, opts)
	} else {
		result, err := s.importer.Import(ctx, entry.client, tenantID, resource, opts)
		if err != nil {
			return nil, err
		}
		results = []*domain.ImportResult{result}
	}

	s.mu.Lock()
	for _, r := range results {
		entry.lastImports[r.Resource] = r.Snapshot()
	}
	s.mu.Unlock()

	for _, r := range results {
		s.notifier.Publish(&domain.Notification{
			Kind:     domain.NotificationImportFinished,
			TenantID: tenantID,
			Status:   string(r.Status),
			Import:   r.Snapshot(),
			At:       s.now().UTC(),
		})
	}
	return results, nil
}

// ResolveTenantByDomain returns the decrypted credential for a shop, or nil when no tenant owns it
func (s *IngestionService) ResolveTenantByDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error) {
	shopDomain = strings.ToLower(strings.TrimSpace(shopDomain))
	s.mu.RLock()
	tenantID, ok := s.byDomain[shopDomain]
	var cred *domain.TenantCredential
	if ok {
		cred = s.tenants[tenantID].cred
	}
	s.mu.RUnlock()
	if cred != nil {
		return cred, nil
	}
	// another instance may have onboarded the shop
	return s.credentials.GetByShopDomain(ctx, shopDomain)
}

// Tenants lists registered tenants ordered by id
func (s *IngestionService) Tenants() []domain.TenantCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TenantCredential, 0, len(s.tenants))
	for _, e := range s.tenants {
		out = append(out, *e.cred)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

// GetTenantSyncStatus returns one tenant's sync view
func (s *IngestionService) GetTenantSyncStatus(tenantID string) (*domain.TenantSyncStatus, error) {
	entry, err := s.entry(tenantID)
	if err != nil {
		return nil, err
	}
	st := s.tenantStatus(entry)
	return &st, nil
}

// GetSyncStatus returns the sync view of every tenant plus scheduler counts
func (s *IngestionService) GetSyncStatus() domain.SyncStatus {
	s.mu.RLock()
	entries := make([]*tenantEntry, 0, len(s.tenants))
	for _, e := range s.tenants {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].cred.TenantID < entries[j].cred.TenantID })

	out := domain.SyncStatus{Tenants: make([]domain.TenantSyncStatus, 0, len(entries)), Scheduler: s.scheduler.Status()}
	for _, e := range entries {
		out.Tenants = append(out.Tenants, s.tenantStatus(e))
	}
	return out
}

func (s *IngestionService) tenantStatus(e *tenantEntry) domain.TenantSyncStatus {
	s.mu.RLock()
	last := make(map[domain.ResourceType]*domain.ImportResult, len(e.lastImports))
	for k, v := range e.lastImports {
		last[k] = v
	}
	s.mu.RUnlock()
	return domain.TenantSyncStatus{
		TenantID:    e.cred.TenantID,
		ShopDomain:  e.cred.ShopDomain,
		RateLimit:   e.client.RateLimit(),
		Throttled:   e.client.IsThrottled(),
		LastImports: last,
		Jobs:        s.scheduler.JobsByTenant(e.cred.TenantID),
	}
}

// GetHealthStatus reports the last health check of every tenant
func (s *IngestionService) GetHealthStatus() domain.HealthStatus {
	s.mu.RLock()
	out := domain.HealthStatus{Healthy: true, Tenants: make(map[string]domain.TenantHealth, len(s.tenants))}
	for id, e := range s.tenants {
		out.Tenants[id] = e.health
		if !e.health.CheckedAt.IsZero() && !e.health.Healthy {
			out.Healthy = false
		}
	}
	s.mu.RUnlock()
	out.Scheduler = s.scheduler.Status()
	return out
}

// RegisterGlobalJobs schedules the maintenance jobs that are not tied to a tenant
func (s *IngestionService) RegisterGlobalJobs() error {
	specs := []ports.JobSpec{
		{ID: JobHealthCheck, Name: JobHealthCheck, Cron: s.cfg.HealthCheckCron, Timeout: s.cfg.GlobalJobTimeout, Run: s.RunHealthChecks},
		{ID: JobRateLimitMonitor, Name: JobRateLimitMonitor, Cron: s.cfg.RateLimitCron, Timeout: s.cfg.GlobalJobTimeout, Run: s.MonitorRateLimits},
		{ID: JobCleanup, Name: JobCleanup, Cron: s.cfg.CleanupCron, Timeout: s.cfg.GlobalJobTimeout, Run: s.Cleanup},
	}
	for _, spec := range specs {
		if err := s.scheduler.Register(spec); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", spec.ID, err)
		}
	}
	return nil
}

// RunHealthChecks checks every tenant's API access and fails if any tenant is unhealthy
func (s *IngestionService) RunHealthChecks(ctx context.Context) error {
	var errs []error
	for _, e := range s.snapshot() {
		err := s.checkHealth(ctx, e.client)
		s.recordHealth(e.cred.TenantID, err)
		if err != nil {
			s.logger.Warn().Err(err).Str("tenantId", e.cred.TenantID).Msg("Tenant health check failed")
			errs = append(errs, fmt.Errorf("%s: %w", e.cred.TenantID, err))
		}
	}
	return errors.Join(errs...)
}

// MonitorRateLimits publishes bucket utilisation and warns about throttled tenants
func (s *IngestionService) MonitorRateLimits(ctx context.Context) error {
	for _, e := range s.snapshot() {
		state := e.client.RateLimit()
		s.metrics.SetRateLimitUtilization(e.cred.TenantID, state.Utilization())
		if e.client.IsThrottled() {
			s.logger.Warn().
				Str("tenantId", e.cred.TenantID).
				Int("callsMade", state.CallsMade).
				Int("bucketSize", state.BucketSize).
				Dur("wait", e.client.WaitTime()).
				Msg("Tenant is throttled")
		}
	}
	return nil
}

// Cleanup prunes processed webhook events older than the retention window
func (s *IngestionService) Cleanup(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.WebhookRetention)
	n, err := s.events.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune webhook events: %w", err)
	}
	s.logger.Info().Int64("deleted", n).Time("before", cutoff).Msg("Webhook events pruned")
	return nil
}

func (s *IngestionService) entry(tenantID string) (*tenantEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, tenantID)
	}
	return e, nil
}

func (s *IngestionService) snapshot() []*tenantEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenantEntry, 0, len(s.tenants))
	for _, e := range s.tenants {
		out = append(out, e)
	}
	return out
}

func (s *IngestionService) checkHealth(ctx context.Context, client ports.ShopifyClient) error {
	timeout := s.cfg.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.HealthCheck(ctx)
}

func (s *IngestionService) recordHealth(tenantID string, err error) {
	h := domain.TenantHealth{Healthy: err == nil, CheckedAt: s.now().UTC()}
	if err != nil {
		h.Error = err.Error()
	}
	s.mu.Lock()
	if e, ok := s.tenants[tenantID]; ok {
		e.health = h
	}
	s.mu.Unlock()
}
