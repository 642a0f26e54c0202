// Package httpapi exposes webhook intake, the admin API and operational endpoints over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"archie-core-shopify-ingestion/internal/application"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/pubsub"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Receiver accepts signed webhook deliveries
type Receiver interface {
	Receive(ctx context.Context, d application.WebhookDelivery) (*domain.WebhookEvent, error)
}

// Coordinator is the tenant and import surface of the ingestion service
type Coordinator interface {
	AddTenant(ctx context.Context, input application.TenantInput) (*domain.TenantCredential, error)
	RemoveTenant(ctx context.Context, tenantID string) error
	Tenants() []domain.TenantCredential
	ImportData(ctx context.Context, tenantID string, resource domain.ResourceType, opts domain.ImportOptions) ([]*domain.ImportResult, error)
	GetSyncStatus() domain.SyncStatus
	GetTenantSyncStatus(tenantID string) (*domain.TenantSyncStatus, error)
	GetHealthStatus() domain.HealthStatus
}

// Options configures the router
type Options struct {
	WebhookPath  string
	AdminToken   string
	CORSOrigins  []string
	MaxBodyBytes int64
	// Metrics serves /metrics when set
	Metrics http.Handler
}

// Deps are the services behind the routes. Coordinator, Jobs and Events may be
// nil when the admin API is disabled.
type Deps struct {
	Receiver    Receiver
	Coordinator Coordinator
	Jobs        ports.Scheduler
	Events      *pubsub.SyncPubSub
	// Tasks tracks asynchronous imports; a private group is used when nil
	Tasks *BackgroundTasks
}

type api struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// NewRouter builds the HTTP handler
func NewRouter(opts Options, deps Deps, logger zerolog.Logger) http.Handler {
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/webhooks/shopify"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if deps.Tasks == nil {
		deps.Tasks = NewBackgroundTasks()
	}
	a := &api{opts: opts, deps: deps, logger: logger.With().Str("component", "http").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", a.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Post(opts.WebhookPath, a.webhook)

	if opts.AdminToken != "" && deps.Coordinator != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(adminAuth(opts.AdminToken))

			r.Get("/tenants", a.listTenants)
			r.Post("/tenants", a.addTenant)
			r.Delete("/tenants/{tenantID}", a.removeTenant)
			r.Get("/tenants/{tenantID}/status", a.tenantStatus)
			r.Post("/tenants/{tenantID}/imports", a.startImport)

			r.Get("/status", a.syncStatus)
			r.Get("/health", a.healthStatus)

			if deps.Jobs != nil {
				r.Get("/jobs", a.listJobs)
				r.Get("/jobs/{jobID}", a.getJob)
				r.Post("/jobs/{jobID}/enable", a.enableJob)
				r.Post("/jobs/{jobID}/disable", a.disableJob)
				r.Post("/jobs/{jobID}/trigger", a.triggerJob)
			}
			if deps.Events != nil {
				r.Get("/events", a.streamEvents)
			}
		})
	}

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
