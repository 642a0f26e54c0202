package ports

import (
	"context"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// JobFunc is the body of a scheduled job. It must honour ctx cancellation.
type JobFunc func(ctx context.Context) error

// JobSpec describes a recurring job
type JobSpec struct {
	ID       string
	Name     string
	Cron     string
	TenantID string
	Timeout  time.Duration
	Disabled bool
	Run      JobFunc
}

// Scheduler owns recurring jobs and guarantees at most one run per job at a time
type Scheduler interface {
	Register(spec JobSpec) error
	Enable(id string) error
	Disable(id string) error
	Remove(id string) error
	RemoveTenant(tenantID string) int
	Trigger(id string) error
	Get(id string) (domain.JobInfo, error)
	Jobs() []domain.JobInfo
	JobsByTenant(tenantID string) []domain.JobInfo
	Status() domain.SchedulerStatus
}
