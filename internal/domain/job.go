package domain

import "time"

// JobState is the run state of a scheduled job
type JobState string

const (
	JobStateIdle      JobState = "idle"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// JobInfo is a read-only snapshot of a scheduled job
type JobInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Cron      string     `json:"cron"`
	TenantID  string     `json:"tenant_id,omitempty"`
	State     JobState   `json:"state"`
	Enabled   bool       `json:"enabled"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int        `json:"run_count"`
}

// SchedulerStatus aggregates job counts for health reporting
type SchedulerStatus struct {
	Running  bool                        `json:"running"`
	Total    int                         `json:"total"`
	Enabled  int                         `json:"enabled"`
	ByState  map[JobState]int            `json:"by_state"`
	ByTenant map[string]map[JobState]int `json:"by_tenant"`
}

// TenantSyncStatus is the per-tenant view returned by the coordinator
type TenantSyncStatus struct {
	TenantID    string                         `json:"tenant_id"`
	ShopDomain  string                         `json:"shop_domain"`
	RateLimit   RateLimitState                 `json:"rate_limit"`
	Throttled   bool                           `json:"throttled"`
	LastImports map[ResourceType]*ImportResult `json:"last_imports"`
	Jobs        []JobInfo                      `json:"jobs"`
}

// SyncStatus is the coordinator-wide sync view
type SyncStatus struct {
	Tenants   []TenantSyncStatus `json:"tenants"`
	Scheduler SchedulerStatus    `json:"scheduler"`
}

// TenantHealth is the last known API health for one tenant
type TenantHealth struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// HealthStatus is the coordinator-wide health view
type HealthStatus struct {
	Healthy   bool                    `json:"healthy"`
	Tenants   map[string]TenantHealth `json:"tenants"`
	Scheduler SchedulerStatus         `json:"scheduler"`
}
