package domain

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// ResourceType names an importable Shopify resource
type ResourceType string

const (
	ResourceCustomers ResourceType = "customers"
	ResourceProducts  ResourceType = "products"
	ResourceOrders    ResourceType = "orders"
	ResourceAll       ResourceType = "all"
)

// ImportOrder is the fixed sequence used by full imports so parents exist before orders.
var ImportOrder = []ResourceType{ResourceCustomers, ResourceProducts, ResourceOrders}

// ParseResourceType validates a resource name coming from an API or CLI
func ParseResourceType(s string) (ResourceType, error) {
	switch r := ResourceType(s); r {
	case ResourceCustomers, ResourceProducts, ResourceOrders, ResourceAll:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
}

// RetryPolicy is an exponential backoff policy for persistence writes
type RetryPolicy struct {
	Attempts   int           `json:"attempts"`
	MinTimeout time.Duration `json:"min_timeout"`
	MaxTimeout time.Duration `json:"max_timeout"`
	Factor     float64       `json:"factor"`
}

// DefaultRetryPolicy returns 3 attempts starting at 1s, doubling, capped at 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		MinTimeout: time.Second,
		MaxTimeout: 10 * time.Second,
		Factor:     2,
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// minTimeout * factor^attempt, capped at maxTimeout.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.MinTimeout) * math.Pow(p.Factor, float64(attempt))
	if p.MaxTimeout > 0 && d > float64(p.MaxTimeout) {
		return p.MaxTimeout
	}
	return time.Duration(d)
}

// ImportOptions controls a single import run
type ImportOptions struct {
	BatchSize       int         `json:"batch_size,omitempty"`
	Concurrency     int         `json:"concurrency,omitempty"`
	Retry           RetryPolicy `json:"retry"`
	CreatedAtMin    *time.Time  `json:"created_at_min,omitempty"`
	CreatedAtMax    *time.Time  `json:"created_at_max,omitempty"`
	UpdatedAtMin    *time.Time  `json:"updated_at_min,omitempty"`
	UpdatedAtMax    *time.Time  `json:"updated_at_max,omitempty"`
	FinancialStatus string      `json:"financial_status,omitempty"`
	DryRun          bool        `json:"dry_run"`
	SkipExisting    bool        `json:"skip_existing"`
}

// WithDefaults fills unset fields with the per-resource defaults.
// Orders use smaller batches and less parallelism because each one fans out into children.
func (o ImportOptions) WithDefaults(resource ResourceType) ImportOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
		if resource == ResourceOrders {
			o.BatchSize = 25
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
		if resource == ResourceOrders {
			o.Concurrency = 2
		}
	}
	def := DefaultRetryPolicy()
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = def.Attempts
	}
	if o.Retry.MinTimeout <= 0 {
		o.Retry.MinTimeout = def.MinTimeout
	}
	if o.Retry.MaxTimeout <= 0 {
		o.Retry.MaxTimeout = def.MaxTimeout
	}
	if o.Retry.Factor <= 0 {
		o.Retry.Factor = def.Factor
	}
	return o
}

// ImportStatus is the terminal (or current) state of an import run
type ImportStatus string

const (
	ImportStatusRunning        ImportStatus = "running"
	ImportStatusSuccess        ImportStatus = "success"
	ImportStatusPartialFailure ImportStatus = "partial_failure"
	ImportStatusFailed         ImportStatus = "failed"
)

// ItemError records one item that could not be imported
type ItemError struct {
	ExternalID string `json:"external_id,omitempty"`
	Message    string `json:"message"`
}

// ImportResult is the structured outcome of an import run.
// Skipped always equals SkippedInvalid + SkippedExisting.
type ImportResult struct {
	RunID           string        `json:"run_id"`
	TenantID        string        `json:"tenant_id"`
	Resource        ResourceType  `json:"resource"`
	Status          ImportStatus  `json:"status"`
	DryRun          bool          `json:"dry_run"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	SkippedInvalid  int           `json:"skipped_invalid"`
	SkippedExisting int           `json:"skipped_existing"`
	Errors          int           `json:"errors"`
	ErrorDetails    []ItemError   `json:"error_details,omitempty"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`

	mu sync.Mutex
}

// NewImportResult starts a result in the running state
func NewImportResult(runID, tenantID string, resource ResourceType, dryRun bool) *ImportResult {
	return &ImportResult{
		RunID:     runID,
		TenantID:  tenantID,
		Resource:  resource,
		Status:    ImportStatusRunning,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
}

// AddImported counts a successfully imported item
func (r *ImportResult) AddImported() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Imported++
}

// AddSkippedInvalid counts an item rejected by validation
func (r *ImportResult) AddSkippedInvalid() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped++
	r.SkippedInvalid++
}

// AddSkippedExisting counts an item already present in the store
func (r *ImportResult) AddSkippedExisting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped++
	r.SkippedExisting++
}

// AddError records an item failure
func (r *ImportResult) AddError(externalID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors++
	r.ErrorDetails = append(r.ErrorDetails, ItemError{ExternalID: externalID, Message: err.Error()})
}

// Finish sets the terminal status and duration
func (r *ImportResult) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Duration = time.Since(r.StartedAt)
	switch {
	case r.Error != "" && r.Imported == 0 && r.Skipped == 0 && r.Errors == 0:
		r.Status = ImportStatusFailed
	case r.Errors > 0 || r.Error != "":
		r.Status = ImportStatusPartialFailure
	default:
		r.Status = ImportStatusSuccess
	}
}

// Fail marks a run that could not proceed
func (r *ImportResult) Fail(err error) {
	r.mu.Lock()
	r.Error = err.Error()
	r.mu.Unlock()
	r.Finish()
}

// Snapshot returns a copy safe to hand to other goroutines
func (r *ImportResult) Snapshot() *ImportResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &ImportResult{
		RunID:           r.RunID,
		TenantID:        r.TenantID,
		Resource:        r.Resource,
		Status:          r.Status,
		DryRun:          r.DryRun,
		Imported:        r.Imported,
		Skipped:         r.Skipped,
		SkippedInvalid:  r.SkippedInvalid,
		SkippedExisting: r.SkippedExisting,
		Errors:          r.Errors,
		ErrorDetails:    append([]ItemError(nil), r.ErrorDetails...),
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		Duration:        r.Duration,
	}
}
