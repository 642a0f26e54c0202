package ports

import (
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// Metrics receives pipeline observations
type Metrics interface {
	ObserveImport(result *domain.ImportResult)
	IncWebhook(topic string, status domain.WebhookStatus)
	IncJobRun(job string, state domain.JobState)
	SetRateLimitUtilization(tenantID string, utilization float64)
	SetQueueDepth(depth int64)
	ObserveRetry(resource domain.ResourceType, delay time.Duration)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) ObserveImport(*domain.ImportResult)              {}
func (NopMetrics) IncWebhook(string, domain.WebhookStatus)         {}
func (NopMetrics) IncJobRun(string, domain.JobState)               {}
func (NopMetrics) SetRateLimitUtilization(string, float64)         {}
func (NopMetrics) SetQueueDepth(int64)                             {}
func (NopMetrics) ObserveRetry(domain.ResourceType, time.Duration) {}
