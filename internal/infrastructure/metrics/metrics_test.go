package metrics

import (
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveImport(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := domain.NewImportResult("run-1", "t1", domain.ResourceCustomers, false)
	r.AddImported()
	r.AddImported()
	r.AddSkippedInvalid()
	r.Finish()
	m.ObserveImport(r)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues("t1", "customers", "imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("t1", "customers", "skipped_invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importRuns.WithLabelValues("customers", "success")))
}

func TestMetrics_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetRateLimitUtilization("t1", 0.75)
	m.SetQueueDepth(4)
	m.IncWebhook("orders/create", domain.WebhookStatusProcessed)
	m.IncJobRun("order-sync", domain.JobStateFailed)
	m.ObserveRetry(domain.ResourceOrders, time.Second)

	assert.Equal(t, 0.75, testutil.ToFloat64(m.rateLimit.WithLabelValues("t1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("orders/create", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("order-sync", "failed")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveImport(&domain.ImportResult{})
		m.IncWebhook("x", domain.WebhookStatusReceived)
		m.SetQueueDepth(1)
	})
}
