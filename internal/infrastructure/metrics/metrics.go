// Package metrics exposes pipeline counters through Prometheus.
package metrics

import (
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopify_ingestion"

// Metrics implements ports.Metrics
type Metrics struct {
	records        *prometheus.CounterVec
	importRuns     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	webhooks       *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	rateLimit      *prometheus.GaugeVec
	queueDepth     prometheus.Gauge
	retries        *prometheus.HistogramVec
}

var _ ports.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by import runs, by outcome.",
		}, []string{"tenant", "resource", "outcome"}),
		importRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Import runs by terminal status.",
		}, []string{"resource", "status"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Import run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"resource"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook events by topic and status.",
		}, []string{"topic", "status"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job name and outcome.",
		}, []string{"job", "state"}),
		rateLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_utilization",
			Help:      "Last reported callsMade/bucketSize per tenant.",
		}, []string{"tenant"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "webhook_queue_depth",
			Help:      "Webhook events waiting to be processed.",
		}),
		retries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_retry_delay_seconds",
			Help:      "Backoff delays applied to failed writes.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 4, 8, 16},
		}, []string{"resource"}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.importRuns, m.importDuration, m.webhooks, m.jobRuns, m.rateLimit, m.queueDepth, m.retries)
	}
	return m
}

// ObserveImport records the totals of a finished run
func (m *Metrics) ObserveImport(r *domain.ImportResult) {
	if m == nil || r == nil {
		return
	}
	res := string(r.Resource)
	m.records.WithLabelValues(r.TenantID, res, "imported").Add(float64(r.Imported))
	m.records.WithLabelValues(r.TenantID, res, "skipped_invalid").Add(float64(r.SkippedInvalid))
	m.records.WithLabelValues(r.TenantID, res, "skipped_existing").Add(float64(r.SkippedExisting))
	m.records.WithLabelValues(r.TenantID, res, "error").Add(float64(r.Errors))
	m.importRuns.WithLabelValues(res, string(r.Status)).Inc()
	m.importDuration.WithLabelValues(res).Observe(r.Duration.Seconds())
}

func (m *Metrics) IncWebhook(topic string, status domain.WebhookStatus) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(topic, string(status)).Inc()
}

func (m *Metrics) IncJobRun(job string, state domain.JobState) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, string(state)).Inc()
}

func (m *Metrics) SetRateLimitUtilization(tenantID string, utilization float64) {
	if m == nil {
		return
	}
	m.rateLimit.WithLabelValues(tenantID).Set(utilization)
}

// SetQueueDepth records the pending webhook count
func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) ObserveRetry(resource domain.ResourceType, delay time.Duration) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(resource)).Observe(delay.Seconds())
}
