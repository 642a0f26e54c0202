package main

import (
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/config"
	"archie-core-shopify-ingestion/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "import"}, names)
}

func TestImportCommand_RejectsUnknownResource(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"import", "--tenant", "t1", "--resource", "refunds"})
	err := root.Execute()
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
}

func TestImportFlags_Options(t *testing.T) {
	defaults := domain.ImportOptions{BatchSize: 50, Retry: domain.DefaultRetryPolicy()}
	f := importFlags{dryRun: true, financialStatus: "paid", concurrency: 2, updatedSince: time.Hour}

	opts := f.options(defaults)
	assert.True(t, opts.DryRun)
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, "paid", opts.FinancialStatus)
	require.NotNil(t, opts.UpdatedAtMin)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), *opts.UpdatedAtMin, time.Minute)
}

func TestNewLogger_Level(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, newLogger(config.LogConfig{Level: "warn", Format: "json"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(config.LogConfig{Level: "bogus"}).GetLevel())
}

func TestIngestionConfig_FromConfig(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "passphrase")
	t.Setenv("CRON_ORDER_SYNC", "*/5 * * * *")
	t.Setenv("WEBHOOK_ADDRESS", "https://ingest.example.com/webhooks/shopify")
	cfg, err := config.Load()
	require.NoError(t, err)

	ic := ingestionConfig(cfg)
	assert.Equal(t, "*/5 * * * *", ic.OrderSyncCron)
	assert.Equal(t, "https://ingest.example.com/webhooks/shopify", ic.WebhookAddress)
	assert.Contains(t, ic.WebhookTopics, "app/uninstalled")
	assert.Equal(t, 3, ic.ImportDefaults.Retry.Attempts)
}
