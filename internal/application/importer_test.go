package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/repository"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantA = "tenant-a"

func newTestImporter(store ports.RecordStore, encrypt transformer.EncryptFunc) (*Importer, *sleepRecorder) {
	imp := NewImporter(store, transformer.New(encrypt), nil, zerolog.Nop())
	rec := &sleepRecorder{}
	imp.sleep = rec.sleep
	return imp, rec
}

func threeCustomers(client *fakeClient) {
	client.addPage(domain.ResourceCustomers,
		`{"id":1,"email":"one@example.com","total_spent":"10.00"}`,
		`{"id":2,"first_name":"No Email"}`,
		`{"id":3,"email":"three@example.com"}`,
	)
}

func TestImport_SkipsInvalidThenSkipsExisting(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	imp, _ := newTestImporter(store, nil)
	client := newFakeClient()
	threeCustomers(client)

	first, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, 1, first.SkippedInvalid)
	assert.Equal(t, 0, first.Errors)
	assert.Equal(t, domain.ImportStatusSuccess, first.Status)
	assert.Equal(t, 2, store.Count(domain.ResourceCustomers, tenantA))

	second, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 2, second.SkippedExisting)
	assert.Equal(t, 1, second.SkippedInvalid)
	assert.Equal(t, 0, second.Errors)
}

func TestImport_IsolatesItemFailure(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	encrypt := func(s string) (string, error) {
		if strings.HasPrefix(s, "three@") {
			return "", errors.New("kms unavailable")
		}
		return "enc:" + s, nil
	}
	imp, _ := newTestImporter(store, encrypt)
	client := newFakeClient()
	client.addPage(domain.ResourceCustomers,
		`{"id":1,"email":"one@example.com"}`,
		`{"id":2,"email":"two@example.com"}`,
		`{"id":3,"email":"three@example.com"}`,
		`{"id":4,"email":"four@example.com"}`,
	)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, domain.ImportStatusPartialFailure, result.Status)
	require.Len(t, result.ErrorDetails, 1)
	assert.Equal(t, "3", result.ErrorDetails[0].ExternalID)
	assert.Contains(t, result.ErrorDetails[0].Message, "kms unavailable")
	assert.Nil(t, store.Customer(tenantA, "3"))
	assert.NotNil(t, store.Customer(tenantA, "4"))
}

func TestImport_RetriesPersistenceWithBackoff(t *testing.T) {
	store := &flakyStore{RecordStore: repository.NewMemoryRecordStore(), failures: 2}
	imp, sleeps := newTestImporter(store, nil)
	client := newFakeClient()
	client.addPage(domain.ResourceCustomers, `{"id":1,"email":"one@example.com"}`)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.recorded())
}

func TestImport_RecordsErrorAfterRetriesExhausted(t *testing.T) {
	store := &flakyStore{RecordStore: repository.NewMemoryRecordStore(), failures: -1}
	imp, sleeps := newTestImporter(store, nil)
	client := newFakeClient()
	client.addPage(domain.ResourceCustomers, `{"id":1,"email":"one@example.com"}`, `{"id":2,"email":"two@example.com"}`)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Errors)
	assert.Equal(t, 6, store.calls)
	assert.Len(t, sleeps.recorded(), 4)
	assert.Contains(t, result.ErrorDetails[0].Message, "connection reset")
}

func TestImport_ValidationFailureIsNotRetried(t *testing.T) {
	store := &flakyStore{RecordStore: repository.NewMemoryRecordStore()}
	imp, sleeps := newTestImporter(store, nil)
	client := newFakeClient()
	client.addPage(domain.ResourceCustomers, `{"id":1,"email":"not-an-email"}`)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedInvalid)
	assert.Equal(t, 0, store.calls)
	assert.Empty(t, sleeps.recorded())
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	imp, _ := newTestImporter(store, nil)
	client := newFakeClient()
	threeCustomers(client)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.SkippedInvalid)
	assert.Equal(t, 0, store.Count(domain.ResourceCustomers, tenantA))
}

func TestImport_SleepsWhileThrottled(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	imp, sleeps := newTestImporter(store, nil)
	client := newFakeClient()
	client.throttled.Store(true)
	client.wait = 3 * time.Second
	client.addPage(domain.ResourceCustomers,
		`{"id":1,"email":"one@example.com"}`,
		`{"id":2,"email":"two@example.com"}`,
		`{"id":3,"email":"three@example.com"}`,
	)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceCustomers, domain.ImportOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeps.recorded(), "one pause per sub-batch")
}

func TestImport_OrdersPersistChildren(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	imp, _ := newTestImporter(store, nil)
	client := newFakeClient()
	client.addPage(domain.ResourceOrders, `{
		"id": 1001,
		"total_price": "30.00",
		"fulfillment_status": "fulfilled",
		"customer": {"id": 1},
		"line_items": [
			{"id": 1, "product_id": 7, "quantity": 1, "price": "10.00"},
			{"id": 2, "product_id": 8, "quantity": 2, "price": "10.00"}
		]
	}`)

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceOrders, domain.ImportOptions{FinancialStatus: "paid"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	order, items, events := store.Order(tenantA, "1001")
	require.NotNil(t, order)
	assert.Equal(t, 2, order.LineItemCount)
	assert.Len(t, items, 2)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OrderEventFulfilled, events[0].Kind)

	params := client.params[domain.ResourceOrders]
	assert.Equal(t, "any", params.Get("status"))
	assert.Equal(t, "paid", params.Get("financial_status"))
}

func TestImport_FetchErrorReportsFailure(t *testing.T) {
	imp, _ := newTestImporter(repository.NewMemoryRecordStore(), nil)
	client := newFakeClient()
	client.fetchErrs[domain.ResourceProducts] = errors.New("502 bad gateway")

	result, err := imp.Import(context.Background(), client, tenantA, domain.ResourceProducts, domain.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusFailed, result.Status)
	assert.Contains(t, result.Error, "502 bad gateway")
}

func TestImport_UnknownResource(t *testing.T) {
	imp, _ := newTestImporter(repository.NewMemoryRecordStore(), nil)
	_, err := imp.Import(context.Background(), newFakeClient(), tenantA, domain.ResourceAll, domain.ImportOptions{})
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
}

func TestImportAll_ContinuesAfterResourceFailure(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	imp, _ := newTestImporter(store, nil)
	client := newFakeClient()
	client.fetchErrs[domain.ResourceCustomers] = errors.New("timeout")
	client.addPage(domain.ResourceProducts, `{"id":5,"title":"Mug","variants":[{"id":1,"price":"9.50","inventory_quantity":4}]}`)

	results := imp.ImportAll(context.Background(), client, tenantA, domain.ImportOptions{})
	require.Len(t, results, 3)
	assert.Equal(t, domain.ResourceCustomers, results[0].Resource)
	assert.Equal(t, domain.ImportStatusFailed, results[0].Status)
	assert.Equal(t, domain.ResourceProducts, results[1].Resource)
	assert.Equal(t, 1, results[1].Imported)
	assert.Equal(t, domain.ResourceOrders, results[2].Resource)
	assert.Equal(t, domain.ImportStatusSuccess, results[2].Status)
	assert.NotNil(t, store.Product(tenantA, "5"))
}

func TestFetchParams(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	params := FetchParams(domain.ResourceCustomers, domain.ImportOptions{UpdatedAtMin: &since, FinancialStatus: "paid"})
	assert.Equal(t, "2024-03-01T11:00:00Z", params.Get("updated_at_min"))
	assert.Empty(t, params.Get("status"))
	assert.Empty(t, params.Get("financial_status"))
}
