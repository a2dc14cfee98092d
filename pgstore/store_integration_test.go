//go:build integration

package pgstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/angas/spotprice-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("spotprice"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("could not stop postgres container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, slog.New(slog.DiscardHandler), dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStoreAgainstPostgres(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	// migrating twice is a no-op
	require.NoError(t, s.Migrate(ctx))

	require.NoError(t, s.EnsureProviders(ctx, []types.Provider{
		{Name: "aWATTar", DisplayName: "aWATTar Germany", CountryCode: "DE", Currency: "EUR", Active: true},
	}))
	p, err := s.ProviderByName(ctx, "aWATTar")
	require.NoError(t, err)

	start := time.Now().UTC().Truncate(time.Hour)
	records := []types.PriceRecord{record(start, 10), record(start.Add(time.Hour), 12)}
	records[0].RawData = []byte(`{"marketprice":100}`)

	n, err := s.InsertPriceRecords(ctx, p.ID, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.InsertPriceRecords(ctx, p.ID, records)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	latest, err := s.LatestPrices(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 10.0, latest[0].PricePerKWh)
	assert.JSONEq(t, `{"marketprice":100}`, string(latest[0].RawData))

	require.NoError(t, s.SaveCollectionLog(ctx, types.CollectionLogEntry{
		RunID: "run-1", ProviderID: &p.ID, ProviderName: p.Name, Status: types.StatusSuccess,
		RecordsCollected: 2, ExecutionMs: 40, CollectionTime: time.Now(),
	}))
	entry, err := s.LatestCollectionLog(ctx, p.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, entry.Status)
	require.NotNil(t, entry.ProviderID)
	assert.Equal(t, p.ID, *entry.ProviderID)

	deleted, err := s.PurgePriceRecords(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
