package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	db := newTestDB(t, "a")
	ctx := t.Context()
	p, err := db.ProviderByName(ctx, "a")
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Hour)

	_, err = db.InsertPriceRecords(ctx, p.ID, hourly(now.Add(-366*24*time.Hour), 1))
	require.NoError(t, err)
	_, err = db.InsertPriceRecords(ctx, p.ID, hourly(now.Add(-364*24*time.Hour), 2))
	require.NoError(t, err)
	for _, age := range []int{91, 1} {
		require.NoError(t, db.SaveCollectionLog(ctx, types.CollectionLogEntry{
			RunID: "r", ProviderID: &p.ID, ProviderName: "a", Status: types.StatusSuccess,
			CollectionTime: now.Add(-time.Duration(age) * 24 * time.Hour),
		}))
	}

	c := newCollector(db)
	res, err := c.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PricesDeleted)
	assert.Equal(t, int64(1), res.LogsDeleted)

	records, err := db.PriceRecords(ctx, types.PriceFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].PricePerKWh)
}

type purgeFailingStore struct {
	*database.Database
}

func (purgeFailingStore) PurgePriceRecords(context.Context, time.Time) (int64, error) {
	return 0, errors.New("locked")
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	db := newTestDB(t, "a")
	ctx := t.Context()
	p, err := db.ProviderByName(ctx, "a")
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, db.SaveCollectionLog(ctx, types.CollectionLogEntry{
		RunID: "r", ProviderID: &p.ID, ProviderName: "a", Status: types.StatusSuccess,
		CollectionTime: now.Add(-100 * 24 * time.Hour),
	}))

	c := newCollector(purgeFailingStore{db})
	res, err := c.Sweep(ctx, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.Equal(t, int64(1), res.LogsDeleted)
}

func TestHealth(t *testing.T) {
	db := newTestDB(t, "quiet", "failing", "fine")
	ctx := t.Context()
	require.NoError(t, db.EnsureProviders(ctx, []types.Provider{{Name: "inactive", DisplayName: "inactive", Active: false}}))
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	failing, err := db.ProviderByName(ctx, "failing")
	require.NoError(t, err)
	fine, err := db.ProviderByName(ctx, "fine")
	require.NoError(t, err)
	quiet, err := db.ProviderByName(ctx, "quiet")
	require.NoError(t, err)

	require.NoError(t, db.SaveCollectionLog(ctx, types.CollectionLogEntry{
		RunID: "r", ProviderID: &failing.ID, ProviderName: "failing", Status: types.StatusError,
		ErrorMessage: "server error", CollectionTime: now.Add(-10 * time.Minute),
	}))
	require.NoError(t, db.SaveCollectionLog(ctx, types.CollectionLogEntry{
		RunID: "r", ProviderID: &fine.ID, ProviderName: "fine", Status: types.StatusSuccess,
		RecordsCollected: 24, CollectionTime: now.Add(-10 * time.Minute),
	}))
	// older than an hour does not count
	require.NoError(t, db.SaveCollectionLog(ctx, types.CollectionLogEntry{
		RunID: "r", ProviderID: &quiet.ID, ProviderName: "quiet", Status: types.StatusSuccess,
		CollectionTime: now.Add(-2 * time.Hour),
	}))

	before, err := db.CollectionLogs(ctx, 100)
	require.NoError(t, err)

	c := newCollector(db)
	health, err := c.Health(ctx, now)
	require.NoError(t, err)
	require.Len(t, health, 3)

	states := map[string]HealthState{}
	for _, h := range health {
		states[h.Provider] = h.State
	}
	assert.Equal(t, HealthNoRecentData, states["quiet"])
	assert.Equal(t, HealthDegraded, states["failing"])
	assert.Equal(t, HealthOK, states["fine"])

	after, err := db.CollectionLogs(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, before, after, "health check is read-only")
}

func TestHealthSkipsDisabledProviders(t *testing.T) {
	db := newTestDB(t, "on", "off")
	c := newCollector(db, &fakeAdapter{name: "on"}, &fakeAdapter{name: "off"})
	c.SetEnabled("off", false)

	health, err := c.Health(t.Context(), time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, "on", health[0].Provider)
	assert.Equal(t, HealthNoRecentData, health[0].State)

	c.SetEnabled("off", true)
	health, err = c.Health(t.Context(), time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, health, 2)
}
