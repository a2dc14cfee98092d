package pgstore

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/angas/spotprice-go/types"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s := New(slog.New(slog.DiscardHandler), mock)
	s.now = func() time.Time { return base }
	return s, mock
}

func record(start time.Time, price float64) types.PriceRecord {
	return types.PriceRecord{
		Timestamp:   start,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		PricePerKWh: price,
		PriceUnit:   types.UnitCentsPerKWh,
		PriceType:   types.PriceTypeSpot,
		TotalPrice:  price,
		DataSource:  "test",
	}
}

var priceCols = []string{"id", "provider_id", "timestamp", "start_time", "end_time", "price_per_kwh", "price_unit", "price_type",
	"taxes", "grid_fees", "total_price", "market_area", "quality_rating", "data_source", "raw_data", "created_at"}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS providers`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(t.Context()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPriceRecordsCountsInsertedRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := s.InsertPriceRecords(t.Context(), 1, []types.PriceRecord{record(base, 1), record(base.Add(time.Hour), 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPriceRecordsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.InsertPriceRecords(t.Context(), 1, []types.PriceRecord{record(base, 1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM providers WHERE is_active ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_name", "api_endpoint", "country_code", "currency", "is_active", "created_at"}).
			AddRow(int64(1), "aWATTar", "aWATTar Germany", "https://api.awattar.de/v1/marketdata", "DE", "EUR", true, base).
			AddRow(int64(3), "Tibber", "Tibber", "", "DE", "EUR", true, base))

	providers, err := s.Providers(t.Context(), true)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, int64(1), providers[0].ID)
	assert.Equal(t, "aWATTar Germany", providers[0].DisplayName)
	assert.True(t, providers[1].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderByNameNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM providers WHERE name = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.ProviderByName(t.Context(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceRecordsBuildsFilter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`provider_id = ANY\(\$1\) AND timestamp >= \$2 AND timestamp <= \$3 ORDER BY timestamp DESC, provider_id, end_time LIMIT \$4`).
		WithArgs([]int64{1, 2}, pgxmock.AnyArg(), pgxmock.AnyArg(), 5).
		WillReturnRows(pgxmock.NewRows(priceCols).
			AddRow(int64(7), int64(2), base, base, base.Add(time.Hour), 8.5, "ct/kWh", "spot",
				0.0, 0.0, 8.5, "DE-LU", "", "ENTSO-E", []byte(`{"a":1}`), base))

	records, err := s.PriceRecords(t.Context(), types.PriceFilter{
		ProviderIDs: []int64{1, 2},
		From:        base,
		To:          base.Add(24 * time.Hour),
		Descending:  true,
		Limit:       5,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ProviderID)
	assert.Equal(t, types.PriceTypeSpot, records[0].PriceType)
	assert.Equal(t, time.Hour, records[0].Duration())
	assert.JSONEq(t, `{"a":1}`, string(records[0].RawData))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCollectionLogNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM collection_log`).
		WithArgs(int64(4), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "provider_id", "provider_name", "status",
			"records_collected", "error_message", "execution_time_ms", "collection_time"}))

	_, err := s.LatestCollectionLog(t.Context(), 4, base)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCollectionLogWithoutProvider(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO collection_log`).
		WithArgs("run-1", (*int64)(nil), "ghost", "error", 0, "provider not registered", int64(0), base).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveCollectionLog(t.Context(), types.CollectionLogEntry{
		RunID:          "run-1",
		ProviderName:   "ghost",
		Status:         types.StatusError,
		ErrorMessage:   "provider not registered",
		CollectionTime: base,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgePriceRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM price_records WHERE timestamp < \$1`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.PurgePriceRecords(t.Context(), base.AddDate(0, 0, -365))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
