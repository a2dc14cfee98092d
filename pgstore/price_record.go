package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angas/spotprice-go/types"
	"github.com/jackc/pgx/v5"
)

const priceColumns = `id, provider_id, timestamp, start_time, end_time, price_per_kwh, price_unit, price_type,
	taxes, grid_fees, total_price, market_area, quality_rating, data_source, raw_data, created_at`

// InsertPriceRecords stores the records of one provider in a single
// transaction. Records whose interval is already stored are skipped, the
// first write wins. Returns the number of rows actually inserted.
func (s *Store) InsertPriceRecords(ctx context.Context, providerID int64, records []types.PriceRecord) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	inserted := 0
	for _, r := range records {
		var raw []byte
		if len(r.RawData) > 0 {
			raw = r.RawData
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO price_records (provider_id, timestamp, start_time, end_time, price_per_kwh, price_unit, price_type,
				taxes, grid_fees, total_price, market_area, quality_rating, data_source, raw_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (provider_id, start_time, end_time) DO NOTHING`,
			providerID, r.Timestamp.UTC(), r.StartTime.UTC(), r.EndTime.UTC(),
			r.PricePerKWh, string(r.PriceUnit), string(r.PriceType),
			r.Taxes, r.GridFees, r.TotalPrice, r.MarketArea, r.QualityRating, r.DataSource, raw, now)
		if err != nil {
			return 0, fmt.Errorf("inserting price record %s: %w", r.StartTime, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit price records: %w", err)
	}
	return inserted, nil
}

func (s *Store) PriceRecords(ctx context.Context, f types.PriceFilter) ([]types.PriceRecord, error) {
	column := string(types.FieldTimestamp)
	if f.Field == types.FieldStartTime {
		column = string(types.FieldStartTime)
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.ProviderIDs) > 0 {
		where = append(where, "provider_id = ANY("+arg(f.ProviderIDs)+")")
	}
	if !f.From.IsZero() {
		where = append(where, column+" >= "+arg(f.From.UTC()))
	}
	if !f.To.IsZero() {
		where = append(where, column+" <= "+arg(f.To.UTC()))
	}

	query := `SELECT ` + priceColumns + ` FROM price_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	order := "ASC"
	if f.Descending {
		order = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s, provider_id, end_time`, column, order)
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching price records: %w", err)
	}
	return scanPriceRecords(rows)
}

// LatestPrices returns, per provider, the record with the latest timestamp
// not after at.
func (s *Store) LatestPrices(ctx context.Context, at time.Time) ([]types.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (provider_id) `+priceColumns+`
		FROM price_records
		WHERE timestamp <= $1
		ORDER BY provider_id, timestamp DESC, end_time`, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("fetching latest prices: %w", err)
	}
	return scanPriceRecords(rows)
}

func (s *Store) PurgePriceRecords(ctx context.Context, before time.Time) (int64, error) {
	return s.purge(ctx, "price_records", "timestamp", before)
}

func scanPriceRecords(rows pgx.Rows) ([]types.PriceRecord, error) {
	defer rows.Close()

	records := make([]types.PriceRecord, 0)
	for rows.Next() {
		var r types.PriceRecord
		var unit, priceType string
		var raw []byte
		err := rows.Scan(&r.ID, &r.ProviderID, &r.Timestamp, &r.StartTime, &r.EndTime, &r.PricePerKWh, &unit, &priceType,
			&r.Taxes, &r.GridFees, &r.TotalPrice, &r.MarketArea, &r.QualityRating, &r.DataSource, &raw, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning price record row: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		r.StartTime = r.StartTime.UTC()
		r.EndTime = r.EndTime.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		r.PriceUnit = types.PriceUnit(unit)
		r.PriceType = types.PriceType(priceType)
		if len(raw) > 0 {
			r.RawData = raw
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading price record rows: %w", err)
	}
	return records, nil
}
