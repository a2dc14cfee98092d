package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/angas/spotprice-go/types"
)

const priceColumns = `id, provider_id, timestamp, start_time, end_time, price_per_kwh, price_unit, price_type,
	taxes, grid_fees, total_price, market_area, quality_rating, data_source, raw_data, created_at`

// InsertPriceRecords stores the records of one provider in a single
// transaction. Records whose interval is already stored are skipped, the
// first write wins. Returns the number of rows actually inserted.
func (d *Database) InsertPriceRecords(ctx context.Context, providerID int64, records []types.PriceRecord) (int, error) {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_records (provider_id, timestamp, start_time, end_time, price_per_kwh, price_unit, price_type,
			taxes, grid_fees, total_price, market_area, quality_rating, data_source, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, start_time, end_time) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := unix(d.now())
	inserted := 0
	for _, r := range records {
		var raw sql.NullString
		if len(r.RawData) > 0 {
			raw = sql.NullString{String: string(r.RawData), Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			providerID, unix(r.Timestamp), unix(r.StartTime), unix(r.EndTime),
			r.PricePerKWh, string(r.PriceUnit), string(r.PriceType),
			r.Taxes, r.GridFees, r.TotalPrice, r.MarketArea, r.QualityRating, r.DataSource, raw, now)
		if err != nil {
			return 0, fmt.Errorf("inserting price record %s: %w", r.StartTime, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit price records: %w", err)
	}
	return inserted, nil
}

func (d *Database) PriceRecords(ctx context.Context, f types.PriceFilter) ([]types.PriceRecord, error) {
	column := string(types.FieldTimestamp)
	if f.Field == types.FieldStartTime {
		column = string(types.FieldStartTime)
	}

	var where []string
	var args []any
	if len(f.ProviderIDs) > 0 {
		where = append(where, fmt.Sprintf("provider_id IN (%s)", strings.TrimSuffix(strings.Repeat("?,", len(f.ProviderIDs)), ",")))
		for _, id := range f.ProviderIDs {
			args = append(args, id)
		}
	}
	if !f.From.IsZero() {
		where = append(where, column+" >= ?")
		args = append(args, unix(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, column+" <= ?")
		args = append(args, unix(f.To))
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
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := d.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching price records: %w", err)
	}
	return scanPriceRecords(rows)
}

// LatestPrices returns, per provider, the record with the latest timestamp
// not after at.
func (d *Database) LatestPrices(ctx context.Context, at time.Time) ([]types.PriceRecord, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT `+prefixed("p", priceColumns)+`
		FROM price_records p
		JOIN (
			SELECT provider_id, MAX(timestamp) AS ts
			FROM price_records
			WHERE timestamp <= ?
			GROUP BY provider_id
		) latest ON latest.provider_id = p.provider_id AND latest.ts = p.timestamp
		ORDER BY p.provider_id, p.end_time`, unix(at))
	if err != nil {
		return nil, fmt.Errorf("fetching latest prices: %w", err)
	}
	records, err := scanPriceRecords(rows)
	if err != nil {
		return nil, err
	}

	latest := make([]types.PriceRecord, 0, len(records))
	for _, r := range records {
		if len(latest) > 0 && latest[len(latest)-1].ProviderID == r.ProviderID {
			continue
		}
		latest = append(latest, r)
	}
	return latest, nil
}

func (d *Database) PurgePriceRecords(ctx context.Context, before time.Time) (int64, error) {
	return d.purgeTable(ctx, "price_records", "timestamp", before)
}

func scanPriceRecords(rows *sql.Rows) ([]types.PriceRecord, error) {
	defer rows.Close()

	records := make([]types.PriceRecord, 0)
	for rows.Next() {
		var r types.PriceRecord
		var ts, start, end, createdAt int64
		var unit, priceType string
		var raw sql.NullString
		err := rows.Scan(&r.ID, &r.ProviderID, &ts, &start, &end, &r.PricePerKWh, &unit, &priceType,
			&r.Taxes, &r.GridFees, &r.TotalPrice, &r.MarketArea, &r.QualityRating, &r.DataSource, &raw, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning price record row: %w", err)
		}
		r.Timestamp = fromUnix(ts)
		r.StartTime = fromUnix(start)
		r.EndTime = fromUnix(end)
		r.CreatedAt = fromUnix(createdAt)
		r.PriceUnit = types.PriceUnit(unit)
		r.PriceType = types.PriceType(priceType)
		if raw.Valid {
			r.RawData = []byte(raw.String)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading price record rows: %w", err)
	}
	return records, nil
}

func prefixed(alias string, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
