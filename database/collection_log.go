package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/angas/spotprice-go/types"
)

const logColumns = `id, run_id, provider_id, provider_name, status, records_collected, error_message, execution_time_ms, collection_time`

func (d *Database) SaveCollectionLog(ctx context.Context, e types.CollectionLogEntry) error {
	var providerID sql.NullInt64
	if e.ProviderID != nil {
		providerID = sql.NullInt64{Int64: *e.ProviderID, Valid: true}
	}
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO collection_log (run_id, provider_id, provider_name, status, records_collected, error_message, execution_time_ms, collection_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, providerID, e.ProviderName, string(e.Status), e.RecordsCollected, e.ErrorMessage, e.ExecutionMs, unix(e.CollectionTime))
	if err != nil {
		return fmt.Errorf("saving collection log entry: %w", err)
	}
	return nil
}

// LatestCollectionLog returns the newest entry of a provider collected at or
// after since, or types.ErrNotFound.
func (d *Database) LatestCollectionLog(ctx context.Context, providerID int64, since time.Time) (types.CollectionLogEntry, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM collection_log
		WHERE provider_id = ? AND collection_time >= ?
		ORDER BY collection_time DESC, id DESC
		LIMIT 1`, providerID, unix(since))
	if err != nil {
		return types.CollectionLogEntry{}, fmt.Errorf("fetching latest collection log: %w", err)
	}
	entries, err := scanLogEntries(rows)
	if err != nil {
		return types.CollectionLogEntry{}, err
	}
	if len(entries) == 0 {
		return types.CollectionLogEntry{}, types.ErrNotFound
	}
	return entries[0], nil
}

func (d *Database) CollectionLogs(ctx context.Context, limit int) ([]types.CollectionLogEntry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := d.read.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM collection_log
		ORDER BY collection_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching collection log entries: %w", err)
	}
	return scanLogEntries(rows)
}

func (d *Database) PurgeCollectionLog(ctx context.Context, before time.Time) (int64, error) {
	return d.purgeTable(ctx, "collection_log", "collection_time", before)
}

func scanLogEntries(rows *sql.Rows) ([]types.CollectionLogEntry, error) {
	defer rows.Close()

	entries := make([]types.CollectionLogEntry, 0)
	for rows.Next() {
		var e types.CollectionLogEntry
		var providerID sql.NullInt64
		var status string
		var collectedAt int64
		err := rows.Scan(&e.ID, &e.RunID, &providerID, &e.ProviderName, &status, &e.RecordsCollected,
			&e.ErrorMessage, &e.ExecutionMs, &collectedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning collection log row: %w", err)
		}
		if providerID.Valid {
			id := providerID.Int64
			e.ProviderID = &id
		}
		e.Status = types.CollectionStatus(status)
		e.CollectionTime = fromUnix(collectedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading collection log rows: %w", err)
	}
	return entries, nil
}
