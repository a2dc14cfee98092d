package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/angas/spotprice-go/types"
	"github.com/jackc/pgx/v5"
)

const logColumns = `id, run_id, provider_id, provider_name, status, records_collected, error_message, execution_time_ms, collection_time`

func (s *Store) SaveCollectionLog(ctx context.Context, e types.CollectionLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_log (run_id, provider_id, provider_name, status, records_collected, error_message, execution_time_ms, collection_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.RunID, e.ProviderID, e.ProviderName, string(e.Status), e.RecordsCollected, e.ErrorMessage, e.ExecutionMs, e.CollectionTime.UTC())
	if err != nil {
		return fmt.Errorf("saving collection log entry: %w", err)
	}
	return nil
}

// LatestCollectionLog returns the newest entry of a provider collected at or
// after since, or types.ErrNotFound.
func (s *Store) LatestCollectionLog(ctx context.Context, providerID int64, since time.Time) (types.CollectionLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM collection_log
		WHERE provider_id = $1 AND collection_time >= $2
		ORDER BY collection_time DESC, id DESC
		LIMIT 1`, providerID, since.UTC())
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

func (s *Store) CollectionLogs(ctx context.Context, limit int) ([]types.CollectionLogEntry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM collection_log
		ORDER BY collection_time DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching collection log entries: %w", err)
	}
	return scanLogEntries(rows)
}

func (s *Store) PurgeCollectionLog(ctx context.Context, before time.Time) (int64, error) {
	return s.purge(ctx, "collection_log", "collection_time", before)
}

func scanLogEntries(rows pgx.Rows) ([]types.CollectionLogEntry, error) {
	defer rows.Close()

	entries := make([]types.CollectionLogEntry, 0)
	for rows.Next() {
		var e types.CollectionLogEntry
		var status string
		err := rows.Scan(&e.ID, &e.RunID, &e.ProviderID, &e.ProviderName, &status, &e.RecordsCollected,
			&e.ErrorMessage, &e.ExecutionMs, &e.CollectionTime)
		if err != nil {
			return nil, fmt.Errorf("scanning collection log row: %w", err)
		}
		e.Status = types.CollectionStatus(status)
		e.CollectionTime = e.CollectionTime.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading collection log rows: %w", err)
	}
	return entries, nil
}
