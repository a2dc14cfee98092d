package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/types"
)

type SweepResult struct {
	PricesDeleted int64 `json:"prices_deleted"`
	LogsDeleted   int64 `json:"logs_deleted"`
}

// backupStore is implemented by stores that keep file backups (SQLite).
type backupStore interface {
	Backup(ctx context.Context) error
	PurgeBackups(ctx context.Context, retentionDays int) error
}

// Sweep deletes price records and log entries past their retention horizon.
// Every step runs on its own, a failing step does not stop the others.
func (c *Collector) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	logger := c.logger.With(slog.String("job", "sweep"))
	var res SweepResult
	var errs []error

	if c.opts.RetentionDays > 0 {
		n, err := c.store.PurgePriceRecords(ctx, daysBefore(now, c.opts.RetentionDays))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge price records: %w", err))
		}
		res.PricesDeleted = n
	}

	if c.opts.LogRetentionDays > 0 {
		n, err := c.store.PurgeCollectionLog(ctx, daysBefore(now, c.opts.LogRetentionDays))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge collection log: %w", err))
		}
		res.LogsDeleted = n
	}

	if b, ok := c.store.(backupStore); ok {
		if err := b.Backup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("backup: %w", err))
		}
		if err := b.PurgeBackups(ctx, c.opts.BackupRetentionDays); err != nil {
			errs = append(errs, fmt.Errorf("purge backups: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("sweep finished with errors", slog.Any("error", err))
	} else {
		logger.Info("sweep done", slog.Int64("prices_deleted", res.PricesDeleted), slog.Int64("logs_deleted", res.LogsDeleted))
	}
	return res, err
}

func daysBefore(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

type HealthState string

const (
	HealthOK           HealthState = "ok"
	HealthDegraded     HealthState = "degraded"
	HealthNoRecentData HealthState = "no_recent_data"
)

type ProviderHealth struct {
	ProviderID  int64       `json:"provider_id"`
	Provider    string      `json:"provider"`
	DisplayName string      `json:"display_name"`
	State       HealthState `json:"state"`

	// nil when there is no recent log entry
	LastCollection   *time.Time `json:"last_collection,omitempty"`
	RecordsCollected int        `json:"records_collected"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// Health inspects the last hour of collection logs of every active provider.
// It never writes to the store.
func (c *Collector) Health(ctx context.Context, now time.Time) ([]ProviderHealth, error) {
	logger := c.logger.With(slog.String("job", "health"))

	providers, err := c.store.Providers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	result := make([]ProviderHealth, 0, len(providers))
	for _, p := range providers {
		if c.disabled(p.Name) {
			continue
		}
		h := ProviderHealth{ProviderID: p.ID, Provider: p.Name, DisplayName: p.DisplayName}

		entry, err := c.store.LatestCollectionLog(ctx, p.ID, now.Add(-time.Hour))
		switch {
		case errors.Is(err, types.ErrNotFound):
			h.State = HealthNoRecentData
			logger.Warn("no recent data", slog.String("provider", p.DisplayName))
		case err != nil:
			return nil, fmt.Errorf("health check %s: %w", p.Name, err)
		case entry.Status == types.StatusError:
			h.State = HealthDegraded
			logger.Warn("collection errors", slog.String("provider", p.DisplayName), slog.String("error", entry.ErrorMessage))
		default:
			h.State = HealthOK
			logger.Debug("provider ok", slog.String("provider", p.DisplayName), slog.Int("records", entry.RecordsCollected))
		}
		if err == nil {
			h.LastCollection = &entry.CollectionTime
			h.RecordsCollected = entry.RecordsCollected
			h.ErrorMessage = entry.ErrorMessage
		}
		result = append(result, h)
	}
	return result, nil
}
