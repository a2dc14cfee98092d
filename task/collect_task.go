package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/collect"
)

const collectTimeout = 5 * time.Minute

func NewCollectTask(ctx context.Context, logger *slog.Logger, collector Collector) func() {
	return func() {
		logger.Debug("running collect task...")

		ctx, cancel := context.WithTimeout(ctx, collectTimeout)
		defer cancel()

		summary, err := collector.CollectAll(ctx, collector.DefaultWindow(time.Now()))
		if errors.Is(err, collect.ErrAlreadyRunning) {
			logger.Info("collect task skipped, a collection is in progress")
			return
		}
		if err != nil {
			logger.Error("collect task error", slog.Any("error", err))
			return
		}

		logger.Info("collect task done",
			slog.String("run_id", summary.RunID),
			slog.Int("inserted", summary.Inserted()),
			slog.Int("failed", summary.Failed()))
	}
}

func NewDayAheadTask(ctx context.Context, logger *slog.Logger, collector Collector) func() {
	return func() {
		logger.Debug("running day-ahead task...")

		ctx, cancel := context.WithTimeout(ctx, collectTimeout)
		defer cancel()

		summary, err := collector.CollectDayAhead(ctx, time.Now())
		if errors.Is(err, collect.ErrAlreadyRunning) {
			logger.Info("day-ahead task skipped, a collection is in progress")
			return
		}
		if err != nil {
			logger.Error("day-ahead task error", slog.Any("error", err))
			return
		}

		logger.Info("day-ahead task done",
			slog.String("run_id", summary.RunID),
			slog.Int("providers", len(summary.Results)),
			slog.Int("inserted", summary.Inserted()))
	}
}
