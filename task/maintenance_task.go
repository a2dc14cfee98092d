package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/collect"
)

func NewRetentionTask(ctx context.Context, logger *slog.Logger, collector Collector) func() {
	return func() {
		logger.Debug("running retention task...")

		ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
		defer cancel()

		// Sweep logs the outcome of every step itself
		if _, err := collector.Sweep(ctx, time.Now()); err != nil {
			logger.Error("retention task finished with errors")
			return
		}
		logger.Info("retention task done")
	}
}

func NewHealthTask(ctx context.Context, logger *slog.Logger, collector Collector) func() {
	return func() {
		logger.Debug("running health task...")

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		health, err := collector.Health(ctx, time.Now())
		if err != nil {
			logger.Error("health task error", slog.Any("error", err))
			return
		}

		ok := 0
		for _, h := range health {
			if h.State == collect.HealthOK {
				ok++
			}
		}
		logger.Info("health task done", slog.Int("providers", len(health)), slog.Int("ok", ok))
	}
}
