package www

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/task"
)

func NewCollectionStatusHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := engine.CollectionStatus(r.Context())
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

type collectResponse struct {
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// NewCollectHandler starts a collection of the default window in the
// background. The run outlives the request and is bounded by ctx.
func NewCollectHandler(logger *slog.Logger, collector Collector, ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if collector.Running() {
			writeJSON(w, http.StatusConflict, errorResponse{Error: collect.ErrAlreadyRunning.Error()})
			return
		}

		window := collector.DefaultWindow(time.Now())
		go func() {
			summary, err := collector.CollectAll(ctx, window)
			if errors.Is(err, collect.ErrAlreadyRunning) {
				logger.Info("triggered collection skipped, a collection is in progress")
				return
			}
			if err != nil {
				logger.Error("triggered collection failed", slog.Any("error", err))
				return
			}
			logger.Info("triggered collection done",
				slog.String("run_id", summary.RunID),
				slog.Int("inserted", summary.Inserted()),
				slog.Int("failed", summary.Failed()))
		}()

		writeJSON(w, http.StatusAccepted, collectResponse{Status: "accepted", StartTime: window.Start, EndTime: window.End})
	}
}

func NewSchedulerStatusHandler(scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs := []task.JobStatus{}
		if scheduler != nil {
			jobs = scheduler.Status()
		}
		writeJSON(w, http.StatusOK, map[string]any{"running": len(jobs) > 0, "jobs": jobs})
	}
}
