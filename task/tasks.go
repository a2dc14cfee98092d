package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/types"
	"github.com/robfig/cron/v3"
)

// Collector is the part of collect.Collector the scheduled jobs drive.
type Collector interface {
	CollectAll(ctx context.Context, w types.Window) (collect.RunSummary, error)
	CollectDayAhead(ctx context.Context, now time.Time) (collect.RunSummary, error)
	DefaultWindow(now time.Time) types.Window
	Sweep(ctx context.Context, now time.Time) (collect.SweepResult, error)
	Health(ctx context.Context, now time.Time) ([]collect.ProviderHealth, error)
}

type job struct {
	name     string
	schedule string
	run      func()
	id       cron.EntryID
}

type Tasks struct {
	logger       *slog.Logger
	cron         *cron.Cron
	cnfg         config.AppConfigCollection
	initialTimer *time.Timer
	mu           sync.Mutex
	jobs         []*job

	CollectTask   func()
	DayAheadTask  func()
	RetentionTask func()
	HealthTask    func()
}

// NewTasks wires the collection jobs. ctx bounds every job run, cancel it
// on shutdown to abandon in-flight fetches.
func NewTasks(ctx context.Context, logger *slog.Logger, collector Collector, cnfg config.AppConfigCollection) *Tasks {
	cl := &cronLogger{logger: logger.With(slog.String("component", "cron"))}
	t := &Tasks{
		logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		cnfg:   cnfg,

		CollectTask:   NewCollectTask(ctx, logger.With(slog.String("task", "collect")), collector),
		DayAheadTask:  NewDayAheadTask(ctx, logger.With(slog.String("task", "day_ahead")), collector),
		RetentionTask: NewRetentionTask(ctx, logger.With(slog.String("task", "retention")), collector),
		HealthTask:    NewHealthTask(ctx, logger.With(slog.String("task", "health")), collector),
	}
	t.jobs = []*job{
		{name: "collect", schedule: fmt.Sprintf("@every %s", cnfg.GetInterval()), run: t.CollectTask},
		{name: "day_ahead", schedule: cnfg.GetDayAheadRunAt(), run: t.DayAheadTask},
		{name: "retention", schedule: cnfg.GetRetentionRunAt(), run: t.RetentionTask},
		{name: "health", schedule: cnfg.GetHealthRunAt(), run: t.HealthTask},
	}
	return t
}

// Run schedules all jobs, starts the scheduler and fires the first
// collection after the configured initial delay.
func (t *Tasks) Run() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.jobs {
		id, err := t.cron.AddFunc(j.schedule, j.run)
		if err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", j.name, j.schedule, err)
		}
		j.id = id
		t.logger.Debug("job scheduled", slog.String("job", j.name), slog.String("schedule", j.schedule))
	}
	t.cron.Start()

	delay := t.cnfg.GetInitialDelay()
	t.logger.Info("scheduler started", slog.Duration("initial_collect_in", delay))
	t.initialTimer = time.AfterFunc(delay, t.CollectTask)
	return nil
}

// Stop halts the scheduler. The returned context is done when running jobs have finished.
func (t *Tasks) Stop() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialTimer != nil {
		t.initialTimer.Stop()
	}
	return t.cron.Stop()
}

type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next_run"`
	Prev     time.Time `json:"prev_run"`
}

// Status lists the scheduled jobs with their next and previous run, empty
// before Run.
func (t *Tasks) Status() []JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := make([]JobStatus, 0, len(t.jobs))
	for _, j := range t.jobs {
		if j.id == 0 {
			continue
		}
		e := t.cron.Entry(j.id)
		status = append(status, JobStatus{Name: j.name, Schedule: j.schedule, Next: e.Next, Prev: e.Prev})
	}
	slices.SortFunc(status, func(a, b JobStatus) int { return a.Next.Compare(b.Next) })
	return status
}
