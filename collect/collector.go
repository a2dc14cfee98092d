package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRunning = errors.New("collection already running")
	ErrPersistence    = errors.New("persisting price records failed")
)

// Store is what the collector needs from a price record store.
type Store interface {
	ProviderByName(ctx context.Context, name string) (types.Provider, error)
	Providers(ctx context.Context, activeOnly bool) ([]types.Provider, error)
	InsertPriceRecords(ctx context.Context, providerID int64, records []types.PriceRecord) (int, error)
	SaveCollectionLog(ctx context.Context, e types.CollectionLogEntry) error
	LatestCollectionLog(ctx context.Context, providerID int64, since time.Time) (types.CollectionLogEntry, error)
	PurgePriceRecords(ctx context.Context, before time.Time) (int64, error)
	PurgeCollectionLog(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	// Max concurrent adapters, 0 means one per adapter
	Workers int
	// Deadline for one adapter's whole Fetch, which may issue several requests
	FetchTimeout time.Duration
	WindowBack   time.Duration
	WindowAhead  time.Duration
	// Retention in days, 0 disables the purge
	RetentionDays       int
	LogRetentionDays    int
	BackupRetentionDays int
}

// Result is the outcome of one adapter within a run.
type Result struct {
	Provider string                 `json:"provider"`
	Status   types.CollectionStatus `json:"status"`
	Inserted int                    `json:"records_collected"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
}

type RunSummary struct {
	RunID     string       `json:"run_id"`
	Window    types.Window `json:"-"`
	StartedAt time.Time    `json:"started_at"`
	Results   []Result     `json:"results"`
}

func (s RunSummary) Inserted() int {
	n := 0
	for _, r := range s.Results {
		n += r.Inserted
	}
	return n
}

func (s RunSummary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == types.StatusError {
			n++
		}
	}
	return n
}

type Collector struct {
	logger  *slog.Logger
	store   Store
	opts    Options
	now     func() time.Time
	running atomic.Bool

	mu        sync.RWMutex
	adapters  []types.PriceAdapter
	enabled   map[string]bool
	listeners []func(RunSummary)
}

func New(logger *slog.Logger, store Store, adapters []types.PriceAdapter, opts Options) *Collector {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Minute
	}
	enabled := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		enabled[a.Provider().Name] = true
	}
	return &Collector{
		logger:   logger,
		store:    store,
		opts:     opts,
		now:      time.Now,
		adapters: adapters,
		enabled:  enabled,
	}
}

// SetEnabled switches an adapter on or off for the following runs.
func (c *Collector) SetEnabled(name string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.enabled[name]; !ok {
		return
	}
	if c.enabled[name] != enabled {
		c.logger.Info("provider toggled", slog.String("provider", name), slog.Bool("enabled", enabled))
	}
	c.enabled[name] = enabled
}

// disabled reports whether name has an adapter that is switched off.
func (c *Collector) disabled(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	on, ok := c.enabled[name]
	return ok && !on
}

// OnCollected registers fn to be called with the summary of every finished run.
func (c *Collector) OnCollected(fn func(RunSummary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Collector) Running() bool {
	return c.running.Load()
}

func (c *Collector) DefaultWindow(now time.Time) types.Window {
	return types.Window{
		Start: now.Add(-c.opts.WindowBack),
		End:   now.Add(c.opts.WindowAhead),
	}
}

// CollectAll runs every enabled adapter once for the given window.
func (c *Collector) CollectAll(ctx context.Context, w types.Window) (RunSummary, error) {
	return c.run(ctx, w, func(types.PriceAdapter) bool { return true })
}

// CollectDayAhead refreshes tomorrow's prices from the day-ahead adapters.
func (c *Collector) CollectDayAhead(ctx context.Context, now time.Time) (RunSummary, error) {
	start, end := hours.Tomorrow(now)
	return c.run(ctx, types.Window{Start: start, End: end}, func(a types.PriceAdapter) bool {
		return a.PriceType() == types.PriceTypeDayAhead
	})
}

func (c *Collector) run(ctx context.Context, w types.Window, include func(types.PriceAdapter) bool) (RunSummary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	summary := RunSummary{
		RunID:     uuid.NewString(),
		Window:    w,
		StartedAt: c.now(),
	}
	logger := c.logger.With(slog.String("run_id", summary.RunID))

	c.mu.RLock()
	var adapters []types.PriceAdapter
	for _, a := range c.adapters {
		if c.enabled[a.Provider().Name] && include(a) {
			adapters = append(adapters, a)
		}
	}
	listeners := append([]func(RunSummary){}, c.listeners...)
	c.mu.RUnlock()

	logger.Info("collection started", slog.Int("adapters", len(adapters)), slog.String("window", w.String()))

	workers := c.opts.Workers
	if workers <= 0 || workers > len(adapters) {
		workers = len(adapters)
	}

	summary.Results = make([]Result, len(adapters))
	if len(adapters) > 0 {
		// Tasks never fail, a broken adapter must not cancel its siblings
		var g errgroup.Group
		g.SetLimit(workers)
		for i, a := range adapters {
			g.Go(func() error {
				summary.Results[i] = c.collectOne(ctx, logger, summary.RunID, a, w)
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.Info("collection done",
		slog.Int("inserted", summary.Inserted()),
		slog.Int("failed", summary.Failed()),
		slog.Duration("elapsed", time.Since(summary.StartedAt)))

	for _, fn := range listeners {
		fn(summary)
	}
	return summary, nil
}

func (c *Collector) collectOne(ctx context.Context, logger *slog.Logger, runID string, a types.PriceAdapter, w types.Window) (res Result) {
	name := a.Provider().Name
	logger = logger.With(slog.String("provider", name))
	started := time.Now()

	entry := types.CollectionLogEntry{
		RunID:        runID,
		ProviderName: name,
		Status:       types.StatusError,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("adapter panicked", slog.Any("panic", r))
			entry.Status = types.StatusError
			entry.RecordsCollected = 0
			entry.ErrorMessage = fmt.Sprintf("panic: %v", r)
		}

		elapsed := time.Since(started)
		entry.ExecutionMs = elapsed.Milliseconds()
		entry.CollectionTime = c.now()

		// The log entry is written even when the run was cancelled
		if err := c.store.SaveCollectionLog(context.WithoutCancel(ctx), entry); err != nil {
			logger.Error("saving collection log failed", slog.Any("error", err))
		}

		collectionRuns.WithLabelValues(name, string(entry.Status)).Inc()
		collectionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		recordsInserted.WithLabelValues(name).Add(float64(entry.RecordsCollected))

		res = Result{
			Provider: name,
			Status:   entry.Status,
			Inserted: entry.RecordsCollected,
			Error:    entry.ErrorMessage,
			Duration: elapsed,
		}
	}()

	provider, err := c.store.ProviderByName(ctx, name)
	if errors.Is(err, types.ErrNotFound) {
		logger.Warn("provider not registered")
		entry.ErrorMessage = "provider not registered"
		return
	}
	if err != nil {
		logger.Error("looking up provider failed", slog.Any("error", err))
		entry.ErrorMessage = err.Error()
		return
	}
	entry.ProviderID = &provider.ID

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()
	raw, err := a.Fetch(fetchCtx, w)
	if err != nil {
		fetchErrors.WithLabelValues(name, apiclient.Kind(err)).Inc()
		logger.Error("fetching prices failed", slog.String("kind", apiclient.Kind(err)), slog.Any("error", err))
		entry.ErrorMessage = err.Error()
		return
	}

	records, err := a.Normalize(raw)
	if err != nil {
		logger.Error("normalizing prices failed", slog.Any("error", err))
		entry.ErrorMessage = err.Error()
		return
	}
	if len(records) == 0 {
		logger.Warn("no price records returned")
		entry.Status = types.StatusPartial
		entry.ErrorMessage = "no data returned"
		return
	}

	valid := make([]types.PriceRecord, 0, len(records))
	for _, r := range records {
		if err := types.ValidateRecord(r); err != nil {
			logger.Warn("skipping invalid price record", slog.Any("error", err))
			continue
		}
		r.ProviderID = provider.ID
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		entry.Status = types.StatusPartial
		entry.ErrorMessage = "no valid price records"
		return
	}

	inserted, err := c.store.InsertPriceRecords(ctx, provider.ID, valid)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		logger.Error("storing price records failed", slog.Any("error", err))
		entry.ErrorMessage = err.Error()
		return
	}

	logger.Info("prices collected", slog.Int("received", len(records)), slog.Int("inserted", inserted))
	entry.Status = types.StatusSuccess
	entry.RecordsCollected = inserted
	return
}
