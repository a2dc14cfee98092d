package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/awattar"
	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/elprisetjustnu"
	"github.com/angas/spotprice-go/entsoe"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/logging"
	"github.com/angas/spotprice-go/nordpool"
	"github.com/angas/spotprice-go/pgstore"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/slice"
	"github.com/angas/spotprice-go/tibber"
	"github.com/angas/spotprice-go/types"
	"github.com/lmittmann/tint"
)

// store is what both the SQLite and the PostgreSQL backend provide.
type store interface {
	collect.Store
	query.Store
	EnsureProviders(ctx context.Context, providers []types.Provider) error
	Close()
}

var (
	_ store = (*database.Database)(nil)
	_ store = (*pgstore.Store)(nil)
)

type app struct {
	cnfg      *config.AppConfig
	logger    *slog.Logger
	logFile   *os.File
	store     store
	collector *collect.Collector
	engine    *query.Engine
}

func newLogger(cnfg config.AppConfigLogging) (*slog.Logger, *os.File, error) {
	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	if cnfg.File == nil || *cnfg.File == "" {
		return slog.New(consoleHandler), nil, nil
	}

	fileHandler, f, err := logging.NewFileHandler(*cnfg.File, cnfg.GetFileLevel())
	if err != nil {
		return nil, nil, err
	}
	return slog.New(logging.NewMultiHandler(consoleHandler, fileHandler)), f, nil
}

func openStore(ctx context.Context, logger *slog.Logger, cnfg config.AppConfigDatabase) (store, error) {
	logger = logger.With(slog.String("module", "database"))
	switch cnfg.GetDriver() {
	case "sqlite":
		return database.New(ctx, logger, cnfg.Path)
	case "postgres":
		return pgstore.Open(ctx, logger, cnfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cnfg.GetDriver())
	}
}

// newAdapters builds every provider adapter. Which of them take part in a
// run is decided by the enabled flags, see config.AppConfigProviders.Enabled.
func newAdapters(cnfg *config.AppConfig) []types.PriceAdapter {
	opts := apiclient.Options{
		Timeout:           cnfg.Http.GetTimeout(),
		RequestsPerSecond: cnfg.Http.GetRequestsPerSecond(),
	}
	p := cnfg.Providers
	return []types.PriceAdapter{
		entsoe.New(p.Entsoe, apiclient.New(entsoe.Name, opts)),
		awattar.New(p.Awattar, apiclient.New(awattar.Name, opts)),
		tibber.New(p.Tibber, apiclient.New(tibber.Name, opts)),
		nordpool.New(p.Nordpool, apiclient.New(nordpool.Name, opts)),
		elprisetjustnu.New(p.ElprisetJustNu, apiclient.New(elprisetjustnu.Name, opts)),
	}
}

// newApp loads the configuration and opens everything a command needs.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := hours.SetTimezone(cnfg.GetTimezone()); err != nil {
		return nil, fmt.Errorf("failed to set timezone: %w", err)
	}

	logger, logFile, err := newLogger(cnfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)
	logger.Debug("spotprice is starting...", slog.String("version", Version))

	st, err := openStore(ctx, logger, cnfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	adapters := newAdapters(cnfg)
	enabled := cnfg.Providers.Enabled()
	providers := slice.Map(adapters, func(a types.PriceAdapter) types.Provider {
		p := a.Provider()
		p.Active = enabled[p.Name]
		return p
	})
	if err := st.EnsureProviders(ctx, providers); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	collector := collect.New(logger.With(slog.String("module", "collect")), st, adapters, collect.Options{
		Workers:             cnfg.Collection.Workers,
		FetchTimeout:        cnfg.Collection.GetFetchTimeout(),
		WindowBack:          cnfg.Collection.GetWindowBack(),
		WindowAhead:         cnfg.Collection.GetWindowAhead(),
		RetentionDays:       cnfg.Database.GetRetentionDays(),
		LogRetentionDays:    cnfg.Database.GetLogRetentionDays(),
		BackupRetentionDays: cnfg.Database.GetBackupRetentionDays(),
	})
	applyEnabled(collector, enabled)

	return &app{
		cnfg:      cnfg,
		logger:    logger,
		logFile:   logFile,
		store:     st,
		collector: collector,
		engine:    query.New(logger.With(slog.String("module", "query")), st),
	}, nil
}

func applyEnabled(collector *collect.Collector, enabled map[string]bool) {
	for name, on := range enabled {
		collector.SetEnabled(name, on)
	}
}

func (a *app) Close() {
	a.store.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
}
