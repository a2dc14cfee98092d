package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/publish"
	"github.com/angas/spotprice-go/task"
	"github.com/angas/spotprice-go/www"
	"github.com/spf13/cobra"
)

var Version = "?.?.?"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		exitWithError(slog.Default(), err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the collection scheduler and the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	root := &cobra.Command{
		Use:           "spotprice",
		Short:         "Collects electricity spot prices and serves them over HTTP",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default config/config.yaml)")

	root.AddCommand(serve,
		&cobra.Command{
			Use:   "collect",
			Short: "Collect prices from all enabled providers once and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCollect(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Purge expired data and back up the database once",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSweep(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "health",
			Short: "Print the collection health of every active provider",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runHealth(cmd.Context(), configPath)
			},
		},
	)
	return root
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	config.Watch(logger.With(slog.String("module", "config")), func(c *config.AppConfig) {
		applyEnabled(a.collector, c.Providers.Enabled())
	})

	tasks := task.NewTasks(ctx, logger.With(slog.String("module", "task")), a.collector, a.cnfg.Collection)
	server := www.NewServer(ctx, logger, a.cnfg.Api, a.engine, a.collector, tasks)
	a.collector.OnCollected(server.PublishCurrent)

	if a.cnfg.Mqtt.Enabled {
		publisher := publish.New(logger.With(slog.String("module", "mqtt")), a.cnfg.Mqtt, a.engine)
		if err := publisher.Connect(); err != nil {
			return fmt.Errorf("mqtt connection error: %w", err)
		}
		defer publisher.Disconnect()

		a.collector.OnCollected(func(collect.RunSummary) {
			pubCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := publisher.PublishCurrent(pubCtx); err != nil {
				logger.Warn("failed to publish current prices", slog.Any("error", err))
			}
		})
	}

	if err := tasks.Run(); err != nil {
		return fmt.Errorf("failed to schedule tasks: %w", err)
	}
	defer func() {
		logger.Info("waiting for running jobs...")
		<-tasks.Stop().Done()
	}()

	err = server.Run(ctx)
	logger.Info("application is shutting down...")
	return err
}

func runCollect(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.collector.CollectAll(ctx, a.collector.DefaultWindow(time.Now()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATUS\tINSERTED\tDURATION\tERROR")
	for _, r := range summary.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Provider, r.Status, r.Inserted, r.Duration.Round(time.Millisecond), r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d providers failed", failed, len(summary.Results))
	}
	return nil
}

func runSweep(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.collector.Sweep(ctx, time.Now())
	fmt.Printf("deleted %d price records and %d log entries\n", result.PricesDeleted, result.LogsDeleted)
	return err
}

func runHealth(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	health, err := a.collector.Health(ctx, time.Now())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATE\tLAST COLLECTION\tRECORDS\tERROR")
	unhealthy := 0
	for _, h := range health {
		last := "-"
		if h.LastCollection != nil {
			last = h.LastCollection.Local().Format(time.RFC3339)
		}
		if h.State != collect.HealthOK {
			unhealthy++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", h.DisplayName, h.State, last, h.RecordsCollected, h.ErrorMessage)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if unhealthy > 0 {
		return errors.New("not all providers are healthy")
	}
	return nil
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}
	os.Exit(1)
}
