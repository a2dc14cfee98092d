package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/task"
	"github.com/angas/spotprice-go/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the part of collect.Collector the API can trigger.
type Collector interface {
	CollectAll(ctx context.Context, w types.Window) (collect.RunSummary, error)
	DefaultWindow(now time.Time) types.Window
	Running() bool
}

// Scheduler reports the scheduled jobs, task.Tasks implements it.
type Scheduler interface {
	Status() []task.JobStatus
}

type Server struct {
	logger    *slog.Logger
	config    config.AppConfigApi
	engine    *query.Engine
	collector Collector
	scheduler Scheduler
	hub       *Hub
	router    chi.Router
	baseCtx   context.Context
}

// NewServer builds the API. ctx bounds background work started by requests,
// such as triggered collections.
func NewServer(ctx context.Context, logger *slog.Logger, cnfg config.AppConfigApi, engine *query.Engine, collector Collector, scheduler Scheduler) *Server {
	logger = logger.With(slog.String("module", "www"))
	s := &Server{
		logger:    logger,
		config:    cnfg,
		engine:    engine,
		collector: collector,
		scheduler: scheduler,
		hub:       NewHub(logger.With(slog.String("component", "hub"))),
		baseCtx:   ctx,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequest)
	r.Use(middleware.Recoverer)

	r.Get("/health", NewLivenessHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", NewWebSocketHandler(logger.With(slog.String("handler", "ws")), s.hub))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", NewProvidersHandler(logger.With(slog.String("handler", "providers")), engine))
		r.Get("/providers/{id}", NewProviderHandler(logger.With(slog.String("handler", "provider")), engine))

		r.Get("/prices", NewPriceRangeHandler(logger.With(slog.String("handler", "prices")), engine))
		r.Get("/prices/current", NewCurrentPricesHandler(logger.With(slog.String("handler", "current_prices")), engine))
		r.Get("/prices/forecast", NewForecastHandler(logger.With(slog.String("handler", "forecast")), engine))
		r.Get("/prices/cheapest", NewCheapestHandler(logger.With(slog.String("handler", "cheapest")), engine))

		r.Get("/charts/price-comparison", NewComparisonHandler(logger.With(slog.String("handler", "price_comparison")), engine))
		r.Get("/stats/daily-average", NewDailyStatsHandler(logger.With(slog.String("handler", "daily_stats")), engine))

		r.Get("/health/data-collection", NewCollectionStatusHandler(logger.With(slog.String("handler", "data_collection")), engine))
		r.Post("/collect", NewCollectHandler(logger.With(slog.String("handler", "collect")), collector, ctx))
		r.Get("/scheduler/status", NewSchedulerStatusHandler(scheduler))
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
			slog.String("remoteAddr", r.RemoteAddr),
			slog.String("requestId", middleware.GetReqID(r.Context())),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

// PublishCurrent pushes the current price snapshot to all websocket
// clients. It is registered as a collection listener.
func (s *Server) PublishCurrent(summary collect.RunSummary) {
	ctx, cancel := context.WithTimeout(s.baseCtx, 10*time.Second)
	defer cancel()

	prices, err := s.engine.Current(ctx)
	if err != nil {
		s.logger.Warn("failed to get current prices", slog.Any("error", err))
		return
	}
	msg, err := newMessage(messagePrices, summary.RunID, prices)
	if err != nil {
		s.logger.Error("failed to encode websocket message", slog.Any("error", err))
		return
	}
	s.hub.Publish(msg)
}

// Run serves the API until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Address, fmt.Sprintf("%d", s.config.Port))
	s.logger.Info("starting server...", slog.String("address", addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
		return nil
	}
}
