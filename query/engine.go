package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/slice"
	"github.com/angas/spotprice-go/types"
)

var (
	ErrNotFound        = types.ErrNotFound
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	defaultRangeLimit = 100
	maxRangeLimit     = 1000
	defaultHours      = 24
	maxHours          = 72
	defaultDays       = 30
	maxDays           = 365
	statusLogLimit    = 10
)

// Store is the read side of a price record store.
type Store interface {
	Providers(ctx context.Context, activeOnly bool) ([]types.Provider, error)
	Provider(ctx context.Context, id int64) (types.Provider, error)
	PriceRecords(ctx context.Context, f types.PriceFilter) ([]types.PriceRecord, error)
	LatestPrices(ctx context.Context, at time.Time) ([]types.PriceRecord, error)
	CollectionLogs(ctx context.Context, limit int) ([]types.CollectionLogEntry, error)
}

// Engine answers the analytical queries of the API. It only reads.
type Engine struct {
	logger *slog.Logger
	store  Store
	now    func() time.Time
}

func New(logger *slog.Logger, store Store) *Engine {
	return &Engine{logger: logger, store: store, now: time.Now}
}

func (e *Engine) Providers(ctx context.Context, activeOnly bool) ([]types.Provider, error) {
	return e.store.Providers(ctx, activeOnly)
}

func (e *Engine) Provider(ctx context.Context, id int64) (types.Provider, error) {
	p, err := e.store.Provider(ctx, id)
	if err != nil {
		return types.Provider{}, fmt.Errorf("provider %d: %w", id, err)
	}
	return p, nil
}

type CurrentPrice struct {
	ProviderID   int64           `json:"provider_id"`
	Provider     string          `json:"provider"`
	ProviderName string          `json:"provider_name"`
	CurrentPrice float64         `json:"current_price"`
	TotalPrice   float64         `json:"total_price"`
	PriceUnit    types.PriceUnit `json:"price_unit"`
	PriceType    types.PriceType `json:"price_type"`
	MarketArea   string          `json:"market_area,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
}

// Current returns every provider's most recent price at or before now.
func (e *Engine) Current(ctx context.Context) ([]CurrentPrice, error) {
	records, err := e.store.LatestPrices(ctx, e.now())
	if err != nil {
		return nil, err
	}
	providers, err := e.providerIndex(ctx)
	if err != nil {
		return nil, err
	}

	prices := make([]CurrentPrice, len(records))
	for i, r := range records {
		prices[i] = CurrentPrice{
			ProviderID:   r.ProviderID,
			Provider:     providers[r.ProviderID].Name,
			ProviderName: providers[r.ProviderID].DisplayName,
			CurrentPrice: r.PricePerKWh,
			TotalPrice:   r.TotalPrice,
			PriceUnit:    r.PriceUnit,
			PriceType:    r.PriceType,
			MarketArea:   r.MarketArea,
			Timestamp:    r.Timestamp,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
		}
	}
	return prices, nil
}

type RangeParams struct {
	ProviderIDs []int64
	Start       time.Time
	End         time.Time
	Limit       int
}

type RangeResult struct {
	Prices    []types.PriceRecord `json:"prices"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Summary
}

// Range returns the newest records within [Start, End], the trailing 24 hours
// by default, together with statistics over exactly the returned records.
func (e *Engine) Range(ctx context.Context, p RangeParams) (RangeResult, error) {
	now := e.now()
	if p.End.IsZero() {
		p.End = now
	}
	if p.Start.IsZero() {
		p.Start = p.End.Add(-defaultHours * time.Hour)
	}
	if p.End.Before(p.Start) {
		return RangeResult{}, fmt.Errorf("%w: end before start", ErrInvalidArgument)
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultRangeLimit
	case p.Limit > maxRangeLimit:
		p.Limit = maxRangeLimit
	}

	records, err := e.store.PriceRecords(ctx, types.PriceFilter{
		ProviderIDs: p.ProviderIDs,
		Field:       types.FieldTimestamp,
		From:        p.Start,
		To:          p.End,
		Descending:  true,
		Limit:       p.Limit,
	})
	if err != nil {
		return RangeResult{}, err
	}
	return RangeResult{
		Prices:    records,
		StartTime: p.Start,
		EndTime:   p.End,
		Summary:   summarize(records),
	}, nil
}

type ForecastResult struct {
	ProviderID    int64               `json:"provider_id"`
	ForecastStart time.Time           `json:"forecast_start"`
	ForecastEnd   time.Time           `json:"forecast_end"`
	Prices        []types.PriceRecord `json:"prices"`
}

// Forecast returns the records of one provider whose interval lies within
// [now, now+hours]. Hours default to 24 and are capped at 72.
func (e *Engine) Forecast(ctx context.Context, providerID int64, hours int) (ForecastResult, error) {
	if _, err := e.Provider(ctx, providerID); err != nil {
		return ForecastResult{}, err
	}
	switch {
	case hours <= 0:
		hours = defaultHours
	case hours > maxHours:
		hours = maxHours
	}

	start := e.now()
	end := start.Add(time.Duration(hours) * time.Hour)
	records, err := e.store.PriceRecords(ctx, types.PriceFilter{
		ProviderIDs: []int64{providerID},
		Field:       types.FieldStartTime,
		From:        start,
		To:          end,
	})
	if err != nil {
		return ForecastResult{}, err
	}

	prices := make([]types.PriceRecord, 0, len(records))
	for _, r := range records {
		if r.EndTime.After(end) {
			continue
		}
		prices = append(prices, r)
	}
	return ForecastResult{ProviderID: providerID, ForecastStart: start, ForecastEnd: end, Prices: prices}, nil
}

type ComparisonPoint struct {
	X time.Time `json:"x"`
	Y float64   `json:"y"`
}

type Comparison struct {
	Datasets  map[string][]ComparisonPoint `json:"datasets"`
	StartTime time.Time                    `json:"start_time"`
	EndTime   time.Time                    `json:"end_time"`
	Unit      types.PriceUnit              `json:"unit"`
}

// Comparison groups prices within [start, end] by provider display name as
// chart points, ascending by timestamp.
func (e *Engine) Comparison(ctx context.Context, start, end time.Time, providerIDs []int64) (Comparison, error) {
	if end.IsZero() {
		end = e.now()
	}
	if start.IsZero() {
		start = end.Add(-defaultHours * time.Hour)
	}
	if end.Before(start) {
		return Comparison{}, fmt.Errorf("%w: end before start", ErrInvalidArgument)
	}

	records, err := e.store.PriceRecords(ctx, types.PriceFilter{
		ProviderIDs: providerIDs,
		Field:       types.FieldTimestamp,
		From:        start,
		To:          end,
	})
	if err != nil {
		return Comparison{}, err
	}
	providers, err := e.providerIndex(ctx)
	if err != nil {
		return Comparison{}, err
	}

	datasets := make(map[string][]ComparisonPoint)
	for _, r := range records {
		name := providers[r.ProviderID].DisplayName
		datasets[name] = append(datasets[name], ComparisonPoint{X: r.Timestamp, Y: r.PricePerKWh})
	}
	return Comparison{Datasets: datasets, StartTime: start, EndTime: end, Unit: types.UnitCentsPerKWh}, nil
}

type ProviderCollection struct {
	ProviderID       *int64                 `json:"provider_id"`
	ProviderName     string                 `json:"provider_name"`
	LastCollection   time.Time              `json:"last_collection"`
	Status           types.CollectionStatus `json:"status"`
	RecordsCollected int                    `json:"records_collected"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
}

type CollectionOverview struct {
	OverallStatus string               `json:"overall_status"`
	Providers     []ProviderCollection `json:"providers"`
}

// CollectionStatus reports the latest outcome per provider among the newest
// log entries. Overall it is healthy only when all of them succeeded.
func (e *Engine) CollectionStatus(ctx context.Context) (CollectionOverview, error) {
	entries, err := e.store.CollectionLogs(ctx, statusLogLimit)
	if err != nil {
		return CollectionOverview{}, err
	}
	providers, err := e.providerIndex(ctx)
	if err != nil {
		return CollectionOverview{}, err
	}

	overview := CollectionOverview{Providers: make([]ProviderCollection, 0)}
	seen := make(map[string]bool)
	for _, entry := range entries {
		key := entry.ProviderName
		name := entry.ProviderName
		if entry.ProviderID != nil {
			key = fmt.Sprintf("#%d", *entry.ProviderID)
			if p, ok := providers[*entry.ProviderID]; ok {
				name = p.DisplayName
			}
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		overview.Providers = append(overview.Providers, ProviderCollection{
			ProviderID:       entry.ProviderID,
			ProviderName:     name,
			LastCollection:   entry.CollectionTime,
			Status:           entry.Status,
			RecordsCollected: entry.RecordsCollected,
			ErrorMessage:     entry.ErrorMessage,
		})
	}
	overview.OverallStatus = "degraded"
	if slice.All(overview.Providers, func(p ProviderCollection) bool { return p.Status == types.StatusSuccess }) {
		overview.OverallStatus = "healthy"
	}
	return overview, nil
}

func (e *Engine) providerIndex(ctx context.Context) (map[int64]types.Provider, error) {
	providers, err := e.store.Providers(ctx, false)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]types.Provider, len(providers))
	for _, p := range providers {
		index[p.ID] = p
	}
	return index, nil
}
