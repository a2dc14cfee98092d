package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
)

// Summary holds statistics over price_per_kwh, all zero for an empty set.
type Summary struct {
	Count        int     `json:"count"`
	AveragePrice float64 `json:"average_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
}

func summarize(records []types.PriceRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	s := Summary{
		Count:    len(records),
		MinPrice: records[0].PricePerKWh,
		MaxPrice: records[0].PricePerKWh,
	}
	sum := 0.0
	for _, r := range records {
		sum += r.PricePerKWh
		s.MinPrice = min(s.MinPrice, r.PricePerKWh)
		s.MaxPrice = max(s.MaxPrice, r.PricePerKWh)
	}
	s.AveragePrice = convert.FourDecimals(sum / float64(len(records)))
	return s
}

type DailyStat struct {
	Date string `json:"date"`
	Summary
}

// DailyStats groups the records of the trailing days by the local calendar
// date of their timestamp. Days default to 30 and are capped at 365.
func (e *Engine) DailyStats(ctx context.Context, days int, providerID *int64) ([]DailyStat, error) {
	switch {
	case days <= 0:
		days = defaultDays
	case days > maxDays:
		days = maxDays
	}

	filter := types.PriceFilter{
		Field: types.FieldTimestamp,
		From:  hours.StartOfDay(e.now()).AddDate(0, 0, -days),
	}
	if providerID != nil {
		filter.ProviderIDs = []int64{*providerID}
	}
	records, err := e.store.PriceRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}

	byDate := make(map[string][]types.PriceRecord)
	for _, r := range records {
		d := hours.Date(r.Timestamp)
		byDate[d] = append(byDate[d], r)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	stats := make([]DailyStat, len(dates))
	for i, d := range dates {
		stats[i] = DailyStat{Date: d, Summary: summarize(byDate[d])}
	}
	return stats, nil
}
