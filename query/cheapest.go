package query

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/types"
)

type CheapestParams struct {
	DurationHours  int
	LookaheadHours int
	ProviderIDs    []int64
	Limit          int
}

type CheapestWindow struct {
	ProviderID    int64               `json:"provider_id"`
	ProviderName  string              `json:"provider_name"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
	AveragePrice  float64             `json:"average_price"`
	DurationHours int                 `json:"duration_hours"`
	Prices        []types.PriceRecord `json:"prices"`

	mean float64
}

// Cheapest finds the contiguous windows of DurationHours hourly records with
// the lowest mean price that start and finish within the look-ahead.
// Windows never span a gap or mix providers.
func (e *Engine) Cheapest(ctx context.Context, p CheapestParams) ([]CheapestWindow, error) {
	if p.DurationHours < 1 || p.DurationHours > 12 {
		return nil, fmt.Errorf("%w: duration_hours must be between 1 and 12", ErrInvalidArgument)
	}
	if p.LookaheadHours <= 0 {
		p.LookaheadHours = defaultHours
	}
	if p.LookaheadHours > maxHours {
		return nil, fmt.Errorf("%w: lookahead_hours must not exceed %d", ErrInvalidArgument, maxHours)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	now := e.now()
	horizon := now.Add(time.Duration(p.LookaheadHours) * time.Hour)
	records, err := e.store.PriceRecords(ctx, types.PriceFilter{
		ProviderIDs: p.ProviderIDs,
		Field:       types.FieldStartTime,
		From:        now,
		To:          horizon,
	})
	if err != nil {
		return nil, err
	}
	providers, err := e.providerIndex(ctx)
	if err != nil {
		return nil, err
	}

	byProvider := make(map[int64][]types.PriceRecord)
	for _, r := range records {
		// windows must finish inside the lookahead
		if r.Duration() != time.Hour || r.EndTime.After(horizon) {
			continue
		}
		byProvider[r.ProviderID] = append(byProvider[r.ProviderID], r)
	}

	windows := make([]CheapestWindow, 0)
	for id, series := range byProvider {
		slices.SortFunc(series, func(a, b types.PriceRecord) int { return a.StartTime.Compare(b.StartTime) })
		for _, w := range contiguousWindows(series, p.DurationHours) {
			w.ProviderID = id
			w.ProviderName = providers[id].DisplayName
			windows = append(windows, w)
		}
	}

	slices.SortFunc(windows, func(a, b CheapestWindow) int {
		return cmp.Or(
			cmp.Compare(a.mean, b.mean),
			a.StartTime.Compare(b.StartTime),
			cmp.Compare(a.ProviderID, b.ProviderID),
		)
	})
	if len(windows) > p.Limit {
		windows = windows[:p.Limit]
	}
	return windows, nil
}

// contiguousWindows slides over series, sorted by start time, and keeps every
// window of exactly n one-hour records where each starts at the previous end.
func contiguousWindows(series []types.PriceRecord, n int) []CheapestWindow {
	var windows []CheapestWindow
	run := 0 // length of the gap-free hourly run ending at i
	for i, r := range series {
		switch {
		case r.Duration() != time.Hour:
			run = 0
			continue
		case run > 0 && r.StartTime.Equal(series[i-1].EndTime):
			run++
		default:
			run = 1
		}
		if run < n {
			continue
		}

		prices := series[i-n+1 : i+1]
		sum := 0.0
		for _, p := range prices {
			sum += p.PricePerKWh
		}
		mean := sum / float64(n)
		windows = append(windows, CheapestWindow{
			StartTime:     prices[0].StartTime,
			EndTime:       prices[n-1].EndTime,
			AveragePrice:  convert.FourDecimals(mean),
			DurationHours: n,
			Prices:        slices.Clone(prices),
			mean:          mean,
		})
	}
	return windows
}
