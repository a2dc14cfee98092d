package elprisetjustnu

import (
	"context"
	"fmt"
	"net/http"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
)

const Name = "elprisetjustnu"

type rawPrice struct {
	SEKPerKWh float64 `json:"SEK_per_kWh"`
	EURPerKWh float64 `json:"EUR_per_kWh"`
	EXR       float64 `json:"EXR"`
	TimeStart string  `json:"time_start"`
	TimeEnd   string  `json:"time_end"`
}

// ElPrisetJustNu reads Swedish spot prices per bidding area (SE1-SE4).
// The source quotes both SEK and EUR, records carry the EUR price in ct/kWh
// without taxes or fees. The SEK price only survives in the raw data.
type ElPrisetJustNu struct {
	client  *apiclient.Client
	baseURL string
	area    string
}

func New(cnfg config.AppConfigElprisetJustNu, client *apiclient.Client) *ElPrisetJustNu {
	return &ElPrisetJustNu{client: client, baseURL: cnfg.GetBaseURL(), area: cnfg.Area}
}

func (e *ElPrisetJustNu) Provider() types.Provider {
	return types.Provider{
		Name:        Name,
		DisplayName: fmt.Sprintf("Elpriset just nu %s", e.area),
		APIEndpoint: e.baseURL,
		CountryCode: "SE",
		Currency:    "EUR",
		Active:      true,
	}
}

func (e *ElPrisetJustNu) PriceType() types.PriceType {
	return types.PriceTypeSpot
}

func (e *ElPrisetJustNu) Fetch(ctx context.Context, w types.Window) ([]byte, error) {
	days := make([]json.RawMessage, 0)
	for _, day := range hours.Days(w.Start, w.End) {
		url := fmt.Sprintf("%s/%d/%02d-%02d_%s.json", e.baseURL, day.Year(), int(day.Month()), day.Day(), e.area)
		body, err := e.client.Get(ctx, url, nil, nil)
		if apiclient.HasStatus(err, http.StatusNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prices for %s: %w", hours.Date(day), err)
		}
		days = append(days, body)
	}
	return json.Marshal(days)
}

func (e *ElPrisetJustNu) Normalize(raw []byte) ([]types.PriceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var days [][]rawPrice
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := make([]types.PriceRecord, 0)
	for _, day := range days {
		for _, p := range day {
			start := hours.FromIso(p.TimeStart)
			end := hours.FromIso(p.TimeEnd)
			if start.IsZero() || end.IsZero() {
				return nil, fmt.Errorf("invalid interval %q-%q", p.TimeStart, p.TimeEnd)
			}
			rawData, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("encoding raw price: %w", err)
			}
			price := convert.MajorToMinor(p.EURPerKWh)
			prices = append(prices, types.PriceRecord{
				Timestamp:   start,
				StartTime:   start,
				EndTime:     end,
				PricePerKWh: price,
				PriceUnit:   types.UnitCentsPerKWh,
				PriceType:   types.PriceTypeSpot,
				TotalPrice:  price,
				MarketArea:  e.area,
				DataSource:  Name,
				RawData:     rawData,
			})
		}
	}

	return prices, nil
}
