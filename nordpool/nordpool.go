package nordpool

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
)

const (
	Name = "Nordpool"
	// prices are always requested in EUR so they convert to ct/kWh
	currency = "EUR"
)

// Nordpool reads day-ahead auction prices for one delivery area from the
// Nord Pool data portal. Prices are wholesale, total equals price.
type Nordpool struct {
	client  *apiclient.Client
	baseURL string
	area    string
}

func New(cnfg config.AppConfigNordpool, client *apiclient.Client) *Nordpool {
	return &Nordpool{
		client:  client,
		baseURL: cnfg.GetBaseURL(),
		area:    cnfg.Area,
	}
}

func (n *Nordpool) Provider() types.Provider {
	return types.Provider{
		Name:        Name,
		DisplayName: fmt.Sprintf("Nord Pool %s", n.area),
		APIEndpoint: n.baseURL,
		CountryCode: countryCode(n.area),
		Currency:    currency,
		Active:      true,
	}
}

func (n *Nordpool) PriceType() types.PriceType {
	return types.PriceTypeDayAhead
}

// Fetch requests one document per delivery day in the window and returns
// them as a JSON array. Days without published prices are left out.
func (n *Nordpool) Fetch(ctx context.Context, w types.Window) ([]byte, error) {
	days := make([]json.RawMessage, 0)
	for _, day := range hours.Days(w.Start, w.End) {
		query := url.Values{
			"date":         {hours.Date(day)},
			"market":       {"DayAhead"},
			"deliveryArea": {n.area},
			"currency":     {currency},
		}
		body, err := n.client.Get(ctx, n.baseURL, query, nil)
		if apiclient.HasStatus(err, http.StatusNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prices from nordpool for %s: %w", hours.Date(day), err)
		}
		if len(body) == 0 {
			continue // 204, not published yet
		}
		days = append(days, body)
	}
	return json.Marshal(days)
}

func (n *Nordpool) Normalize(raw []byte) ([]types.PriceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var docs []dayAheadPrices
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode nordpool response: %w", err)
	}

	prices := make([]types.PriceRecord, 0)
	for _, doc := range docs {
		if doc.Currency != "" && doc.Currency != currency {
			return nil, fmt.Errorf("unexpected currency %q for %s, want %s", doc.Currency, doc.DeliveryDateCET, currency)
		}
		for _, entry := range doc.MultiAreaEntries {
			start := entry.DeliveryStart.UTC()
			if slices.ContainsFunc(prices, func(p types.PriceRecord) bool { return p.StartTime.Equal(start) }) {
				continue
			}
			price, ok := entry.EntryPerArea[n.area]
			if !ok {
				continue
			}
			rawData, err := json.Marshal(entry)
			if err != nil {
				return nil, fmt.Errorf("encoding raw entry: %w", err)
			}
			ct := convert.EURPerMWhToCents(price)
			prices = append(prices, types.PriceRecord{
				Timestamp:   start,
				StartTime:   start,
				EndTime:     entry.DeliveryEnd.UTC(),
				PricePerKWh: ct,
				PriceUnit:   types.UnitCentsPerKWh,
				PriceType:   types.PriceTypeDayAhead,
				TotalPrice:  ct,
				MarketArea:  n.area,
				DataSource:  Name,
				RawData:     rawData,
			})
		}
	}

	return prices, nil
}

func countryCode(area string) string {
	if len(area) < 2 {
		return area
	}
	return area[:2]
}
