package awattar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
)

const Name = "aWATTar"

type marketData struct {
	Object string        `json:"object"`
	Data   []marketPrice `json:"data"`
}

type marketPrice struct {
	StartTimestamp int64   `json:"start_timestamp"`
	EndTimestamp   int64   `json:"end_timestamp"`
	MarketPrice    float64 `json:"marketprice"`
	Unit           string  `json:"unit"`
}

// Awattar reads hourly spot prices for Germany. The wholesale price is
// augmented with configured estimates of taxes and grid fees:
// total = price + taxes + grid fees.
type Awattar struct {
	client   *apiclient.Client
	baseURL  string
	taxes    float64
	gridFees float64
}

func New(cnfg config.AppConfigAwattar, client *apiclient.Client) *Awattar {
	return &Awattar{
		client:   client,
		baseURL:  cnfg.GetBaseURL(),
		taxes:    cnfg.GetTaxes(),
		gridFees: cnfg.GetGridFees(),
	}
}

func (a *Awattar) Provider() types.Provider {
	return types.Provider{
		Name:        Name,
		DisplayName: "aWATTar Germany",
		APIEndpoint: a.baseURL,
		CountryCode: "DE",
		Currency:    "EUR",
		Active:      true,
	}
}

func (a *Awattar) PriceType() types.PriceType {
	return types.PriceTypeSpot
}

func (a *Awattar) Fetch(ctx context.Context, w types.Window) ([]byte, error) {
	query := url.Values{
		"start": {strconv.FormatInt(w.Start.UnixMilli(), 10)},
		"end":   {strconv.FormatInt(w.End.UnixMilli(), 10)},
	}
	body, err := a.client.Get(ctx, a.baseURL, query, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching market data from awattar: %w", err)
	}
	return body, nil
}

func (a *Awattar) Normalize(raw []byte) ([]types.PriceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var md marketData
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("failed to decode awattar response: %w", err)
	}

	records := make([]types.PriceRecord, 0, len(md.Data))
	for _, item := range md.Data {
		rawData, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding raw market price: %w", err)
		}
		start := hours.FromMillis(item.StartTimestamp)
		price := convert.EURPerMWhToCents(item.MarketPrice)
		records = append(records, types.PriceRecord{
			Timestamp:   start,
			StartTime:   start,
			EndTime:     hours.FromMillis(item.EndTimestamp),
			PricePerKWh: price,
			PriceUnit:   types.UnitCentsPerKWh,
			PriceType:   types.PriceTypeSpot,
			Taxes:       a.taxes,
			GridFees:    a.gridFees,
			TotalPrice:  convert.Sum(price, a.taxes, a.gridFees),
			MarketArea:  "DE",
			DataSource:  Name,
			RawData:     rawData,
		})
	}
	return records, nil
}
