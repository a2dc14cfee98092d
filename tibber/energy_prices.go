package tibber

import (
	"context"
	"fmt"
	"time"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
)

const (
	Name = "Tibber"

	priceInfoQuery = `{
		viewer {
			homes {
				currentSubscription {
					priceInfo {
						today { total energy tax startsAt currency level }
						tomorrow { total energy tax startsAt currency level }
					}
				}
			}
		}
	}`
)

type priceInfo struct {
	Total    *float64 `json:"total"`
	Energy   *float64 `json:"energy"`
	Tax      *float64 `json:"tax"`
	StartsAt *string  `json:"startsAt"`
	Currency string   `json:"currency"`
	Level    string   `json:"level"`
}

type homesResponse struct {
	Homes []struct {
		CurrentSubscription *struct {
			PriceInfo struct {
				Today    []priceInfo `json:"today"`
				Tomorrow []priceInfo `json:"tomorrow"`
			} `json:"priceInfo"`
		} `json:"currentSubscription"`
	} `json:"homes"`
}

// Tibber reads the retail prices of the account's homes for today and
// tomorrow. Tibber totals already include energy tax and fees, so the total
// is stored as the price and the separate components are zero.
type Tibber struct {
	client   *apiclient.Client
	baseURL  string
	apiToken string
}

func New(cnfg config.AppConfigTibber, client *apiclient.Client) *Tibber {
	return &Tibber{client: client, baseURL: cnfg.GetBaseURL(), apiToken: cnfg.ApiKey}
}

func (t *Tibber) Provider() types.Provider {
	return types.Provider{
		Name:        Name,
		DisplayName: "Tibber",
		APIEndpoint: t.baseURL,
		CountryCode: "DE",
		Currency:    "EUR",
		Active:      true,
	}
}

func (t *Tibber) PriceType() types.PriceType {
	return types.PriceTypeSpot
}

// Fetch ignores the window, the API only serves today and tomorrow.
func (t *Tibber) Fetch(ctx context.Context, _ types.Window) ([]byte, error) {
	body, err := doQuery(ctx, t.client, t.baseURL, t.apiToken, priceInfoQuery)
	if err != nil {
		return nil, fmt.Errorf("fetching price info from tibber: %w", err)
	}
	return body, nil
}

func (t *Tibber) Normalize(raw []byte) ([]types.PriceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	body, err := decodeResponse[homesResponse](raw)
	if err != nil {
		return nil, err
	}

	records := make([]types.PriceRecord, 0)
	for _, home := range body.Data.Viewer.Homes {
		if home.CurrentSubscription == nil {
			continue
		}
		todayAndTomorrow := append(
			home.CurrentSubscription.PriceInfo.Today,
			home.CurrentSubscription.PriceInfo.Tomorrow...)

		for _, price := range todayAndTomorrow {
			if price.StartsAt == nil || price.Total == nil {
				continue
			}
			startsAt, err := time.Parse(time.RFC3339, *price.StartsAt)
			if err != nil {
				return nil, fmt.Errorf("invalid startsAt %q: %w", *price.StartsAt, err)
			}
			rawData, err := json.Marshal(price)
			if err != nil {
				return nil, fmt.Errorf("encoding raw price info: %w", err)
			}
			start := startsAt.UTC()
			total := convert.MajorToMinor(*price.Total)
			records = append(records, types.PriceRecord{
				Timestamp:     start,
				StartTime:     start,
				EndTime:       start.Add(time.Hour),
				PricePerKWh:   total,
				PriceUnit:     types.UnitCentsPerKWh,
				PriceType:     types.PriceTypeSpot,
				TotalPrice:    total,
				MarketArea:    "DE",
				QualityRating: "high",
				DataSource:    Name,
				RawData:       rawData,
			})
		}
	}

	return records, nil
}
