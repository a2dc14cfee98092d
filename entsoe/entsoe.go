package entsoe

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/convert"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
)

const (
	Name = "ENTSO-E"

	documentTypePrices = "A44"
	noMatchingData     = "999"
	curveTypeVariable  = "A03"
)

// Entsoe reads day-ahead auction prices from the ENTSO-E transparency platform.
// Prices are wholesale: no taxes or fees are added, total equals price.
type Entsoe struct {
	client     *apiclient.Client
	baseURL    string
	apiKey     string
	domain     string
	marketArea string
}

func New(cnfg config.AppConfigEntsoe, client *apiclient.Client) *Entsoe {
	return &Entsoe{
		client:     client,
		baseURL:    cnfg.GetBaseURL(),
		apiKey:     cnfg.ApiKey,
		domain:     cnfg.GetDomain(),
		marketArea: cnfg.GetMarketArea(),
	}
}

func (e *Entsoe) Provider() types.Provider {
	return types.Provider{
		Name:        Name,
		DisplayName: "ENTSO-E Transparency Platform",
		APIEndpoint: e.baseURL,
		CountryCode: "DE",
		Currency:    "EUR",
		Active:      true,
	}
}

func (e *Entsoe) PriceType() types.PriceType {
	return types.PriceTypeDayAhead
}

func (e *Entsoe) Fetch(ctx context.Context, w types.Window) ([]byte, error) {
	query := url.Values{
		"securityToken": {e.apiKey},
		"documentType":  {documentTypePrices},
		"in_Domain":     {e.domain},
		"out_Domain":    {e.domain},
		"periodStart":   {hours.CompactUTC(w.Start)},
		"periodEnd":     {hours.CompactUTC(w.End)},
	}
	body, err := e.client.Get(ctx, e.baseURL, query, http.Header{"Accept": {"application/xml"}})
	if err != nil {
		// "no matching data" comes back as 400 with an acknowledgement document
		if apiclient.HasStatus(err, http.StatusBadRequest) && isNoData(body) {
			return body, nil
		}
		return nil, fmt.Errorf("fetching day-ahead prices from entso-e: %w", err)
	}
	return body, nil
}

func (e *Entsoe) Normalize(raw []byte) ([]types.PriceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode entso-e document: %w", err)
	}

	switch doc.XMLName.Local {
	case "Acknowledgement_MarketDocument":
		if hasReason(doc, noMatchingData) {
			return nil, nil
		}
		return nil, fmt.Errorf("entso-e acknowledgement: %s", reasonText(doc))
	case "Publication_MarketDocument":
	default:
		return nil, fmt.Errorf("unexpected entso-e document %q", doc.XMLName.Local)
	}

	records := make([]types.PriceRecord, 0)
	seen := make(map[time.Time]bool)
	for _, ts := range doc.TimeSeries {
		for _, p := range ts.Periods {
			recs, err := e.normalizePeriod(p, ts.CurveType == curveTypeVariable)
			if err != nil {
				return nil, err
			}
			for _, r := range recs {
				if seen[r.StartTime] {
					continue
				}
				seen[r.StartTime] = true
				records = append(records, r)
			}
		}
	}

	slices.SortFunc(records, func(a, b types.PriceRecord) int { return a.StartTime.Compare(b.StartTime) })
	return records, nil
}

func (e *Entsoe) normalizePeriod(p period, fillGaps bool) ([]types.PriceRecord, error) {
	start, err := parseTime(p.TimeInterval.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid period start: %w", err)
	}
	end, err := parseTime(p.TimeInterval.End)
	if err != nil {
		return nil, fmt.Errorf("invalid period end: %w", err)
	}
	res, err := parseResolution(p.Resolution)
	if err != nil {
		return nil, err
	}

	points := slices.Clone(p.Points)
	slices.SortFunc(points, func(a, b point) int { return a.Position - b.Position })
	if fillGaps {
		points = fillPositions(points, int(end.Sub(start)/res))
	}

	records := make([]types.PriceRecord, 0, len(points))
	for _, pt := range points {
		if pt.Position < 1 {
			continue
		}
		s := start.Add(time.Duration(pt.Position-1) * res)
		if !s.Before(end) {
			continue
		}
		rawData, err := json.Marshal(rawPoint{Position: pt.Position, Price: pt.Price, Resolution: p.Resolution, Unit: string(types.UnitEURPerMWh)})
		if err != nil {
			return nil, fmt.Errorf("encoding raw point: %w", err)
		}
		price := convert.EURPerMWhToCents(pt.Price)
		records = append(records, types.PriceRecord{
			Timestamp:   s,
			StartTime:   s,
			EndTime:     s.Add(res),
			PricePerKWh: price,
			PriceUnit:   types.UnitCentsPerKWh,
			PriceType:   types.PriceTypeDayAhead,
			TotalPrice:  price,
			MarketArea:  e.marketArea,
			DataSource:  Name,
			RawData:     rawData,
		})
	}
	return records, nil
}

// fillPositions repeats the previous price for positions left out of an A03 curve.
func fillPositions(points []point, count int) []point {
	if len(points) == 0 {
		return points
	}
	filled := make([]point, 0, count)
	next := 0
	last := points[0]
	for pos := 1; pos <= count; pos++ {
		if next < len(points) && points[next].Position == pos {
			last = points[next]
			next++
		}
		filled = append(filled, point{Position: pos, Price: last.Price})
	}
	return filled
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", s)
}

func parseResolution(s string) (time.Duration, error) {
	switch s {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M", "PT1H":
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported resolution %q", s)
	}
}

func isNoData(body []byte) bool {
	var doc document
	if err := xml.Unmarshal(body, &doc); err != nil {
		return false
	}
	return doc.XMLName.Local == "Acknowledgement_MarketDocument" && hasReason(doc, noMatchingData)
}

func hasReason(doc document, code string) bool {
	return slices.ContainsFunc(doc.Reasons, func(r reason) bool { return r.Code == code })
}

func reasonText(doc document) string {
	if len(doc.Reasons) == 0 {
		return "no reason given"
	}
	return doc.Reasons[0].Text
}
