package awattar

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketDataJSON = `{
  "object": "list",
  "data": [
    {"start_timestamp": 1741647600000, "end_timestamp": 1741651200000, "marketprice": 85.43, "unit": "Eur/MWh"},
    {"start_timestamp": 1741651200000, "end_timestamp": 1741654800000, "marketprice": 72.1, "unit": "Eur/MWh"}
  ],
  "url": "/de/v1/marketdata"
}`

func newTestAdapter(baseURL string, cnfg config.AppConfigAwattar) *Awattar {
	cnfg.BaseURL = &baseURL
	return New(cnfg, apiclient.New(Name, apiclient.Options{}))
}

func TestNormalize(t *testing.T) {
	a := newTestAdapter("http://unused", config.AppConfigAwattar{})
	records, err := a.Normalize([]byte(marketDataJSON))
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC), r.StartTime)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), r.EndTime)
	assert.Equal(t, 8.543, r.PricePerKWh)
	assert.Equal(t, 0.64, r.Taxes)
	assert.Equal(t, 7.5, r.GridFees)
	assert.Equal(t, 16.683, r.TotalPrice)
	assert.Equal(t, types.PriceTypeSpot, r.PriceType)
	assert.Equal(t, "DE", r.MarketArea)
	assert.Contains(t, string(r.RawData), `"marketprice":85.43`)
	assert.NoError(t, types.ValidateRecord(r))

	assert.Equal(t, 7.21, records[1].PricePerKWh)
	assert.Equal(t, 15.35, records[1].TotalPrice)
}

func TestNormalizeConfiguredFees(t *testing.T) {
	taxes, fees := 1.0, 2.0
	a := newTestAdapter("http://unused", config.AppConfigAwattar{Taxes: &taxes, GridFees: &fees})
	records, err := a.Normalize([]byte(marketDataJSON))
	require.NoError(t, err)
	assert.Equal(t, 11.543, records[0].TotalPrice)
}

func TestNormalizeEmpty(t *testing.T) {
	a := newTestAdapter("http://unused", config.AppConfigAwattar{})
	records, err := a.Normalize([]byte(`{"object":"list","data":[]}`))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = a.Normalize([]byte(`{"data": "nope"}`))
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	start := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	end := start.Add(50 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1741647600000", r.URL.Query().Get("start"))
		assert.Equal(t, "1741827600000", r.URL.Query().Get("end"))
		_, _ = w.Write([]byte(marketDataJSON))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, config.AppConfigAwattar{})
	raw, err := a.Fetch(t.Context(), types.Window{Start: start, End: end})
	require.NoError(t, err)
	records, err := a.Normalize(raw)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, config.AppConfigAwattar{})
	_, err := a.Fetch(t.Context(), types.Window{Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, apiclient.ErrServer)
}
