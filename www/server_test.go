package www

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/angas/spotprice-go/collect"
	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/task"
	"github.com/angas/spotprice-go/types"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	running   bool
	collected chan types.Window
}

func (f *fakeCollector) CollectAll(_ context.Context, w types.Window) (collect.RunSummary, error) {
	f.collected <- w
	return collect.RunSummary{RunID: "run"}, nil
}

func (f *fakeCollector) DefaultWindow(now time.Time) types.Window {
	return types.Window{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
}

func (f *fakeCollector) Running() bool {
	return f.running
}

type fakeScheduler []task.JobStatus

func (f fakeScheduler) Status() []task.JobStatus {
	return f
}

type testServer struct {
	server     *Server
	collector  *fakeCollector
	providerID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	db, err := database.New(t.Context(), logger, filepath.Join(t.TempDir(), "spotprice.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := t.Context()
	require.NoError(t, db.EnsureProviders(ctx, []types.Provider{
		{Name: "aWATTar", DisplayName: "aWATTar Germany", CountryCode: "DE", Currency: "EUR", Active: true},
		{Name: "Tibber", DisplayName: "Tibber", CountryCode: "DE", Currency: "EUR", Active: false},
	}))
	p, err := db.ProviderByName(ctx, "aWATTar")
	require.NoError(t, err)

	start := hours.TruncateHour(time.Now()).Add(-2 * time.Hour)
	records := make([]types.PriceRecord, 30)
	for i := range records {
		s := start.Add(time.Duration(i) * time.Hour)
		price := float64(10 + i%7)
		records[i] = types.PriceRecord{
			Timestamp:   s,
			StartTime:   s,
			EndTime:     s.Add(time.Hour),
			PricePerKWh: price,
			PriceUnit:   types.UnitCentsPerKWh,
			PriceType:   types.PriceTypeSpot,
			TotalPrice:  price,
			DataSource:  "test",
		}
	}
	_, err = db.InsertPriceRecords(ctx, p.ID, records)
	require.NoError(t, err)

	c := &fakeCollector{collected: make(chan types.Window, 1)}
	scheduler := fakeScheduler{{Name: "collect", Schedule: "@every 15m", Next: time.Now().Add(time.Minute)}}
	s := NewServer(ctx, logger, config.AppConfigApi{}, query.New(logger, db), c, scheduler)
	return &testServer{server: s, collector: c, providerID: p.ID}
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (ts *testServer) get(t *testing.T, target string, v any) {
	t.Helper()
	rec := ts.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	ts.get(t, "/health", &body)
	assert.Equal(t, "ok", body["status"])
}

func TestProviderRoutes(t *testing.T) {
	ts := newTestServer(t)

	var providers []types.Provider
	ts.get(t, "/api/v1/providers", &providers)
	require.Len(t, providers, 1)
	assert.Equal(t, "aWATTar", providers[0].Name)

	ts.get(t, "/api/v1/providers?active_only=false", &providers)
	assert.Len(t, providers, 2)

	var provider types.Provider
	ts.get(t, "/api/v1/providers/"+strconv.FormatInt(ts.providerID, 10), &provider)
	assert.Equal(t, "aWATTar Germany", provider.DisplayName)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/providers/999").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/providers/abc").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/providers?active_only=maybe").Code)
}

func TestPriceRoutes(t *testing.T) {
	ts := newTestServer(t)
	id := strconv.FormatInt(ts.providerID, 10)

	var result query.RangeResult
	ts.get(t, "/api/v1/prices?provider_ids="+id+"&limit=2", &result)
	assert.Len(t, result.Prices, 2)
	assert.Equal(t, 2, result.Count)

	q := url.Values{}
	q.Set("start_time", time.Now().Add(-48*time.Hour).Format(time.RFC3339))
	q.Set("end_time", time.Now().Add(48*time.Hour).Format(time.RFC3339))
	ts.get(t, "/api/v1/prices?"+q.Encode(), &result)
	assert.Equal(t, 30, result.Count)

	var current []query.CurrentPrice
	ts.get(t, "/api/v1/prices/current", &current)
	require.Len(t, current, 1)
	assert.Equal(t, "aWATTar", current[0].Provider)

	var forecast query.ForecastResult
	ts.get(t, "/api/v1/prices/forecast?provider_id="+id+"&hours=6", &forecast)
	assert.NotEmpty(t, forecast.Prices)
	assert.LessOrEqual(t, len(forecast.Prices), 6)

	var cheapest cheapestResponse
	ts.get(t, "/api/v1/prices/cheapest?duration_hours=2&limit=3&provider_ids="+id, &cheapest)
	assert.Equal(t, 2, cheapest.DurationHours)
	require.Len(t, cheapest.Periods, 3)
	assert.LessOrEqual(t, cheapest.Periods[0].AveragePrice, cheapest.Periods[2].AveragePrice)
}

func TestCheapestRouteWithoutData(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/prices/cheapest?duration_hours=2&provider_ids=999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"duration_hours":2,"periods":[]}`, rec.Body.String())
}

func TestPriceRoutesRejectBadParameters(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		target   string
		expected int
	}{
		{name: "bad provider ids", target: "/api/v1/prices?provider_ids=1,x", expected: http.StatusBadRequest},
		{name: "bad start time", target: "/api/v1/prices?start_time=yesterday", expected: http.StatusBadRequest},
		{name: "end before start", target: "/api/v1/prices?start_time=2025-03-10T12:00:00Z&end_time=2025-03-10T10:00:00Z", expected: http.StatusBadRequest},
		{name: "forecast without provider", target: "/api/v1/prices/forecast", expected: http.StatusBadRequest},
		{name: "forecast unknown provider", target: "/api/v1/prices/forecast?provider_id=999", expected: http.StatusNotFound},
		{name: "cheapest duration too long", target: "/api/v1/prices/cheapest?duration_hours=13", expected: http.StatusBadRequest},
		{name: "cheapest lookahead too long", target: "/api/v1/prices/cheapest?lookahead_hours=73", expected: http.StatusBadRequest},
		{name: "daily stats bad days", target: "/api/v1/stats/daily-average?days=many", expected: http.StatusBadRequest},
		{name: "unknown route", target: "/api/v1/unknown", expected: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ts.do(t, http.MethodGet, tt.target).Code)
		})
	}
}

func TestStatsRoutes(t *testing.T) {
	ts := newTestServer(t)

	var comparison query.Comparison
	q := url.Values{}
	q.Set("start_time", time.Now().Add(-48*time.Hour).Format(time.RFC3339))
	q.Set("end_time", time.Now().Add(48*time.Hour).Format(time.RFC3339))
	ts.get(t, "/api/v1/charts/price-comparison?"+q.Encode(), &comparison)
	assert.Len(t, comparison.Datasets["aWATTar Germany"], 30)
	assert.Equal(t, types.UnitCentsPerKWh, comparison.Unit)

	var stats []query.DailyStat
	ts.get(t, "/api/v1/stats/daily-average?days=7&provider_id="+strconv.FormatInt(ts.providerID, 10), &stats)
	assert.NotEmpty(t, stats)

	var overview query.CollectionOverview
	ts.get(t, "/api/v1/health/data-collection", &overview)
	assert.Equal(t, "healthy", overview.OverallStatus)
	assert.Empty(t, overview.Providers)
}

func TestCollectRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/collect")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body collectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body.Status)

	select {
	case w := <-ts.collector.collected:
		assert.True(t, w.Start.Equal(body.StartTime))
	case <-time.After(2 * time.Second):
		t.Fatal("collection was not started")
	}

	ts.collector.running = true
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/collect").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/api/v1/collect").Code)
}

func TestSchedulerStatusRoute(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Running bool             `json:"running"`
		Jobs    []task.JobStatus `json:"jobs"`
	}
	ts.get(t, "/api/v1/scheduler/status", &body)
	assert.True(t, body.Running)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "collect", body.Jobs[0].Name)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
