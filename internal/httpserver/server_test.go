package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/radiusdt/vector-metrics/internal/config"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/radiusdt/vector-metrics/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCheck struct{ err error }

func (f fakeCheck) Health(ctx context.Context) error { return f.err }

func testBatch() models.Batch {
	return models.Batch{
		Sessions: []models.RawSession{
			{UserID: 1, Start: "2017-01-05 10:00:00", End: "2017-01-05 10:05:00", Device: "desktop", SourceID: 3},
		},
		Orders: []models.RawOrder{
			{UserID: 1, BuyTime: "2017-01-05 11:00:00", Revenue: decimal.NewFromInt(100)},
		},
		Costs: []models.RawCost{
			{SourceID: 3, Date: "2017-01-05", Spend: decimal.NewFromInt(50)},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Auth:    config.AuthConfig{SkipPaths: []string{"/health", "/metrics"}},
	}
}

func newTestServer(t *testing.T, deps *Dependencies) http.Handler {
	t.Helper()
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return NewServer(deps)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &Dependencies{Checks: map[string]HealthChecker{"redis": fakeCheck{}}})
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, rec.Body.String())

	h = newTestServer(t, &Dependencies{Checks: map[string]HealthChecker{"postgres": fakeCheck{err: errors.New("down")}}})
	rec = do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestReport_NotFoundBeforeFirstRun(t *testing.T) {
	h := newTestServer(t, &Dependencies{})
	rec := do(h, http.MethodGet, "/v1/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_FromSourceThenReport(t *testing.T) {
	store := storage.NewInMemoryReportStore()
	h := newTestServer(t, &Dependencies{
		Source: storage.NewInMemorySource(testBatch()),
		Store:  store,
	})

	rec := do(h, http.MethodPost, "/v1/runs", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.ID)
	assert.Len(t, run.Fingerprint, 64)

	rec = do(h, http.MethodGet, "/v1/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, run.Fingerprint, rec.Header().Get("X-Batch-Fingerprint"))

	var r models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	require.Len(t, r.UnitEconomics.ROMI, 1)
	assert.InDelta(t, 2.0, r.UnitEconomics.ROMI[0].ROMI.Value, 1e-9)
	require.Len(t, r.UnitEconomics.CAC, 1)
	assert.InDelta(t, 50.0, r.UnitEconomics.CAC[0].CAC, 1e-9)

	rec = do(h, http.MethodGet, "/v1/report?format=yaml&fingerprint="+run.Fingerprint, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "romi: 2")
}

func TestRun_UploadedBatch(t *testing.T) {
	h := newTestServer(t, &Dependencies{})

	body, err := json.Marshal(testBatch())
	require.NoError(t, err)
	rec := do(h, http.MethodPost, "/v1/runs", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodGet, "/v1/report/tables/ltv_by_channel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name string              `json:"name"`
		Rows []models.ChannelLTV `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ltv_by_channel", resp.Name)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 3, resp.Rows[0].SourceID)
	assert.InDelta(t, 100.0, resp.Rows[0].LTV, 1e-9)
}

func TestRun_Errors(t *testing.T) {
	h := newTestServer(t, &Dependencies{})

	rec := do(h, http.MethodPost, "/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(h, http.MethodPost, "/v1/runs", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTables(t *testing.T) {
	h := newTestServer(t, &Dependencies{Source: storage.NewInMemorySource(testBatch())})

	rec := do(h, http.MethodGet, "/v1/report/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "romi_by_channel")

	require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/v1/runs", "").Code)

	rec = do(h, http.MethodGet, "/v1/report/tables/bogus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthProtectsAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, MasterKey: "k", SkipPaths: []string{"/health"}}
	h := newTestServer(t, &Dependencies{Config: cfg})

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/report", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/report?api_key=k", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/report", nil)
	req.Header.Set("Authorization", "Bearer k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewMetrics("vm_test")
	h := newTestServer(t, &Dependencies{Metrics: m, Source: storage.NewInMemorySource(testBatch())})

	require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/v1/runs", "").Code)

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `vm_test_engine_runs_total{status="ok"} 1`)
	assert.Contains(t, body, `vm_test_cac_dollars{source_id="3"} 50`)
	assert.Contains(t, body, `vm_test_http_requests_total{route="/v1/runs",status="201"} 1`)
}
