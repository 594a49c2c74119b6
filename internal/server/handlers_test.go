package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/comparison"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/insights"
	"github.com/aristath/lookout/internal/settings"
	testutil "github.com/aristath/lookout/internal/testing"
)

type serverFixture struct {
	handler  http.Handler
	mock     *testutil.MockAnalysisClient
	settings *settings.Service
	store    *cache.Store
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	log := zerolog.Nop()

	cacheDB, cleanup := testutil.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	bus := events.NewBus(log)
	settingsSvc := settings.NewService(nil, bus, log)
	store := cache.NewStore(cacheDB.Conn(), settingsSvc, log)
	mock := testutil.NewMockAnalysisClient()
	engine := insights.NewEngine(log)
	orch := comparison.NewOrchestrator(comparison.NewValidator(), store, mock, engine, bus, log)
	batch := comparison.NewBatchScheduler(orch, settingsSvc, bus, log)
	refresh := comparison.NewRefreshSupervisor(orch, log)
	t.Cleanup(refresh.CancelActiveRefresh)

	srv := New(Config{
		Log:           log,
		Port:          0,
		Orchestrator:  orch,
		Batch:         batch,
		Refresh:       refresh,
		CacheStore:    store,
		Settings:      settingsSvc,
		InsightEngine: engine,
		EventBus:      bus,
	})

	return &serverFixture{
		handler:  srv.Router(),
		mock:     mock,
		settings: settingsSvc,
		store:    store,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func submitPayload(a, b string) map[string]any {
	return map[string]any{
		"comparison_id": fmt.Sprintf("%s-vs-%s", a, b),
		"payload": map[string]any{
			"portfolio_a": a,
			"portfolio_b": b,
			"start_date":  "2025-01-01",
			"end_date":    "2025-06-30",
		},
	}
}

func TestSubmit_ResolvesAndThenServesFromCache(t *testing.T) {
	f := newServerFixture(t)
	f.mock.SetResponse(json.RawMessage(`{"correlation":0.42}`))

	rec := f.do(t, http.MethodPost, "/api/comparisons/risk", submitPayload("A", "B"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["from_cache"])
	assert.Equal(t, "A-vs-B", body["comparison_id"])

	rec = f.do(t, http.MethodPost, "/api/comparisons/risk", submitPayload("A", "B"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["from_cache"])
	assert.Equal(t, 1, f.mock.CallCount())
}

func TestSubmit_SelfComparisonIsUnprocessable(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/comparisons/comparison", submitPayload("A", "A"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation", body["kind"])
	assert.Zero(t, f.mock.CallCount())
}

func TestSubmit_UnknownFacetIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/comparisons/astrology", submitPayload("A", "B"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmit_AssignsComparisonIDWhenOmitted(t *testing.T) {
	f := newServerFixture(t)

	body := submitPayload("A", "B")
	delete(body, "comparison_id")

	rec := f.do(t, http.MethodPost, "/api/comparisons/performance", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["comparison_id"])
}

func TestFacetState_ReflectsLastFailure(t *testing.T) {
	f := newServerFixture(t)
	f.mock.SetError(fmt.Errorf("connection reset"))

	rec := f.do(t, http.MethodPost, "/api/comparisons/risk", submitPayload("A", "B"))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/comparisons/risk/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["loading"])
	require.NotNil(t, body["error"])
}

func TestCachedResult_RoundTrip(t *testing.T) {
	f := newServerFixture(t)
	f.mock.SetResponse(json.RawMessage(`{"spread":[1,2,3]}`))

	rec := f.do(t, http.MethodPost, "/api/comparisons/differential", submitPayload("A", "B"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/comparisons/differential/A-vs-B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "A-vs-B", body["comparison_id"])

	rec = f.do(t, http.MethodGet, "/api/comparisons/differential/nobody-vs-nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsights_DerivedFromCachedComparison(t *testing.T) {
	f := newServerFixture(t)
	f.mock.SetResponse(json.RawMessage(`{
		"portfolio_a": {"id": "A", "total_return": 0.20, "sharpe_ratio": 1.5},
		"portfolio_b": {"id": "B", "total_return": 0.05, "sharpe_ratio": 0.8}
	}`))

	rec := f.do(t, http.MethodPost, "/api/comparisons/comparison", submitPayload("A", "B"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/comparisons/comparison/A-vs-B/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "A", body["winner"])

	// Insights only exist for the comparison facet.
	rec = f.do(t, http.MethodGet, "/api/comparisons/risk/A-vs-B/insights", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_GetAndClampedUpdate(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(300000), body["cache_timeout_ms"])

	rec = f.do(t, http.MethodPut, "/api/settings", map[string]any{
		"cache_timeout_ms": 500,
		"max_comparisons":  1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body = decodeBody(t, rec)
	assert.Equal(t, float64(10000), body["cache_timeout_ms"], "sub-minimum timeout must clamp to the floor")
	assert.Equal(t, float64(50), body["max_comparisons"])
	assert.Equal(t, 10*time.Second, f.settings.CacheTimeout())
}

func TestBatch_IsAcceptedAndRuns(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/comparisons/batch", map[string]any{
		"portfolios": []string{"A", "B"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "scheduled", decodeBody(t, rec)["status"])

	require.Eventually(t, func() bool { return f.mock.CallCount() == 1 },
		5*time.Second, 10*time.Millisecond)
}

func TestCache_ManualSweepAndClear(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/comparisons/risk", submitPayload("A", "B"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/cache/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Fresh entries survive a sweep.
	count, err := f.store.EntryCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rec = f.do(t, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err = f.store.EntryCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCancelRefresh(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody(t, rec)["status"])
}

func TestHealth_ReportsEngineState(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/system/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["refresh_active"])
	facets, ok := body["facets"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, facets, 7)
	assert.Contains(t, body, "diagnostics")
}
