package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/intel"
	"github.com/tunogya/spi/pkg/model"
)

const dim = 32

type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *data.MemoryStore) {
	t.Helper()
	store := data.NewMemoryStore()
	for i, id := range []string{"s1", "s2", "s3"} {
		tier := model.TierFree
		if id == "s3" {
			tier = model.TierPro
		}
		store.PutStrategy(model.StrategyRecord{ID: id, TenantID: "t1", Name: "Strategy " + id, Tier: tier})
		store.AddBacktests(model.BacktestRecord{
			ID: "b" + id, StrategyID: id, Status: model.BacktestStatusCompleted,
			Metrics: model.BacktestMetrics{
				SharpeRatio: model.Float(1 + float64(i)),
				TotalReturn: model.Float(0.1 * float64(i+1)),
				MaxDrawdown: model.Float(0.05),
			},
		})
	}

	svc, err := intel.New(intel.Deps{
		Strategies: store,
		Backtests:  store,
		Index:      index.NewMemoryIndex(dim),
		Dimension:  dim,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	return NewServer(":0", svc, zerolog.Nop(), opts...), store
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func ingestAll(t *testing.T, s *Server) {
	for _, id := range []string{"s1", "s2", "s3"} {
		w, _ := do(t, s, http.MethodPost, "/api/v1/strategies/"+id+"/ingest", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestRecommend_FreeTierFiltered(t *testing.T) {
	s, _ := newTestServer(t)
	ingestAll(t, s)

	w, env := do(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"tenantId":      "t1",
		"userTier":      "free",
		"currentRegime": map[string]any{"volatility": 0.02, "trend": "bullish", "liquidity": "high"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var recs []model.Recommendation
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.NotEqual(t, "s3", r.StrategyID)
		assert.Contains(t, r.Explanation, "similarity to the current market regime")
	}
}

func TestRecommend_BadJSON(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimilar(t *testing.T) {
	s, _ := newTestServer(t)
	ingestAll(t, s)

	w, env := do(t, s, http.MethodGet, "/api/v1/strategies/s1/similar?tenantId=t1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var results []model.SimilarityResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.NotEqual(t, "s1", results[0].StrategyID)
	assert.NotNil(t, results[0].KeyDifferences)
}

func TestSimilar_BadLimit(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := do(t, s, http.MethodGet, "/api/v1/strategies/s1/similar?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueries_RequireTenant(t *testing.T) {
	s, _ := newTestServer(t)
	ingestAll(t, s)

	regime := map[string]any{"trend": "bullish"}
	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/v1/recommendations", map[string]any{"currentRegime": regime}},
		{http.MethodPost, "/api/v1/regimes/match", map[string]any{"regime": regime}},
		{http.MethodPost, "/api/v1/regimes/analogues", map[string]any{"regime": regime}},
		{http.MethodGet, "/api/v1/strategies/s1/similar", nil},
		{http.MethodGet, "/api/v1/strategies/s1/explanation", nil},
	} {
		w, env := do(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		assert.Contains(t, env.Message, "tenantId", tc.path)
	}
}

func TestQueries_LimitTooLarge(t *testing.T) {
	s, _ := newTestServer(t)

	w, _ := do(t, s, http.MethodGet, "/api/v1/strategies/s1/similar?tenantId=t1&limit=1000000000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"tenantId": "t1",
		"limit":    int64(1) << 40,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExplain(t *testing.T) {
	s, _ := newTestServer(t)
	ingestAll(t, s)

	w, env := do(t, s, http.MethodGet, "/api/v1/strategies/s2/explanation?tenantId=t1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var exp model.StrategyExplanation
	require.NoError(t, json.Unmarshal(env.Data, &exp))
	assert.Equal(t, "s2", exp.StrategyID)
	assert.Contains(t, exp.Summary, "Strategy s2")
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{
		"/api/v1/strategies/missing/explanation?tenantId=t1",
		"/api/v1/strategies/missing/similar?tenantId=t1",
	} {
		w, env := do(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, env.Message, "Strategy missing not found")
	}

	w, _ := do(t, s, http.MethodPost, "/api/v1/strategies/missing/ingest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatch(t *testing.T) {
	s, _ := newTestServer(t)
	ingestAll(t, s)

	w, env := do(t, s, http.MethodPost, "/api/v1/regimes/match", map[string]any{
		"tenantId":       "t1",
		"regime":         map[string]any{"trend": "bullish"},
		"minPerformance": map[string]any{"sharpeRatio": 2.0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Strategies []model.RegimeMatch `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Strategies, 2)
}

type recorder struct{ saved int }

func (r *recorder) SaveBatch(_ context.Context, snapshots []model.RegimeSnapshot) error {
	r.saved += len(snapshots)
	return nil
}

func TestIngestRegimes(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestServer(t, WithRecorder(rec))

	snap := model.RegimeSnapshot{
		ID: "w1", TenantID: "t1", Symbol: "BTCUSDT", Timeframe: "1h",
		ObservedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Regime:     model.RegimeDescription{Volatility: 0.01, Trend: model.TrendNeutral, Liquidity: model.LiquidityMedium},
	}
	w, _ := do(t, s, http.MethodPost, "/api/v1/regimes", map[string]any{"snapshots": []model.RegimeSnapshot{snap}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.saved)

	snap.ID = ""
	w, _ = do(t, s, http.MethodPost, "/api/v1/regimes", map[string]any{"snapshots": []model.RegimeSnapshot{snap}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalogues(t *testing.T) {
	s, _ := newTestServer(t)

	regime := model.RegimeDescription{Volatility: 0.01, Trend: model.TrendBullish, Liquidity: model.LiquidityHigh}
	w, _ := do(t, s, http.MethodPost, "/api/v1/regimes", map[string]any{"snapshots": []model.RegimeSnapshot{
		{ID: "w1", TenantID: "t1", Symbol: "BTCUSDT", Timeframe: "1h", ObservedAt: time.Now().Add(-time.Hour), Regime: regime},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, s, http.MethodPost, "/api/v1/regimes/analogues", map[string]any{"tenantId": "t1", "regime": regime})
	require.Equal(t, http.StatusOK, w.Code)

	var resp analogue.Response
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Analogues, 1)
	assert.Equal(t, "w1", resp.Analogues[0].RegimeID)

	w, _ = do(t, s, http.MethodPost, "/api/v1/regimes/analogues", map[string]any{"regime": regime, "horizons": []int{0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReindex(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := do(t, s, http.MethodPost, "/api/v1/strategies/reindex", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	s, store := newTestServer(t)
	s.lister = store
	w, env := do(t, s, http.MethodPost, "/api/v1/strategies/reindex?tenantId=t1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report intel.ReindexReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.Indexed)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
