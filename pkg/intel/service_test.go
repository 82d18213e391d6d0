package intel

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/explain"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/matcher"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/recommend"
	"github.com/tunogya/spi/pkg/similarity"
)

const dim = 64

func newService(t *testing.T) (*Service, *data.MemoryStore) {
	t.Helper()
	store := data.NewMemoryStore()
	for i, name := range []string{"Trend follower", "Trend rider", "Mean reversion"} {
		id := []string{"s1", "s2", "s3"}[i]
		store.PutStrategy(model.StrategyRecord{
			ID: id, TenantID: "t1", Name: name, Tier: model.TierFree,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		store.AddBacktests(model.BacktestRecord{
			ID: "b" + id, StrategyID: id, Status: model.BacktestStatusCompleted,
			Metrics: model.BacktestMetrics{
				SharpeRatio: model.Float(1.0 + float64(i)*0.5),
				TotalReturn: model.Float(0.1 * float64(i+1)),
				MaxDrawdown: model.Float(0.1),
				WinRate:     model.Float(0.5),
				TotalTrades: model.Int(100),
			},
		})
	}

	svc, err := New(Deps{
		Strategies: store,
		Backtests:  store,
		Index:      index.NewMemoryIndex(dim),
		Dimension:  dim,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, store
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	store := data.NewMemoryStore()
	_, err = New(Deps{Strategies: store, Backtests: store})
	assert.Error(t, err)
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	report, err := svc.ReindexAll(ctx, store, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Indexed)
	assert.Empty(t, report.Failed)

	recs, err := svc.Recommend(ctx, recommend.Request{
		TenantID:      "t1",
		UserTier:      model.TierFree,
		CurrentRegime: model.RegimeDescription{Volatility: 0.02, Trend: model.TrendBullish, Liquidity: model.LiquidityHigh},
	})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	similar, err := svc.FindSimilar(ctx, similarity.Request{StrategyID: "s1", TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, similar, 2)
	for _, s := range similar {
		assert.NotEqual(t, "s1", s.StrategyID)
	}

	exp, err := svc.Explain(ctx, explain.Request{StrategyID: "s3", TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "s3", exp.StrategyID)
	assert.Len(t, exp.SimilarStrategies, 2)

	resp, err := svc.Match(ctx, matcher.Request{
		TenantID:       "t1",
		Regime:         model.RegimeDescription{Trend: model.TrendBullish},
		MinPerformance: &model.PerformanceThreshold{SharpeRatio: model.Float(1.5)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Strategies, 2)
}

func TestService_ReindexCollectsFailures(t *testing.T) {
	svc, _ := newService(t)
	lister := staticLister{"s1", "missing"}

	report, err := svc.ReindexAll(context.Background(), lister, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, []string{"missing"}, report.Failed)
}

func TestService_RecommendForCandles(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	_, err := svc.ReindexAll(ctx, store, "")
	require.NoError(t, err)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 10)
	for i := range candles {
		c := 100 + float64(i)*3
		candles[i] = model.Candle{OpenTime: start.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}

	recs, detected, err := svc.RecommendForCandles(ctx, recommend.Request{TenantID: "t1", UserTier: model.TierPro, Limit: 2}, candles)
	require.NoError(t, err)
	assert.Equal(t, model.TrendBullish, detected.Trend)
	assert.Len(t, recs, 2)
}

func TestService_FindAnalogues(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	observed := time.Now().Add(-time.Hour)
	bull := model.RegimeDescription{Volatility: 0.3, Trend: model.TrendBullish, Liquidity: model.LiquidityHigh}
	bear := model.RegimeDescription{Volatility: 0.3, Trend: model.TrendBearish, Liquidity: model.LiquidityLow}
	require.NoError(t, svc.IngestRegimes(ctx, []model.RegimeSnapshot{
		{ID: "r-bull", TenantID: "t1", Symbol: "BTCUSDT", Timeframe: "1h", Regime: bull, ObservedAt: observed},
		{ID: "r-bear", TenantID: "t1", Symbol: "BTCUSDT", Timeframe: "1h", Regime: bear, ObservedAt: observed},
		{ID: "r-other", TenantID: "t2", Regime: bull, ObservedAt: observed},
	}))

	resp, err := svc.FindAnalogues(ctx, analogue.Request{TenantID: "t1", Regime: bull})
	require.NoError(t, err)
	require.Len(t, resp.Analogues, 2)
	assert.Equal(t, "r-bull", resp.Analogues[0].RegimeID)
	assert.Equal(t, "BTCUSDT", resp.Analogues[0].Symbol)
	assert.Empty(t, resp.Analogues[0].Outcomes)
}

type staticLister []string

func (l staticLister) ListIDs(ctx context.Context, tenantID string) ([]string, error) {
	return l, nil
}

// readThroughCache serves the first read of each strategy forever until invalidated
type readThroughCache struct {
	store       data.StrategyReader
	held        map[string]model.StrategyRecord
	invalidated []string
}

func (c *readThroughCache) FindByID(ctx context.Context, id string) (*model.StrategyRecord, error) {
	if rec, ok := c.held[id]; ok {
		return &rec, nil
	}
	rec, err := c.store.FindByID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	c.held[id] = *rec
	return rec, nil
}

func (c *readThroughCache) Invalidate(_ context.Context, strategyID string) error {
	c.invalidated = append(c.invalidated, strategyID)
	delete(c.held, strategyID)
	return nil
}

func TestService_IngestDropsCachedStrategy(t *testing.T) {
	ctx := context.Background()
	store := data.NewMemoryStore()
	rec := model.StrategyRecord{ID: "s1", TenantID: "t1", Name: "Trend follower", Tier: model.TierFree}
	store.PutStrategy(rec)

	cache := &readThroughCache{store: store, held: map[string]model.StrategyRecord{}}
	idx := index.NewMemoryIndex(dim)
	svc, err := New(Deps{
		Strategies: cache,
		Backtests:  store,
		Index:      idx,
		Dimension:  dim,
		Cache:      cache,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.IngestStrategy(ctx, "s1"))

	rec.Name = "Trend follower v2"
	store.PutStrategy(rec)
	require.NoError(t, svc.IngestStrategy(ctx, "s1"))

	entry, ok := idx.Get(model.NamespaceStrategies, "s1")
	require.True(t, ok)
	assert.Equal(t, "Trend follower v2", entry.Metadata.Name)
	assert.Equal(t, []string{"s1", "s1"}, cache.invalidated)

	rec.Name = "Trend follower v3"
	store.PutStrategy(rec)
	_, err = svc.ReindexAll(ctx, staticLister{"s1"}, "t1")
	require.NoError(t, err)

	entry, ok = idx.Get(model.NamespaceStrategies, "s1")
	require.True(t, ok)
	assert.Equal(t, "Trend follower v3", entry.Metadata.Name)
	assert.Len(t, cache.invalidated, 3)
}
