package recommend

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/model"
)

// stubIndex returns canned hits in the given order
type stubIndex struct {
	hits []model.SearchHit
	last index.SearchRequest
}

func (s *stubIndex) Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error {
	return nil
}

func (s *stubIndex) Search(ctx context.Context, namespace string, req index.SearchRequest) ([]model.SearchHit, error) {
	s.last = req
	if len(s.hits) > req.TopK {
		return s.hits[:req.TopK], nil
	}
	return s.hits, nil
}

func hit(id, tier string, score float64) model.SearchHit {
	return model.SearchHit{
		ID:    id,
		Score: score,
		Metadata: model.Metadata{
			TenantID:   "t1",
			StrategyID: id,
			Name:       "Strategy " + id,
			Tier:       tier,
		},
	}
}

func TestEngine_RecommendForRegime_EmptyIndex(t *testing.T) {
	e := NewEngine(feature.NewEncoder(32), index.NewMemoryIndex(32), zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{
		TenantID:      "t1",
		CurrentRegime: model.RegimeDescription{Volatility: 0.1, Trend: model.TrendBullish},
	})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestEngine_RecommendForRegime_FreeTierHidesPro(t *testing.T) {
	idx := &stubIndex{hits: []model.SearchHit{
		hit("a", model.TierPro, 0.99),
		hit("b", model.TierFree, 0.95),
		hit("c", model.TierPro, 0.90),
		hit("d", "", 0.85),
		hit("e", model.TierFree, 0.80),
	}}
	e := NewEngine(feature.NewEncoder(32), idx, zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{
		TenantID: "t1",
		UserTier: model.TierFree,
		Limit:    3,
	})
	require.NoError(t, err)

	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.NotEqual(t, model.TierPro, r.Tier)
	}
	assert.Equal(t, []string{"b", "d", "e"}, []string{recs[0].StrategyID, recs[1].StrategyID, recs[2].StrategyID})
	assert.Equal(t, 6, idx.last.TopK)
	assert.Equal(t, "t1", idx.last.Filter.TenantID)
}

func TestEngine_RecommendForRegime_ProTierSeesEverything(t *testing.T) {
	idx := &stubIndex{hits: []model.SearchHit{
		hit("a", model.TierPro, 0.99),
		hit("b", model.TierFree, 0.95),
	}}
	e := NewEngine(feature.NewEncoder(32), idx, zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{TenantID: "t1", UserTier: model.TierPro})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].StrategyID)
	assert.Equal(t, 0.99, recs[0].Confidence)
	assert.Equal(t, DefaultLimit*2, idx.last.TopK)
}

func TestEngine_RecommendForRegime_MetricsAndExplanation(t *testing.T) {
	h := hit("a", model.TierFree, 0.87)
	h.Metadata.BacktestMetrics = model.BacktestMetrics{
		TotalReturn: model.Float(0.25),
		SharpeRatio: model.Float(1.8),
		MaxDrawdown: model.Float(0.1),
	}
	e := NewEngine(feature.NewEncoder(32), &stubIndex{hits: []model.SearchHit{h}}, zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{
		TenantID:      "t1",
		CurrentRegime: model.RegimeDescription{Trend: model.TrendBearish},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, 0.25, model.Value(r.ExpectedReturn))
	assert.Equal(t, 1.8, model.Value(r.ExpectedSharpe))
	assert.Equal(t,
		"87% similarity to the current market regime. Aligned with bearish trend conditions. Historical return: 25.0%. Max drawdown: 10.0%.",
		r.Explanation)
}

func TestExplain_NeutralWithoutMetrics(t *testing.T) {
	text := Explain(hit("a", "", 0.5), model.RegimeDescription{Trend: model.TrendNeutral})
	assert.Equal(t, "50% similarity to the current market regime.", text)
}

func TestEngine_RecommendForRegime_EndToEnd(t *testing.T) {
	ctx := context.Background()
	enc := feature.NewEncoder(32)
	idx := index.NewMemoryIndex(32)

	for _, s := range []model.StrategyRecord{
		{ID: "s1", TenantID: "t1", Name: "Trend", Tier: model.TierPro},
		{ID: "s2", TenantID: "t1", Name: "Range", Tier: model.TierFree},
		{ID: "s3", TenantID: "t2", Name: "Other tenant", Tier: model.TierFree},
	} {
		s := s
		require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{{
			ID:       s.ID,
			Vector:   enc.EncodeStrategy(&s, nil),
			Metadata: model.Metadata{TenantID: s.TenantID, StrategyID: s.ID, Name: s.Name, Tier: s.Tier},
		}}))
	}

	e := NewEngine(enc, idx, zerolog.Nop())
	recs, err := e.RecommendForRegime(ctx, Request{
		TenantID:      "t1",
		UserTier:      model.TierFree,
		CurrentRegime: model.RegimeDescription{Volatility: 0.2, Trend: model.TrendBullish, Liquidity: model.LiquidityHigh},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s2", recs[0].StrategyID)
}

func TestEngine_RecommendForRegime_HugeLimitIsCapped(t *testing.T) {
	idx := &stubIndex{hits: []model.SearchHit{hit("a", model.TierFree, 0.9)}}
	e := NewEngine(feature.NewEncoder(32), idx, zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{TenantID: "t1", Limit: math.MaxInt / 2})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, index.MaxLimit*2, idx.last.TopK)

	empty := NewEngine(feature.NewEncoder(32), index.NewMemoryIndex(32), zerolog.Nop())
	recs, err = empty.RecommendForRegime(context.Background(), Request{TenantID: "t1", Limit: math.MaxInt})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEngine_RecommendForRegime_OtherTenantInvisibleWithoutTenant(t *testing.T) {
	ctx := context.Background()
	enc := feature.NewEncoder(32)
	idx := index.NewMemoryIndex(32)
	s := model.StrategyRecord{ID: "secret", TenantID: "acme", Name: "acme-only"}
	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{{
		ID:       s.ID,
		Vector:   enc.EncodeStrategy(&s, nil),
		Metadata: model.Metadata{TenantID: s.TenantID, StrategyID: s.ID, Name: s.Name},
	}}))

	recs, err := NewEngine(enc, idx, zerolog.Nop()).RecommendForRegime(ctx, Request{
		CurrentRegime: model.RegimeDescription{Trend: model.TrendBearish},
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEngine_RecommendForRegime_NegativeScoreClamped(t *testing.T) {
	idx := &stubIndex{hits: []model.SearchHit{hit("a", model.TierFree, -0.5)}}
	e := NewEngine(feature.NewEncoder(32), idx, zerolog.Nop())

	recs, err := e.RecommendForRegime(context.Background(), Request{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Zero(t, recs[0].Confidence)
	assert.True(t, strings.HasPrefix(recs[0].Explanation, "0% similarity"), recs[0].Explanation)
}
