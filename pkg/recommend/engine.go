// Package recommend suggests strategies for a market regime.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/metrics"
	"github.com/tunogya/spi/pkg/model"
)

// DefaultLimit is the number of recommendations returned when none is requested
const DefaultLimit = 5

// Request asks for strategies suited to a regime
type Request struct {
	TenantID      string                  `json:"tenantId"`
	UserID        string                  `json:"userId"`
	CurrentRegime model.RegimeDescription `json:"currentRegime"`
	UserTier      string                  `json:"userTier,omitempty"`
	Limit         int                     `json:"limit,omitempty"`
}

// Engine ranks indexed strategies against the current regime
type Engine struct {
	encoder *feature.Encoder
	index   index.VectorIndex
	logger  zerolog.Logger
}

// NewEngine creates a new recommendation engine
func NewEngine(encoder *feature.Encoder, idx index.VectorIndex, logger zerolog.Logger) *Engine {
	return &Engine{
		encoder: encoder,
		index:   idx,
		logger:  logging.Component(logger, "recommend"),
	}
}

// RecommendForRegime returns up to Limit strategies ordered by index similarity.
// Free-tier users never receive pro-tier strategies. An empty index yields an empty slice.
func (e *Engine) RecommendForRegime(ctx context.Context, req Request) (recs []model.Recommendation, err error) {
	start := time.Now()
	defer func() {
		metrics.Observe("recommend", metrics.OutcomeOf(err, nil), start)
	}()

	limit := index.ClampLimit(req.Limit, DefaultLimit)

	// Over-fetch to leave room for tier filtering
	metrics.Searched("recommend", model.NamespaceStrategies)
	hits, err := e.index.Search(ctx, model.NamespaceStrategies, index.SearchRequest{
		Vector: e.encoder.EncodeRegime(req.CurrentRegime),
		TopK:   limit * 2,
		Filter: index.Filter{TenantID: req.TenantID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search strategies: %w", err)
	}

	recs = make([]model.Recommendation, 0, min(limit, len(hits)))
	for _, hit := range hits {
		if len(recs) >= limit {
			break
		}
		if req.UserTier == model.TierFree && hit.Metadata.Tier == model.TierPro {
			continue
		}

		md := hit.Metadata
		recs = append(recs, model.Recommendation{
			StrategyID:     hit.HitStrategyID(),
			Name:           md.Name,
			Confidence:     hit.Similarity(),
			ExpectedReturn: md.BacktestMetrics.TotalReturn,
			ExpectedSharpe: md.BacktestMetrics.SharpeRatio,
			Explanation:    Explain(hit, req.CurrentRegime),
			Tier:           md.Tier,
		})
	}

	e.logger.Debug().
		Str("tenant_id", req.TenantID).
		Str("user_id", req.UserID).
		Int("candidates", len(hits)).
		Int("recommended", len(recs)).
		Msg("Recommendations generated")

	return recs, nil
}

// Explain assembles the template rationale for a recommended strategy
func Explain(hit model.SearchHit, regime model.RegimeDescription) string {
	parts := []string{
		fmt.Sprintf("%.0f%% similarity to the current market regime.", hit.Similarity()*100),
	}

	if regime.Trend != "" && regime.Trend != model.TrendNeutral {
		parts = append(parts, fmt.Sprintf("Aligned with %s trend conditions.", regime.Trend))
	}

	m := hit.Metadata.BacktestMetrics
	if m.TotalReturn != nil {
		parts = append(parts, fmt.Sprintf("Historical return: %.1f%%.", *m.TotalReturn*100))
	}
	if m.MaxDrawdown != nil {
		parts = append(parts, fmt.Sprintf("Max drawdown: %.1f%%.", *m.MaxDrawdown*100))
	}

	return strings.Join(parts, " ")
}
