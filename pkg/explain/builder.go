// Package explain builds structured risk/performance explanations for strategies.
package explain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/metrics"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/similarity"
)

// Thresholds holds the cut-offs used for factors, warnings and regime labels
type Thresholds struct {
	StrongSharpe     float64 // sharpe above this is a positive factor
	HighWinRate      float64 // win rate above this is a positive factor
	LowWinRate       float64 // win rate below this is a negative factor and a warning
	MaxDrawdown      float64 // drawdown above this is a warning
	MinTrades        int     // fewer trades than this is a small-sample warning
	HighVolatility   float64 // regime volatility above this is labelled high
	RegimeSearchTopK int     // regimes fetched from the index
	RegimeInsights   int     // regimes kept for each of best and worst
	SimilarLimit     int     // similar strategy ids attached to the explanation
}

// DefaultThresholds returns the default thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		StrongSharpe:     1.5,
		HighWinRate:      0.55,
		LowWinRate:       0.45,
		MaxDrawdown:      0.20,
		MinTrades:        50,
		HighVolatility:   0.05,
		RegimeSearchTopK: 10,
		RegimeInsights:   3,
		SimilarLimit:     3,
	}
}

// SimilarFinder lists neighbours of a strategy
type SimilarFinder interface {
	FindSimilarStrategies(ctx context.Context, req similarity.Request) ([]model.SimilarityResult, error)
}

// Request asks for the explanation of one strategy
type Request struct {
	StrategyID string `json:"strategyId"`
	TenantID   string `json:"tenantId"`
}

// Builder combines backtest metrics with regime search results
type Builder struct {
	loader     *data.Loader
	encoder    *feature.Encoder
	index      index.VectorIndex
	similar    SimilarFinder
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewBuilder creates a new explanation builder. similar may be nil, in which case
// explanations carry no similar strategy ids.
func NewBuilder(loader *data.Loader, encoder *feature.Encoder, idx index.VectorIndex, similar SimilarFinder, thresholds Thresholds, logger zerolog.Logger) *Builder {
	return &Builder{
		loader:     loader,
		encoder:    encoder,
		index:      idx,
		similar:    similar,
		thresholds: thresholds,
		logger:     logging.Component(logger, "explain"),
	}
}

// ExplainStrategy builds the explanation of a strategy. Missing backtests or regime data
// produce empty sections rather than errors.
func (b *Builder) ExplainStrategy(ctx context.Context, req Request) (explanation *model.StrategyExplanation, err error) {
	start := time.Now()
	defer func() {
		metrics.Observe("explain", metrics.OutcomeOf(err, model.IsNotFound), start)
	}()

	strategy, backtests, err := b.loader.Load(ctx, req.StrategyID)
	if err != nil {
		return nil, err
	}

	var bestMetrics *model.BacktestMetrics
	if best := model.SelectBestBacktest(backtests); best != nil {
		bestMetrics = &best.Metrics
	}

	vector := b.encoder.EncodeStrategy(strategy, backtests)
	bestRegimes, worstRegimes, err := b.regimeInsights(ctx, req.TenantID, vector)
	if err != nil {
		return nil, err
	}

	explanation = &model.StrategyExplanation{
		StrategyID:         strategy.ID,
		Name:               strategy.Name,
		Summary:            Summary(strategy, bestMetrics),
		PerformanceFactors: b.PerformanceFactors(bestMetrics),
		BestRegimes:        bestRegimes,
		WorstRegimes:       worstRegimes,
		RiskWarnings:       b.RiskWarnings(bestMetrics),
		SimilarStrategies:  b.similarIDs(ctx, req),
	}

	b.logger.Debug().
		Str("strategy_id", strategy.ID).
		Int("factors", len(explanation.PerformanceFactors)).
		Int("warnings", len(explanation.RiskWarnings)).
		Msg("Strategy explained")

	return explanation, nil
}

// PerformanceFactors derives the factors from the best backtest metrics
func (b *Builder) PerformanceFactors(m *model.BacktestMetrics) []model.PerformanceFactor {
	factors := []model.PerformanceFactor{}
	if m == nil {
		return factors
	}

	if m.SharpeRatio != nil && *m.SharpeRatio > b.thresholds.StrongSharpe {
		factors = append(factors, model.PerformanceFactor{
			Factor:      "Risk-Adjusted Returns",
			Impact:      model.ImpactPositive,
			Description: fmt.Sprintf("Sharpe ratio of %.2f indicates strong risk-adjusted performance", *m.SharpeRatio),
		})
	}

	if m.WinRate != nil {
		switch {
		case *m.WinRate > b.thresholds.HighWinRate:
			factors = append(factors, model.PerformanceFactor{
				Factor:      "Win Rate",
				Impact:      model.ImpactPositive,
				Description: fmt.Sprintf("Win rate of %.1f%% shows consistent trade selection", *m.WinRate*100),
			})
		case *m.WinRate < b.thresholds.LowWinRate:
			factors = append(factors, model.PerformanceFactor{
				Factor:      "Win Rate",
				Impact:      model.ImpactNegative,
				Description: fmt.Sprintf("Win rate of %.1f%% means most trades lose", *m.WinRate*100),
			})
		}
	}

	return factors
}

// RiskWarnings lists every risk the best backtest shows. No backtest means no warnings.
func (b *Builder) RiskWarnings(m *model.BacktestMetrics) []string {
	warnings := []string{}
	if m == nil {
		return warnings
	}

	if m.MaxDrawdown != nil && *m.MaxDrawdown > b.thresholds.MaxDrawdown {
		warnings = append(warnings, fmt.Sprintf(
			"High maximum drawdown of %.1f%%: expect deep equity swings", *m.MaxDrawdown*100))
	}
	if m.WinRate != nil && *m.WinRate < b.thresholds.LowWinRate {
		warnings = append(warnings, fmt.Sprintf(
			"Low win rate of %.1f%%: profitability depends on a few large winners", *m.WinRate*100))
	}
	if m.TotalTrades != nil && *m.TotalTrades < b.thresholds.MinTrades {
		warnings = append(warnings, fmt.Sprintf(
			"Small sample size: only %d trades in the backtest", *m.TotalTrades))
	}

	return warnings
}

// regimeInsights searches the regimes namespace and splits the hits into best and worst
func (b *Builder) regimeInsights(ctx context.Context, tenantID string, vector model.FeatureVector) ([]model.RegimeInsight, []model.RegimeInsight, error) {
	metrics.Searched("explain", model.NamespaceRegimes)
	hits, err := b.index.Search(ctx, model.NamespaceRegimes, index.SearchRequest{
		Vector: vector,
		TopK:   b.thresholds.RegimeSearchTopK,
		Filter: index.Filter{TenantID: tenantID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search regimes: %w", err)
	}

	sorted := make([]model.SearchHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	n := b.thresholds.RegimeInsights
	if n > len(sorted) {
		n = len(sorted)
	}

	best := make([]model.RegimeInsight, 0, n)
	for _, h := range sorted[:n] {
		best = append(best, model.RegimeInsight{
			Regime:      b.DescribeRegime(h.Metadata.Regime),
			Performance: h.Similarity(),
			Description: fmt.Sprintf("Strong pattern match with this regime (%.0f%% similarity)", h.Similarity()*100),
		})
	}

	worst := make([]model.RegimeInsight, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		h := sorted[i]
		worst = append(worst, model.RegimeInsight{
			Regime:      b.DescribeRegime(h.Metadata.Regime),
			Performance: h.Similarity(),
			Description: fmt.Sprintf("Weak pattern match with this regime (%.0f%% similarity)", h.Similarity()*100),
		})
	}

	return best, worst, nil
}

// DescribeRegime labels a regime as "<trend> market with <high|low> volatility"
func (b *Builder) DescribeRegime(r *model.RegimeDescription) string {
	trend := model.TrendNeutral
	volatility := 0.0
	if r != nil {
		if r.Trend != "" {
			trend = r.Trend
		}
		volatility = r.Volatility
	}

	label := "low"
	if volatility > b.thresholds.HighVolatility {
		label = "high"
	}
	return fmt.Sprintf("%s market with %s volatility", trend, label)
}

func (b *Builder) similarIDs(ctx context.Context, req Request) []string {
	ids := []string{}
	if b.similar == nil || b.thresholds.SimilarLimit <= 0 {
		return ids
	}

	results, err := b.similar.FindSimilarStrategies(ctx, similarity.Request{
		StrategyID: req.StrategyID,
		TenantID:   req.TenantID,
		Limit:      b.thresholds.SimilarLimit,
	})
	if err != nil {
		// Neighbours are decoration; the explanation stands without them
		b.logger.Warn().Err(err).Str("strategy_id", req.StrategyID).Msg("Failed to find similar strategies")
		return ids
	}

	for _, r := range results {
		ids = append(ids, r.StrategyID)
	}
	return ids
}

// Summary writes the one-to-two sentence summary of a strategy
func Summary(strategy *model.StrategyRecord, m *model.BacktestMetrics) string {
	first := strategy.Name
	if desc := strings.TrimRight(strings.TrimSpace(strategy.Description), "."); desc != "" {
		first = fmt.Sprintf("%s: %s", strategy.Name, desc)
	}
	sentences := []string{first + "."}

	if m != nil && m.TotalReturn != nil {
		s := fmt.Sprintf("Best backtest returned %.1f%%", *m.TotalReturn*100)
		if m.SharpeRatio != nil {
			s += fmt.Sprintf(" with a Sharpe ratio of %.2f", *m.SharpeRatio)
		}
		sentences = append(sentences, s+".")
	}

	return strings.Join(sentences, " ")
}
