// Package intel wires the ingestion pipeline and the query components into one service.
package intel

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/explain"
	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/ingest"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/matcher"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/outcome"
	"github.com/tunogya/spi/pkg/recommend"
	"github.com/tunogya/spi/pkg/regime"
	"github.com/tunogya/spi/pkg/rerank"
	"github.com/tunogya/spi/pkg/similarity"
)

// Deps are the collaborators the service is built from
type Deps struct {
	Strategies data.StrategyReader
	Backtests  data.BacktestReader
	Index      index.VectorIndex
	Dimension  int
	Thresholds *explain.Thresholds
	Regime     *regime.Config
	// Candles enables forward outcomes on regime analogues; nil disables them
	Candles data.CandleProvider
	// Cache holds copies of the strategies read by the pipeline. Optional.
	Cache  CacheInvalidator
	Logger zerolog.Logger
}

// CacheInvalidator drops cached copies of a strategy
type CacheInvalidator interface {
	Invalidate(ctx context.Context, strategyID string) error
}

// StrategyLister enumerates strategies for full re-indexing
type StrategyLister interface {
	ListIDs(ctx context.Context, tenantID string) ([]string, error)
}

// Service exposes every strategy intelligence operation
type Service struct {
	Pipeline    *ingest.Pipeline
	Recommender *recommend.Engine
	Finder      *similarity.Finder
	Explainer   *explain.Builder
	Matcher     *matcher.Matcher
	Detector    *regime.Detector
	Analogues   *analogue.Finder

	cache  CacheInvalidator
	logger zerolog.Logger
}

// New builds a service sharing one encoder, loader and index across components
func New(deps Deps) (*Service, error) {
	if deps.Strategies == nil || deps.Backtests == nil {
		return nil, errors.New("strategy and backtest readers are required")
	}
	if deps.Index == nil {
		return nil, errors.New("vector index is required")
	}

	encoder := feature.NewEncoder(deps.Dimension)
	loader := data.NewLoader(deps.Strategies, deps.Backtests)

	thresholds := explain.DefaultThresholds()
	if deps.Thresholds != nil {
		thresholds = *deps.Thresholds
	}
	regimeCfg := regime.DefaultConfig()
	if deps.Regime != nil {
		regimeCfg = *deps.Regime
	}

	finder := similarity.NewFinder(loader, encoder, deps.Index, deps.Logger)

	var outcomes *outcome.Engine
	if deps.Candles != nil {
		outcomes = outcome.NewEngine(deps.Candles, 0)
	}

	return &Service{
		Pipeline:    ingest.NewPipeline(loader, encoder, deps.Index, deps.Logger),
		Recommender: recommend.NewEngine(encoder, deps.Index, deps.Logger),
		Finder:      finder,
		Explainer:   explain.NewBuilder(loader, encoder, deps.Index, finder, thresholds, deps.Logger),
		Matcher:     matcher.NewMatcher(encoder, deps.Index, deps.Logger),
		Detector:    regime.NewDetector(regimeCfg),
		Analogues:   analogue.NewFinder(encoder, deps.Index, rerank.NewReranker(rerank.DefaultTimeDecayConfig()), outcomes, deps.Logger),
		cache:       deps.Cache,
		logger:      logging.Component(deps.Logger, "intel"),
	}, nil
}

// IngestStrategy indexes one strategy from its current stored state. A cached copy
// is dropped first; if that fails the cache has marked itself unavailable and reads
// fall through to the store.
func (s *Service) IngestStrategy(ctx context.Context, strategyID string) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, strategyID); err != nil {
			s.logger.Warn().Err(err).Str("strategy_id", strategyID).Msg("cache invalidation failed")
		}
	}
	return s.Pipeline.IngestStrategy(ctx, strategyID)
}

// IngestRegimes indexes regime snapshots
func (s *Service) IngestRegimes(ctx context.Context, snapshots []model.RegimeSnapshot) error {
	return s.Pipeline.IngestRegimes(ctx, snapshots)
}

// Recommend returns strategies suited to the request's regime
func (s *Service) Recommend(ctx context.Context, req recommend.Request) ([]model.Recommendation, error) {
	return s.Recommender.RecommendForRegime(ctx, req)
}

// RecommendForCandles detects the regime of a candle window and recommends for it
func (s *Service) RecommendForCandles(ctx context.Context, req recommend.Request, candles []model.Candle) ([]model.Recommendation, model.RegimeDescription, error) {
	req.CurrentRegime = s.Detector.Detect(candles)
	recs, err := s.Recommender.RecommendForRegime(ctx, req)
	return recs, req.CurrentRegime, err
}

// FindSimilar returns the neighbours of a strategy
func (s *Service) FindSimilar(ctx context.Context, req similarity.Request) ([]model.SimilarityResult, error) {
	return s.Finder.FindSimilarStrategies(ctx, req)
}

// Explain builds the explanation of a strategy
func (s *Service) Explain(ctx context.Context, req explain.Request) (*model.StrategyExplanation, error) {
	return s.Explainer.ExplainStrategy(ctx, req)
}

// Match returns strategies fitting a regime and performance floor
func (s *Service) Match(ctx context.Context, req matcher.Request) (*matcher.Response, error) {
	return s.Matcher.FindStrategiesForRegime(ctx, req)
}

// FindAnalogues returns past regimes resembling the request's regime
func (s *Service) FindAnalogues(ctx context.Context, req analogue.Request) (*analogue.Response, error) {
	return s.Analogues.FindAnalogues(ctx, req)
}

// ReindexReport summarises a full re-index
type ReindexReport struct {
	Indexed int      `json:"indexed"`
	Failed  []string `json:"failed"`
}

// ReindexAll ingests every strategy the lister returns. Individual failures are
// collected in the report; only a listing failure aborts.
func (s *Service) ReindexAll(ctx context.Context, lister StrategyLister, tenantID string) (*ReindexReport, error) {
	ids, err := lister.ListIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}

	report := &ReindexReport{Failed: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.IngestStrategy(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("strategy_id", id).Msg("reindex failed")
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Indexed++
	}

	s.logger.Info().Int("indexed", report.Indexed).Int("failed", len(report.Failed)).Msg("reindex complete")
	return report, nil
}
