// Package ingest writes strategy and regime vectors into the similarity index.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/metrics"
	"github.com/tunogya/spi/pkg/model"
)

// Pipeline builds feature vectors and upserts them into the index.
// Triggering is left to the caller: backtest completion events, strategy edits or a sweep.
type Pipeline struct {
	loader  *data.Loader
	encoder *feature.Encoder
	index   index.VectorIndex
	logger  zerolog.Logger
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(loader *data.Loader, encoder *feature.Encoder, idx index.VectorIndex, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		loader:  loader,
		encoder: encoder,
		index:   idx,
		logger:  logging.Component(logger, "ingest"),
	}
}

// IngestStrategy encodes a strategy with its best completed backtest and upserts it
// under the strategies namespace. Repeated calls with unchanged data write the same entry.
func (p *Pipeline) IngestStrategy(ctx context.Context, strategyID string) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOf(err, model.IsNotFound)
		metrics.Ingested(model.NamespaceStrategies, outcome)
		metrics.Observe("ingest_strategy", outcome, start)
	}()

	strategy, backtests, err := p.loader.Load(ctx, strategyID)
	if err != nil {
		return err
	}

	entry := p.BuildStrategyEntry(strategy, backtests)
	if err := p.index.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{entry}); err != nil {
		p.logger.Error().
			Err(err).
			Str("strategy_id", strategyID).
			Msg("Failed to upsert strategy vector")
		return fmt.Errorf("failed to upsert strategy %s: %w", strategyID, err)
	}

	p.logger.Info().
		Str("strategy_id", strategyID).
		Str("tenant_id", strategy.TenantID).
		Int("completed_backtests", len(backtests)).
		Msg("Strategy ingested")

	return nil
}

// BuildStrategyEntry assembles the index entry for a strategy and its completed backtests
func (p *Pipeline) BuildStrategyEntry(strategy *model.StrategyRecord, backtests []model.BacktestRecord) model.IndexEntry {
	var metricsSnapshot model.BacktestMetrics
	if best := model.SelectBestBacktest(backtests); best != nil {
		metricsSnapshot = best.Metrics
	}

	return model.IndexEntry{
		ID:        strategy.ID,
		Vector:    p.encoder.EncodeStrategyMetrics(strategy, metricsSnapshot),
		Namespace: model.NamespaceStrategies,
		Metadata: model.Metadata{
			TenantID:        strategy.TenantID,
			StrategyID:      strategy.ID,
			Name:            strategy.Name,
			Tier:            strategy.Tier,
			BacktestMetrics: metricsSnapshot,
			Symbols:         strategy.Symbols(),
			CreatedAt:       strategy.CreatedAt,
			UpdatedAt:       strategy.UpdatedAt,
		},
	}
}

// IngestRegime encodes a regime snapshot and upserts it under the regimes namespace
func (p *Pipeline) IngestRegime(ctx context.Context, snapshot model.RegimeSnapshot) error {
	return p.IngestRegimes(ctx, []model.RegimeSnapshot{snapshot})
}

// IngestRegimes upserts a batch of regime snapshots
func (p *Pipeline) IngestRegimes(ctx context.Context, snapshots []model.RegimeSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOf(err, nil)
		metrics.Ingested(model.NamespaceRegimes, outcome)
		metrics.Observe("ingest_regime", outcome, start)
	}()

	entries := make([]model.IndexEntry, 0, len(snapshots))
	for _, s := range snapshots {
		regime := s.Regime
		entries = append(entries, model.IndexEntry{
			ID:        s.ID,
			Vector:    p.encoder.EncodeRegime(regime),
			Namespace: model.NamespaceRegimes,
			Metadata: model.Metadata{
				TenantID:  s.TenantID,
				RegimeID:  s.ID,
				Regime:    &regime,
				Symbols:   symbolsOf(s),
				Timeframe: s.Timeframe,
				CreatedAt: s.ObservedAt,
				UpdatedAt: s.ObservedAt,
			},
		})
	}

	if err := p.index.Upsert(ctx, model.NamespaceRegimes, entries); err != nil {
		return fmt.Errorf("failed to upsert %d regimes: %w", len(entries), err)
	}

	p.logger.Debug().Int("count", len(entries)).Msg("Regimes ingested")
	return nil
}

func symbolsOf(s model.RegimeSnapshot) []string {
	if s.Symbol == "" {
		return nil
	}
	return []string{s.Symbol}
}
