// Package similarity finds indexed strategies close to a given strategy.
package similarity

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

// DefaultLimit is the number of neighbours returned when none is requested
const DefaultLimit = 5

// Request asks for the neighbours of a strategy
type Request struct {
	StrategyID string `json:"strategyId"`
	TenantID   string `json:"tenantId"`
	Limit      int    `json:"limit,omitempty"`
}

// Finder searches the strategies namespace with a freshly built strategy vector
type Finder struct {
	loader  *data.Loader
	encoder *feature.Encoder
	index   index.VectorIndex
	logger  zerolog.Logger
}

// NewFinder creates a new similarity finder
func NewFinder(loader *data.Loader, encoder *feature.Encoder, idx index.VectorIndex, logger zerolog.Logger) *Finder {
	return &Finder{
		loader:  loader,
		encoder: encoder,
		index:   idx,
		logger:  logging.Component(logger, "similarity"),
	}
}

// FindSimilarStrategies returns up to Limit strategies in index order, never including
// the source strategy. The source vector is rebuilt from current data, not read back from
// the index.
func (f *Finder) FindSimilarStrategies(ctx context.Context, req Request) (results []model.SimilarityResult, err error) {
	start := time.Now()
	defer func() {
		metrics.Observe("find_similar", metrics.OutcomeOf(err, model.IsNotFound), start)
	}()

	limit := index.ClampLimit(req.Limit, DefaultLimit)

	strategy, backtests, err := f.loader.Load(ctx, req.StrategyID)
	if err != nil {
		return nil, err
	}

	// One extra slot for the source strategy itself
	metrics.Searched("find_similar", model.NamespaceStrategies)
	hits, err := f.index.Search(ctx, model.NamespaceStrategies, index.SearchRequest{
		Vector: f.encoder.EncodeStrategy(strategy, backtests),
		TopK:   limit + 1,
		Filter: index.Filter{TenantID: req.TenantID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search strategies: %w", err)
	}

	results = make([]model.SimilarityResult, 0, min(limit, len(hits)))
	for _, hit := range hits {
		if len(results) >= limit {
			break
		}
		if hit.HitStrategyID() == req.StrategyID || hit.ID == req.StrategyID {
			continue
		}
		results = append(results, model.SimilarityResult{
			StrategyID:     hit.HitStrategyID(),
			Name:           hit.Metadata.Name,
			Similarity:     hit.Similarity(),
			KeyDifferences: []string{},
		})
	}

	f.logger.Debug().
		Str("strategy_id", req.StrategyID).
		Int("results", len(results)).
		Msg("Similar strategies found")

	return results, nil
}
