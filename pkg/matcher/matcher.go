// Package matcher finds strategies whose profile fits a (possibly partial) regime.
package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/feature"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/metrics"
	"github.com/tunogya/spi/pkg/model"
)

// DefaultLimit is the number of matches returned when none is requested
const DefaultLimit = 10

// Request asks for strategies matching a regime
type Request struct {
	TenantID       string                      `json:"tenantId"`
	Regime         model.RegimeDescription     `json:"regime"`
	MinPerformance *model.PerformanceThreshold `json:"minPerformance,omitempty"`
	Limit          int                         `json:"limit,omitempty"`
}

// Response carries the matched strategies in index order
type Response struct {
	Strategies []model.RegimeMatch `json:"strategies"`
}

// Matcher queries the strategies namespace with a regime vector
type Matcher struct {
	encoder *feature.Encoder
	index   index.VectorIndex
	logger  zerolog.Logger
}

// NewMatcher creates a new regime matcher
func NewMatcher(encoder *feature.Encoder, idx index.VectorIndex, logger zerolog.Logger) *Matcher {
	return &Matcher{
		encoder: encoder,
		index:   idx,
		logger:  logging.Component(logger, "matcher"),
	}
}

// FindStrategiesForRegime returns up to Limit strategies meeting MinPerformance
func (m *Matcher) FindStrategiesForRegime(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		metrics.Observe("match_regime", metrics.OutcomeOf(err, nil), start)
	}()

	limit := index.ClampLimit(req.Limit, DefaultLimit)

	metrics.Searched("match_regime", model.NamespaceStrategies)
	hits, err := m.index.Search(ctx, model.NamespaceStrategies, index.SearchRequest{
		Vector: m.encoder.EncodeRegime(req.Regime),
		TopK:   limit * 2,
		Filter: index.Filter{TenantID: req.TenantID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search strategies: %w", err)
	}

	resp = &Response{Strategies: make([]model.RegimeMatch, 0, min(limit, len(hits)))}
	for _, hit := range hits {
		if len(resp.Strategies) >= limit {
			break
		}

		perf := model.Performance{
			SharpeRatio: model.Value(hit.Metadata.BacktestMetrics.SharpeRatio),
			TotalReturn: model.Value(hit.Metadata.BacktestMetrics.TotalReturn),
		}
		if !Meets(perf, req.MinPerformance) {
			continue
		}

		resp.Strategies = append(resp.Strategies, model.RegimeMatch{
			StrategyID:  hit.HitStrategyID(),
			Name:        hit.Metadata.Name,
			Performance: perf,
			RegimeMatch: hit.Similarity(),
		})
	}

	m.logger.Debug().
		Str("tenant_id", req.TenantID).
		Int("candidates", len(hits)).
		Int("matched", len(resp.Strategies)).
		Msg("Regime matched")

	return resp, nil
}

// Meets reports whether perf satisfies every supplied threshold
func Meets(perf model.Performance, min *model.PerformanceThreshold) bool {
	if min == nil {
		return true
	}
	if min.SharpeRatio != nil && perf.SharpeRatio < *min.SharpeRatio {
		return false
	}
	if min.TotalReturn != nil && perf.TotalReturn < *min.TotalReturn {
		return false
	}
	return true
}
