// Package analogue finds past regimes resembling a current one and reports what followed them.
package analogue

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
	"github.com/tunogya/spi/pkg/outcome"
	"github.com/tunogya/spi/pkg/rerank"
)

// DefaultLimit is the number of analogues returned when none is requested
const DefaultLimit = 5

// Request asks for historical analogues of a regime
type Request struct {
	TenantID string                  `json:"tenantId"`
	Regime   model.RegimeDescription `json:"regime"`
	Limit    int                     `json:"limit,omitempty"`
	Horizons []int                   `json:"horizons,omitempty"`
}

// Analogue is one past regime with its recency-adjusted score
type Analogue struct {
	RegimeID   string                  `json:"regimeId"`
	Symbol     string                  `json:"symbol,omitempty"`
	Timeframe  string                  `json:"timeframe,omitempty"`
	ObservedAt time.Time               `json:"observedAt"`
	Regime     model.RegimeDescription `json:"regime"`
	Similarity float64                 `json:"similarity"`
	TimeWeight float64                 `json:"timeWeight"`
	Score      float64                 `json:"score"`
	Outcomes   []outcome.Result        `json:"outcomes,omitempty"`
}

// Response carries the analogues and, when outcomes were measured, their summary
type Response struct {
	Analogues []Analogue          `json:"analogues"`
	Summary   []outcome.Aggregate `json:"summary,omitempty"`
}

// Finder searches the regimes namespace
type Finder struct {
	encoder  *feature.Encoder
	index    index.VectorIndex
	reranker *rerank.Reranker
	outcomes *outcome.Engine
	logger   zerolog.Logger
	now      func() time.Time
}

// NewFinder creates a new analogue finder. outcomes may be nil, in which case
// analogues carry no forward statistics.
func NewFinder(encoder *feature.Encoder, idx index.VectorIndex, reranker *rerank.Reranker, outcomes *outcome.Engine, logger zerolog.Logger) *Finder {
	if reranker == nil {
		reranker = rerank.NewReranker(rerank.DefaultTimeDecayConfig())
	}
	return &Finder{
		encoder:  encoder,
		index:    idx,
		reranker: reranker,
		outcomes: outcomes,
		logger:   logging.Component(logger, "analogue"),
		now:      time.Now,
	}
}

// FindAnalogues returns the past regimes closest to req.Regime, reranked by recency
func (f *Finder) FindAnalogues(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		metrics.Observe("find_analogues", metrics.OutcomeOf(err, nil), start)
	}()

	limit := index.ClampLimit(req.Limit, DefaultLimit)
	horizons := req.Horizons
	if len(horizons) == 0 {
		horizons = outcome.DefaultHorizons
	}

	metrics.Searched("find_analogues", model.NamespaceRegimes)
	hits, err := f.index.Search(ctx, model.NamespaceRegimes, index.SearchRequest{
		Vector: f.encoder.EncodeRegime(req.Regime),
		TopK:   limit * 3,
		Filter: index.Filter{TenantID: req.TenantID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search regimes: %w", err)
	}

	ranked := f.reranker.TopN(hits, f.now(), limit)

	resp = &Response{Analogues: make([]Analogue, 0, len(ranked))}
	var all []outcome.Result
	for _, r := range ranked {
		a := toAnalogue(r)
		if f.outcomes != nil && a.Symbol != "" && a.Timeframe != "" {
			results, err := f.outcomes.Calculate(ctx, outcome.Point{
				RegimeID:   a.RegimeID,
				Symbol:     a.Symbol,
				Timeframe:  a.Timeframe,
				ObservedAt: a.ObservedAt,
			}, horizons)
			if err != nil {
				f.logger.Warn().Err(err).Str("regime_id", a.RegimeID).Msg("outcome unavailable")
			} else {
				a.Outcomes = results
				all = append(all, results...)
			}
		}
		resp.Analogues = append(resp.Analogues, a)
	}
	if len(all) > 0 {
		resp.Summary = outcome.AggregateResults(all)
	}

	f.logger.Debug().
		Str("tenant_id", req.TenantID).
		Int("candidates", len(hits)).
		Int("analogues", len(resp.Analogues)).
		Msg("Analogues found")

	return resp, nil
}

func toAnalogue(r rerank.RankedHit) Analogue {
	md := r.Metadata
	a := Analogue{
		RegimeID:   md.RegimeID,
		Timeframe:  md.Timeframe,
		ObservedAt: md.CreatedAt,
		Similarity: r.Similarity(),
		TimeWeight: r.TimeWeight,
		Score:      r.FinalScore,
	}
	if a.RegimeID == "" {
		a.RegimeID = r.ID
	}
	if len(md.Symbols) > 0 {
		a.Symbol = md.Symbols[0]
	}
	if md.Regime != nil {
		a.Regime = *md.Regime
	}
	return a
}
