// Package outcome measures what the market did after a regime was observed.
package outcome

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/model"
)

// DefaultHorizons are the forward horizons in bars
var DefaultHorizons = []int{5, 20, 60}

// Result holds forward statistics for one regime and horizon
type Result struct {
	RegimeID    string  `json:"regimeId"`
	Horizon     int     `json:"horizon"`
	FwdRetMean  float64 `json:"fwdRetMean"`
	FwdRetP10   float64 `json:"fwdRetP10"`
	FwdRetP50   float64 `json:"fwdRetP50"`
	FwdRetP90   float64 `json:"fwdRetP90"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	FwdCandles  int     `json:"fwdCandles"` // fewer than Horizon means the history ends early
}

// Complete reports whether the full horizon of candles was available
func (r Result) Complete() bool {
	return r.FwdCandles >= r.Horizon
}

// Point is the market position a regime was observed at
type Point struct {
	RegimeID   string
	Symbol     string
	Timeframe  string
	ObservedAt time.Time
}

// Engine calculates forward-looking statistics from stored candles
type Engine struct {
	candles   data.CandleProvider
	lookahead time.Duration
}

// NewEngine creates a new outcome engine. lookahead bounds the candle range fetched
// on each side of the observation.
func NewEngine(candles data.CandleProvider, lookahead time.Duration) *Engine {
	if lookahead <= 0 {
		lookahead = 90 * 24 * time.Hour
	}
	return &Engine{candles: candles, lookahead: lookahead}
}

// Calculate computes forward statistics after p for each horizon. The base price is
// the close of the last candle ending at or before the observation.
func (e *Engine) Calculate(ctx context.Context, p Point, horizons []int) ([]Result, error) {
	candles, err := e.candles.FetchCandles(ctx, p.Symbol, p.Timeframe, p.ObservedAt.Add(-e.lookahead), p.ObservedAt.Add(e.lookahead))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles around %s: %w", p.RegimeID, err)
	}

	var base *model.Candle
	forward := make([]model.Candle, 0, len(candles))
	for i := range candles {
		c := candles[i]
		switch {
		case !c.OpenTime.Before(p.ObservedAt):
			forward = append(forward, c)
		case !c.CloseTime.After(p.ObservedAt):
			base = &candles[i]
		}
	}

	results := make([]Result, 0, len(horizons))
	for _, horizon := range horizons {
		if base == nil || base.Close == 0 {
			results = append(results, Result{RegimeID: p.RegimeID, Horizon: horizon})
			continue
		}
		window := forward
		if len(window) > horizon {
			window = window[:horizon]
		}
		results = append(results, calculateStats(p.RegimeID, horizon, base.Close, window))
	}

	return results, nil
}

func calculateStats(regimeID string, horizon int, basePrice float64, candles []model.Candle) Result {
	if len(candles) == 0 {
		return Result{RegimeID: regimeID, Horizon: horizon}
	}

	returns := make([]float64, len(candles))
	for i, c := range candles {
		returns[i] = (c.Close - basePrice) / basePrice
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	return Result{
		RegimeID:    regimeID,
		Horizon:     horizon,
		FwdRetMean:  stat.Mean(returns, nil),
		FwdRetP10:   percentile(sorted, 10),
		FwdRetP50:   percentile(sorted, 50),
		FwdRetP90:   percentile(sorted, 90),
		MaxDrawdown: maxDrawdown(basePrice, candles),
		FwdCandles:  len(candles),
	}
}

// maxDrawdown is the deepest intrabar decline from the running peak, starting at basePrice
func maxDrawdown(basePrice float64, candles []model.Candle) float64 {
	peak := basePrice
	maxDD := 0.0

	for _, c := range candles {
		if c.High > peak {
			peak = c.High
		}
		if dd := (peak - c.Low) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// percentile interpolates linearly between closest ranks (p in 0-100)
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return sorted[lower] + fraction*(sorted[upper]-sorted[lower])
}

// Aggregate summarises results of many regimes per horizon
type Aggregate struct {
	Horizon       int     `json:"horizon"`
	SampleCount   int     `json:"sampleCount"`
	MeanReturn    float64 `json:"meanReturn"`
	MeanP10       float64 `json:"meanP10"`
	MeanP50       float64 `json:"meanP50"`
	MeanP90       float64 `json:"meanP90"`
	DrawdownP95   float64 `json:"drawdownP95"`
	PositiveRatio float64 `json:"positiveRatio"`
}

// AggregateResults summarises complete results per horizon, ordered by horizon
func AggregateResults(results []Result) []Aggregate {
	byHorizon := make(map[int][]Result)
	for _, r := range results {
		if r.Complete() {
			byHorizon[r.Horizon] = append(byHorizon[r.Horizon], r)
		}
	}

	aggregates := make([]Aggregate, 0, len(byHorizon))
	for horizon, rs := range byHorizon {
		means := make([]float64, len(rs))
		p10s := make([]float64, len(rs))
		p50s := make([]float64, len(rs))
		p90s := make([]float64, len(rs))
		mdds := make([]float64, len(rs))
		positive := 0

		for i, r := range rs {
			means[i] = r.FwdRetMean
			p10s[i] = r.FwdRetP10
			p50s[i] = r.FwdRetP50
			p90s[i] = r.FwdRetP90
			mdds[i] = r.MaxDrawdown
			if r.FwdRetMean > 0 {
				positive++
			}
		}
		sort.Float64s(mdds)

		aggregates = append(aggregates, Aggregate{
			Horizon:       horizon,
			SampleCount:   len(rs),
			MeanReturn:    stat.Mean(means, nil),
			MeanP10:       stat.Mean(p10s, nil),
			MeanP50:       stat.Mean(p50s, nil),
			MeanP90:       stat.Mean(p90s, nil),
			DrawdownP95:   percentile(mdds, 95),
			PositiveRatio: float64(positive) / float64(len(rs)),
		})
	}

	sort.Slice(aggregates, func(i, j int) bool { return aggregates[i].Horizon < aggregates[j].Horizon })
	return aggregates
}

// String returns a one-line summary
func (a Aggregate) String() string {
	return fmt.Sprintf(
		"Horizon: %d bars | Samples: %d | Mean: %.4f | P10: %.4f | P50: %.4f | P90: %.4f | MDD95: %.4f | Up: %.0f%%",
		a.Horizon, a.SampleCount, a.MeanReturn, a.MeanP10, a.MeanP50, a.MeanP90, a.DrawdownP95, a.PositiveRatio*100,
	)
}
