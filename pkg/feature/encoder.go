package feature

import (
	"github.com/tunogya/spi/pkg/model"
)

// Encoder turns regimes and strategies into fixed-length, L2-normalized feature vectors.
// It holds no mutable state and is safe for concurrent use.
type Encoder struct {
	Dim  int          // Target dimension for every vector
	Text TextEmbedder // Strategy text embedding (defaults to HashEmbedder)
}

// NewEncoder creates a new encoder for the given dimension
func NewEncoder(dim int) *Encoder {
	if dim <= 0 {
		dim = model.DefaultVectorDim
	}
	return &Encoder{
		Dim:  dim,
		Text: NewHashEmbedder(),
	}
}

// Number of leading regime slots taken by volatility, trend and liquidity
const regimeBaseSlots = 3

// EncodeRegime builds the regime vector.
//
// Layout: [0] volatility, [1] trend, [2] liquidity, [3, dim/2) tanh-squashed indicators in
// ascending name order. Extra indicators are dropped, unused slots stay zero.
func (e *Encoder) EncodeRegime(regime model.RegimeDescription) model.FeatureVector {
	vector := model.NewFeatureVector(e.Dim)

	base := []float64{
		regime.Volatility,
		regime.Trend.Encode(),
		regime.Liquidity.Encode(),
	}
	for i, v := range base {
		if i < e.Dim {
			vector[i] = float32(v)
		}
	}

	idx := regimeBaseSlots
	limit := e.Dim / 2
	for _, name := range regime.IndicatorNames() {
		if idx >= limit {
			break
		}
		vector[idx] = float32(Squash(regime.Indicators[name]))
		idx++
	}

	return Normalize(vector)
}

// EncodeStrategy builds the strategy vector from its text and best backtest.
//
// Layout: [0, dim/4) text embedding, [dim/4, dim/4+4) totalReturn, sharpeRatio, maxDrawdown,
// winRate of the best backtest (0 when absent), remaining slots zero.
// Callers pass the backtests they consider eligible; selection uses model.SelectBestBacktest.
func (e *Encoder) EncodeStrategy(strategy *model.StrategyRecord, backtests []model.BacktestRecord) model.FeatureVector {
	var metrics model.BacktestMetrics
	if best := model.SelectBestBacktest(backtests); best != nil {
		metrics = best.Metrics
	}
	return e.EncodeStrategyMetrics(strategy, metrics)
}

// EncodeStrategyMetrics builds the strategy vector from already selected metrics
func (e *Encoder) EncodeStrategyMetrics(strategy *model.StrategyRecord, metrics model.BacktestMetrics) model.FeatureVector {
	vector := model.NewFeatureVector(e.Dim)
	textSlots := e.Dim / 4

	// Fill with text embedding
	text := strategy.Name + " " + strategy.Description
	for i, v := range e.textEmbedder().Embed(text, textSlots) {
		if i >= textSlots {
			break
		}
		vector[i] = float32(v)
	}

	// Fill with best backtest metrics
	perf := []float64{
		model.Value(metrics.TotalReturn),
		model.Value(metrics.SharpeRatio),
		model.Value(metrics.MaxDrawdown),
		model.Value(metrics.WinRate),
	}
	for i, v := range perf {
		idx := textSlots + i
		if idx >= e.Dim {
			break
		}
		vector[idx] = float32(v)
	}

	return Normalize(vector)
}

func (e *Encoder) textEmbedder() TextEmbedder {
	if e.Text == nil {
		return NewHashEmbedder()
	}
	return e.Text
}
