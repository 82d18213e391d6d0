// Package regime derives market regime descriptions from candle windows.
package regime

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/tunogya/spi/pkg/model"
)

// Indicator names attached to detected regimes
const (
	IndicatorATR         = "atr"
	IndicatorMaxDrawdown = "max_drawdown"
	IndicatorTrendSlope  = "trend_slope"
	IndicatorVolZScore   = "vol_z_score"
)

// Config holds the classification bands
type Config struct {
	TrendBand     float64 // |slope| below this is neutral
	LiquidityBand float64 // |volume z-score| below this is medium liquidity
}

// DefaultConfig returns the default bands
func DefaultConfig() Config {
	return Config{
		TrendBand:     0.005,
		LiquidityBand: 0.5,
	}
}

// Detector turns windows of candles into regime descriptions
type Detector struct {
	config Config
}

// NewDetector creates a new regime detector
func NewDetector(cfg Config) *Detector {
	return &Detector{config: cfg}
}

// Detect describes the regime of a candle window. Fewer than two candles yield the
// neutral regime.
func (d *Detector) Detect(candles []model.Candle) model.RegimeDescription {
	if len(candles) < 2 {
		return model.RegimeDescription{Trend: model.TrendNeutral, Liquidity: model.LiquidityMedium}
	}

	slope := TrendSlope(candles)
	volZ := VolumeZScore(candles)

	return model.RegimeDescription{
		Volatility: RealizedVolatility(candles),
		Trend:      d.classifyTrend(slope),
		Liquidity:  d.classifyLiquidity(volZ),
		Indicators: map[string]float64{
			IndicatorATR:         ATR(candles),
			IndicatorMaxDrawdown: MaxDrawdown(candles),
			IndicatorTrendSlope:  slope,
			IndicatorVolZScore:   volZ,
		},
	}
}

// DetectWindow builds a regime snapshot for a window
func (d *Detector) DetectWindow(tenantID string, w *model.Window) model.RegimeSnapshot {
	return model.RegimeSnapshot{
		ID:         w.WindowID,
		TenantID:   tenantID,
		Symbol:     w.Symbol,
		Timeframe:  w.Timeframe,
		Regime:     d.Detect(w.Candles),
		ObservedAt: w.TEnd,
	}
}

func (d *Detector) classifyTrend(slope float64) model.Trend {
	switch {
	case slope > d.config.TrendBand:
		return model.TrendBullish
	case slope < -d.config.TrendBand:
		return model.TrendBearish
	default:
		return model.TrendNeutral
	}
}

func (d *Detector) classifyLiquidity(volZ float64) model.Liquidity {
	switch {
	case volZ >= d.config.LiquidityBand:
		return model.LiquidityHigh
	case volZ <= -d.config.LiquidityBand:
		return model.LiquidityLow
	default:
		return model.LiquidityMedium
	}
}

// TrendSlope calculates the linear regression slope of closes relative to the first close
func TrendSlope(candles []model.Candle) float64 {
	if len(candles) < 2 || candles[0].Close == 0 {
		return 0
	}

	base := candles[0].Close
	xs := make([]float64, len(candles))
	ys := make([]float64, len(candles))
	for i, c := range candles {
		xs[i] = float64(i)
		ys[i] = (c.Close - base) / base
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// RealizedVolatility calculates the standard deviation of close-to-close returns
func RealizedVolatility(candles []model.Candle) float64 {
	if len(candles) < 3 {
		return 0
	}

	returns := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		returns[i-1] = candles[i].ReturnFrom(&candles[i-1])
	}

	_, std := stat.MeanStdDev(returns, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}

// MaxDrawdown calculates the maximum peak-to-trough decline of closes
func MaxDrawdown(candles []model.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	peak := candles[0].Close
	maxDD := 0.0
	for _, c := range candles {
		if c.Close > peak {
			peak = c.Close
		}
		if peak > 0 {
			if dd := (peak - c.Close) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// ATR calculates the average true range normalized by the first close
func ATR(candles []model.Candle) float64 {
	if len(candles) < 2 || candles[0].Close == 0 {
		return 0
	}

	var sumTR float64
	for i := 1; i < len(candles); i++ {
		sumTR += candles[i].TrueRange(&candles[i-1])
	}

	atr := sumTR / float64(len(candles)-1)
	return atr / candles[0].Close
}

// VolumeZScore calculates the z-score of the last candle's volume within the window
func VolumeZScore(candles []model.Candle) float64 {
	if len(candles) < 3 {
		return 0
	}

	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	mean, std := stat.MeanStdDev(volumes, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}

	return (candles[len(candles)-1].Volume - mean) / std
}
