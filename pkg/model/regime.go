package model

import (
	"sort"
	"time"
)

// Trend is the directional bias of a market regime
type Trend string

// Trend values
const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// Encode maps the trend onto [-1, 1]. Unknown values encode as neutral.
func (t Trend) Encode() float64 {
	switch t {
	case TrendBullish:
		return 1
	case TrendBearish:
		return -1
	default:
		return 0
	}
}

// Liquidity is the depth classification of a market regime
type Liquidity string

// Liquidity values
const (
	LiquidityHigh   Liquidity = "high"
	LiquidityMedium Liquidity = "medium"
	LiquidityLow    Liquidity = "low"
)

// Encode maps liquidity onto [0, 1]. Unknown values encode as 0.
func (l Liquidity) Encode() float64 {
	switch l {
	case LiquidityHigh:
		return 1
	case LiquidityMedium:
		return 0.5
	default:
		return 0
	}
}

// RegimeDescription is a market-condition snapshot used as a query key
type RegimeDescription struct {
	Volatility float64            `json:"volatility"`
	Trend      Trend              `json:"trend,omitempty"`
	Liquidity  Liquidity          `json:"liquidity,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// IndicatorNames returns the indicator names in ascending order
func (r RegimeDescription) IndicatorNames() []string {
	names := make([]string, 0, len(r.Indicators))
	for name := range r.Indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegimeSnapshot is a regime observed for a tenant at a point in time
type RegimeSnapshot struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Symbol     string            `json:"symbol,omitempty"`
	Timeframe  string            `json:"timeframe,omitempty"`
	Regime     RegimeDescription `json:"regime"`
	ObservedAt time.Time         `json:"observed_at"`
}
