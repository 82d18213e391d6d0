package model

import (
	"math"
	"time"
)

// Candle represents a single K-line used to derive market regimes
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Trades    int64     `json:"trades,omitempty"`
}

// ReturnFrom calculates the close-to-close return relative to the previous candle
func (c *Candle) ReturnFrom(prev *Candle) float64 {
	if prev == nil || prev.Close == 0 {
		return 0
	}
	return (c.Close - prev.Close) / prev.Close
}

// TrueRange calculates the true range against the previous close.
// Without a previous candle it falls back to the high-low range.
func (c *Candle) TrueRange(prev *Candle) float64 {
	hl := c.High - c.Low
	if prev == nil {
		return hl
	}
	return math.Max(hl, math.Max(
		math.Abs(c.High-prev.Close),
		math.Abs(c.Low-prev.Close),
	))
}
