// Package window slices candle streams into fixed-length windows for regime detection.
package window

import (
	"github.com/tunogya/spi/pkg/model"
)

// Config holds configuration for a window builder
type Config struct {
	W         int // window length in candles
	S         int // candles between emitted windows
	Warmup    int // candles before the first window, defaults to W
	Symbol    string
	Timeframe string
}

// DefaultConfig returns a Config emitting a 60-candle window every 12 candles
func DefaultConfig(symbol, timeframe string) Config {
	return Config{
		W:         60,
		S:         12,
		Symbol:    symbol,
		Timeframe: timeframe,
	}
}

// Builder turns a stream of candles into sliding windows
type Builder struct {
	cfg       Config
	buffer    *RingBuffer[model.Candle]
	stepCount int
	warmedUp  bool
}

// NewBuilder creates a new window builder
func NewBuilder(cfg Config) *Builder {
	if cfg.W < 1 {
		cfg.W = 1
	}
	if cfg.S < 1 {
		cfg.S = 1
	}
	if cfg.Warmup < cfg.W {
		cfg.Warmup = cfg.W
	}

	return &Builder{
		cfg:    cfg,
		buffer: NewRingBuffer[model.Candle](cfg.W),
	}
}

// Push adds a candle and returns a window when one is due
func (b *Builder) Push(c model.Candle) (*model.Window, bool) {
	b.buffer.Push(c)
	b.stepCount++

	if !b.warmedUp {
		if b.stepCount < b.cfg.Warmup {
			return nil, false
		}
		b.warmedUp = true
		b.stepCount = b.cfg.S
	}

	if !b.buffer.IsFull() || b.stepCount < b.cfg.S {
		return nil, false
	}
	b.stepCount = 0

	last, ok := b.buffer.Last()
	if !ok {
		return nil, false
	}

	return model.NewWindow(b.cfg.Symbol, b.cfg.Timeframe, last.CloseTime, b.cfg.W, b.buffer.Items()), true
}

// ProcessCandles pushes a batch of candles and returns every emitted window
func (b *Builder) ProcessCandles(candles []model.Candle) []*model.Window {
	var windows []*model.Window
	for _, c := range candles {
		if w, ok := b.Push(c); ok {
			windows = append(windows, w)
		}
	}
	return windows
}

// Reset clears the builder state
func (b *Builder) Reset() {
	b.buffer.Clear()
	b.stepCount = 0
	b.warmedUp = false
}

// IsWarmedUp returns true once the warmup period has elapsed
func (b *Builder) IsWarmedUp() bool {
	return b.warmedUp
}
