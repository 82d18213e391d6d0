package data

import (
	"context"
	"time"

	"github.com/tunogya/spi/pkg/model"
)

// StrategyReader looks up strategies by id.
// FindByID returns (nil, nil) when the strategy does not exist.
type StrategyReader interface {
	FindByID(ctx context.Context, id string) (*model.StrategyRecord, error)
}

// BacktestReader lists every backtest of a strategy, in storage order
type BacktestReader interface {
	FindByStrategyID(ctx context.Context, strategyID string) ([]model.BacktestRecord, error)
}

// CandleProvider defines the interface for fetching historical candle data
type CandleProvider interface {
	// FetchCandles retrieves historical K-line data for a given symbol and timeframe
	// Returns candles ordered by time (oldest first)
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error)
}
