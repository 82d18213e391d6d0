package data

import (
	"context"
	"fmt"

	"github.com/tunogya/spi/pkg/model"
)

// Loader resolves a strategy together with its completed backtests.
// Ingestion, similarity and explanation all load through it so they agree on the
// same best backtest.
type Loader struct {
	Strategies StrategyReader
	Backtests  BacktestReader
}

// NewLoader creates a new loader
func NewLoader(strategies StrategyReader, backtests BacktestReader) *Loader {
	return &Loader{Strategies: strategies, Backtests: backtests}
}

// Load returns the strategy and its completed backtests, or a NotFoundError
func (l *Loader) Load(ctx context.Context, strategyID string) (*model.StrategyRecord, []model.BacktestRecord, error) {
	strategy, err := l.Strategies.FindByID(ctx, strategyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load strategy: %w", err)
	}
	if strategy == nil {
		return nil, nil, model.NewNotFound("Strategy", strategyID)
	}

	backtests, err := l.Backtests.FindByStrategyID(ctx, strategyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load backtests: %w", err)
	}

	return strategy, model.CompletedBacktests(backtests), nil
}
