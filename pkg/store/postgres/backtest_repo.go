package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/model"
)

// BacktestRepo reads and writes backtests
type BacktestRepo struct {
	db *DB
}

var _ data.BacktestReader = (*BacktestRepo)(nil)

// NewBacktestRepo creates a new backtest repository
func NewBacktestRepo(db *DB) *BacktestRepo {
	return &BacktestRepo{db: db}
}

// FindByStrategyID returns every backtest of a strategy in creation order
func (r *BacktestRepo) FindByStrategyID(ctx context.Context, strategyID string) ([]model.BacktestRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, strategy_id, status, metrics, completed_at
		FROM backtests WHERE strategy_id = $1
		ORDER BY created_at, id
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtests of %s: %w", strategyID, err)
	}

	backtests, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BacktestRecord, error) {
		var b model.BacktestRecord
		var metrics []byte
		var completedAt *time.Time

		if err := row.Scan(&b.ID, &b.StrategyID, &b.Status, &metrics, &completedAt); err != nil {
			return b, err
		}
		b.CompletedAt = completedAt

		m, err := decodeMetrics(metrics)
		if err != nil {
			return b, fmt.Errorf("failed to decode metrics of backtest %s: %w", b.ID, err)
		}
		b.Metrics = m
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan backtests of %s: %w", strategyID, err)
	}

	return backtests, nil
}

// Save upserts a backtest
func (r *BacktestRepo) Save(ctx context.Context, b *model.BacktestRecord) error {
	metrics, err := json.Marshal(b.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO backtests (id, strategy_id, status, metrics, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			metrics = EXCLUDED.metrics,
			completed_at = EXCLUDED.completed_at
	`, b.ID, b.StrategyID, b.Status, metrics, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save backtest %s: %w", b.ID, err)
	}
	return nil
}

// decodeMetrics reads the metrics document; keys not present stay absent
func decodeMetrics(raw []byte) (model.BacktestMetrics, error) {
	var m model.BacktestMetrics
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}
