package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/model"
)

const upsertCandle = `
	INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume, trades)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
		close_time = EXCLUDED.close_time,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		trades = EXCLUDED.trades
`

const selectCandles = `
	SELECT symbol, timeframe, open_time, close_time, open, high, low, close, volume, trades
	FROM candles
`

// CandleRepo persists candles
type CandleRepo struct {
	client *Client
}

var _ data.CandleProvider = (*CandleRepo)(nil)

// NewCandleRepo creates a new candle repository
func NewCandleRepo(client *Client) *CandleRepo {
	return &CandleRepo{client: client}
}

// InsertBatch upserts candles in a single transaction
func (r *CandleRepo) InsertBatch(ctx context.Context, candles []model.Candle) error {
	return r.client.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertCandle)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range candles {
			if _, err := stmt.ExecContext(ctx,
				c.Symbol, c.Timeframe, c.OpenTime, c.CloseTime,
				c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades,
			); err != nil {
				return fmt.Errorf("failed to insert candle: %w", err)
			}
		}
		return nil
	})
}

// FetchCandles returns candles with open_time in [start, end], oldest first.
// A zero start or end leaves that side open.
func (r *CandleRepo) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error) {
	query := selectCandles + ` WHERE symbol = ? AND timeframe = ?`
	args := []any{symbol, timeframe}
	if !start.IsZero() {
		query += ` AND open_time >= ?`
		args = append(args, start)
	}
	if !end.IsZero() {
		query += ` AND open_time <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY open_time ASC`

	return r.query(ctx, query, args...)
}

// GetLatest returns the most recent limit candles, oldest first
func (r *CandleRepo) GetLatest(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	candles, err := r.query(ctx,
		selectCandles+` WHERE symbol = ? AND timeframe = ? ORDER BY open_time DESC LIMIT ?`,
		symbol, timeframe, limit,
	)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Count returns the number of candles for a symbol/timeframe
func (r *CandleRepo) Count(ctx context.Context, symbol, timeframe string) (int64, error) {
	var count int64
	err := r.client.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM candles WHERE symbol = ? AND timeframe = ?",
		symbol, timeframe,
	).Scan(&count)
	return count, err
}

func (r *CandleRepo) query(ctx context.Context, query string, args ...any) ([]model.Candle, error) {
	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var closeTime sql.NullTime
		var trades sql.NullInt64

		if err := rows.Scan(
			&c.Symbol, &c.Timeframe, &c.OpenTime, &closeTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &trades,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}

		c.CloseTime = closeTime.Time
		c.Trades = trades.Int64
		candles = append(candles, c)
	}

	return candles, rows.Err()
}
