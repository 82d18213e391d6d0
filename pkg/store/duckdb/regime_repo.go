package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tunogya/spi/pkg/model"
)

const upsertRegime = `
	INSERT INTO regime_snapshots (id, tenant_id, symbol, timeframe, observed_at, volatility, trend, liquidity, indicators)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		tenant_id = EXCLUDED.tenant_id,
		observed_at = EXCLUDED.observed_at,
		volatility = EXCLUDED.volatility,
		trend = EXCLUDED.trend,
		liquidity = EXCLUDED.liquidity,
		indicators = EXCLUDED.indicators
`

const selectRegimes = `
	SELECT id, tenant_id, symbol, timeframe, observed_at, volatility, trend, liquidity, indicators
	FROM regime_snapshots
`

// RegimeRepo persists observed regime snapshots
type RegimeRepo struct {
	client *Client
}

// NewRegimeRepo creates a new regime repository
func NewRegimeRepo(client *Client) *RegimeRepo {
	return &RegimeRepo{client: client}
}

// SaveBatch upserts snapshots by id
func (r *RegimeRepo) SaveBatch(ctx context.Context, snapshots []model.RegimeSnapshot) error {
	return r.client.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertRegime)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			indicators, err := json.Marshal(s.Regime.Indicators)
			if err != nil {
				return fmt.Errorf("failed to encode indicators of %s: %w", s.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				s.ID, s.TenantID, s.Symbol, s.Timeframe, s.ObservedAt,
				s.Regime.Volatility, string(s.Regime.Trend), string(s.Regime.Liquidity), string(indicators),
			); err != nil {
				return fmt.Errorf("failed to insert regime snapshot: %w", err)
			}
		}
		return nil
	})
}

// Latest returns the most recent snapshot of a symbol, or nil when none exists
func (r *RegimeRepo) Latest(ctx context.Context, tenantID, symbol, timeframe string) (*model.RegimeSnapshot, error) {
	row := r.client.db.QueryRowContext(ctx,
		selectRegimes+` WHERE tenant_id = ? AND symbol = ? AND timeframe = ? ORDER BY observed_at DESC LIMIT 1`,
		tenantID, symbol, timeframe,
	)

	s, err := scanRegime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// History returns up to limit snapshots of a symbol, newest first
func (r *RegimeRepo) History(ctx context.Context, tenantID, symbol, timeframe string, limit int) ([]model.RegimeSnapshot, error) {
	rows, err := r.client.db.QueryContext(ctx,
		selectRegimes+` WHERE tenant_id = ? AND symbol = ? AND timeframe = ? ORDER BY observed_at DESC LIMIT ?`,
		tenantID, symbol, timeframe, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.RegimeSnapshot
	for rows.Next() {
		s, err := scanRegime(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}

	return snapshots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegime(row scanner) (*model.RegimeSnapshot, error) {
	var s model.RegimeSnapshot
	var trend, liquidity, indicators sql.NullString

	if err := row.Scan(
		&s.ID, &s.TenantID, &s.Symbol, &s.Timeframe, &s.ObservedAt,
		&s.Regime.Volatility, &trend, &liquidity, &indicators,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan regime snapshot: %w", err)
	}

	s.Regime.Trend = model.Trend(trend.String)
	s.Regime.Liquidity = model.Liquidity(liquidity.String)
	if indicators.Valid && indicators.String != "" && indicators.String != "null" {
		if err := json.Unmarshal([]byte(indicators.String), &s.Regime.Indicators); err != nil {
			return nil, fmt.Errorf("failed to decode indicators of %s: %w", s.ID, err)
		}
	}

	return &s, nil
}
