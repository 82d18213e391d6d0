package duckdb

import (
	"context"
	"fmt"
)

// CreateCandlesTable creates the candles fact table
const CreateCandlesTable = `
CREATE TABLE IF NOT EXISTS candles (
    symbol VARCHAR NOT NULL,
    timeframe VARCHAR NOT NULL,
    open_time TIMESTAMP NOT NULL,
    close_time TIMESTAMP,
    open DOUBLE,
    high DOUBLE,
    low DOUBLE,
    close DOUBLE,
    volume DOUBLE,
    trades BIGINT,
    PRIMARY KEY (symbol, timeframe, open_time)
);
`

// CreateRegimeSnapshotsTable creates the regime history table
const CreateRegimeSnapshotsTable = `
CREATE TABLE IF NOT EXISTS regime_snapshots (
    id VARCHAR PRIMARY KEY,
    tenant_id VARCHAR NOT NULL,
    symbol VARCHAR NOT NULL,
    timeframe VARCHAR NOT NULL,
    observed_at TIMESTAMP NOT NULL,
    volatility DOUBLE,
    trend VARCHAR,
    liquidity VARCHAR,
    indicators VARCHAR
);
`

// InitializeSchema creates all required tables
func InitializeSchema(ctx context.Context, c *Client) error {
	for _, schema := range []string{CreateCandlesTable, CreateRegimeSnapshotsTable} {
		if err := c.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// DropAllTables drops all tables
func DropAllTables(ctx context.Context, c *Client) error {
	for _, table := range []string{"regime_snapshots", "candles"} {
		if err := c.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
