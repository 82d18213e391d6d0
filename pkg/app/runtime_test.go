package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/similarity"
	"github.com/tunogya/spi/pkg/store/duckdb"
)

const seed = `{
  "strategies": [
    {"id": "s1", "tenant_id": "t1", "name": "Breakout", "tier": "free"},
    {"id": "s2", "tenant_id": "t1", "name": "Breakdown", "tier": "free"}
  ],
  "backtests": [
    {"id": "b1", "strategy_id": "s1", "status": "completed", "metrics": {"sharpeRatio": 1.0, "totalReturn": 0.2}},
    {"id": "b2", "strategy_id": "s2", "status": "completed", "metrics": {"sharpeRatio": 0.5, "totalReturn": 0.1}}
  ]
}`

func TestOpen_MemoryWithSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	cfg, err := config.LoadFrom(map[string]string{
		"SPI_ENGINE_DIMENSION": "32",
		"SPI_ENGINE_SEED_FILE": path,
	})
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &index.MemoryIndex{}, rt.Index)
	assert.Nil(t, rt.Cache)

	report, err := rt.Service.ReindexAll(ctx, rt.Lister, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)

	results, err := rt.Service.FindSimilar(ctx, similarity.Request{StrategyID: "s1", TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s2", results[0].StrategyID)
}

func TestOpen_MissingSeed(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"SPI_ENGINE_SEED_FILE": "/nonexistent/seed.json"})
	require.NoError(t, err)

	_, err = Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestRuntime_DuckDB(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"SPI_DUCKDB_PATH": filepath.Join(t.TempDir(), "spi.duckdb"),
	})
	require.NoError(t, err)

	rt, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	first, err := rt.DuckDB(context.Background())
	require.NoError(t, err)
	second, err := rt.DuckDB(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestOpen_HistoryAttachesOutcomes(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"SPI_ENGINE_DIMENSION": "32",
		"SPI_ENGINE_HISTORY":   "true",
		"SPI_DUCKDB_PATH":      filepath.Join(t.TempDir(), "spi.duckdb"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	duck, err := rt.DuckDB(ctx)
	require.NoError(t, err)

	observed := time.Now().UTC().Truncate(time.Hour).Add(-24 * time.Hour)
	candles := make([]model.Candle, 4)
	for i := range candles {
		open := observed.Add(time.Duration(i-1) * time.Hour)
		price := 100 + float64(i)*10
		candles[i] = model.Candle{
			Symbol: "BTCUSDT", Timeframe: "1h", OpenTime: open, CloseTime: open.Add(time.Hour),
			Open: price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	require.NoError(t, duckdb.NewCandleRepo(duck).InsertBatch(ctx, candles))

	regime := model.RegimeDescription{Volatility: 0.2, Trend: model.TrendBullish, Liquidity: model.LiquidityHigh}
	require.NoError(t, rt.Service.IngestRegimes(ctx, []model.RegimeSnapshot{
		{ID: "r1", TenantID: "t1", Symbol: "BTCUSDT", Timeframe: "1h", Regime: regime, ObservedAt: observed},
	}))

	resp, err := rt.Service.FindAnalogues(ctx, analogue.Request{TenantID: "t1", Regime: regime, Horizons: []int{3}})
	require.NoError(t, err)
	require.Len(t, resp.Analogues, 1)
	require.Len(t, resp.Analogues[0].Outcomes, 1)
	assert.InDelta(t, 0.2, resp.Analogues[0].Outcomes[0].FwdRetMean, 1e-9)
	require.Len(t, resp.Summary, 1)
}
