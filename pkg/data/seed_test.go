package data

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDoc = `{
  "strategies": [
    {"id": "s1", "tenant_id": "t1", "name": "Breakout", "tier": "free", "config": {"symbols": ["BTCUSDT"]}},
    {"id": "s2", "tenant_id": "t2", "name": "Mean reversion", "tier": "pro"}
  ],
  "backtests": [
    {"id": "b1", "strategy_id": "s1", "status": "completed", "metrics": {"sharpeRatio": 1.1, "totalReturn": 0.3}},
    {"id": "b2", "strategy_id": "s1", "status": "running", "metrics": {}}
  ]
}`

func TestReadSeed(t *testing.T) {
	store, err := ReadSeed(strings.NewReader(seedDoc))
	require.NoError(t, err)

	ids, err := store.ListIDs(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)

	ids, err = store.ListIDs(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)

	strategy, backtests, err := NewLoader(store, store).Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, strategy.Symbols())
	require.Len(t, backtests, 1)
	assert.Equal(t, 1.1, *backtests[0].Metrics.SharpeRatio)
}

func TestReadSeed_Invalid(t *testing.T) {
	_, err := ReadSeed(strings.NewReader(`{"strategies":[{"name":"x"}]}`))
	assert.ErrorContains(t, err, "no id")

	_, err = ReadSeed(strings.NewReader(`nope`))
	assert.Error(t, err)
}
