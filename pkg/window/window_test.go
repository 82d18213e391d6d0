package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/model"
)

func TestRingBuffer_Wraps(t *testing.T) {
	rb := NewRingBuffer[int](3)
	_, ok := rb.Last()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	assert.True(t, rb.IsFull())
	assert.Equal(t, []int{3, 4, 5}, rb.Items())
	first, _ := rb.First()
	last, _ := rb.Last()
	assert.Equal(t, 3, first)
	assert.Equal(t, 5, last)

	rb.Clear()
	assert.Zero(t, rb.Size())
	assert.Empty(t, rb.Items())
}

func candles(n int) []model.Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			Symbol:    "ETHUSDT",
			Timeframe: "1h",
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
			Close:     float64(100 + i),
		}
	}
	return out
}

func TestBuilder_EmitsOnStep(t *testing.T) {
	b := NewBuilder(Config{W: 4, S: 2, Symbol: "ETHUSDT", Timeframe: "1h"})
	input := candles(10)

	windows := b.ProcessCandles(input)

	// first window after 4 candles, then every 2: candles 4, 6, 8, 10
	require.Len(t, windows, 4)
	for _, w := range windows {
		assert.True(t, w.IsComplete())
		assert.Equal(t, w.LastCandle().CloseTime, w.TEnd)
	}
	assert.Equal(t, input[3].CloseTime, windows[0].TEnd)
	assert.Equal(t, input[6:10], windows[3].Candles)
	assert.True(t, b.IsWarmedUp())
}

func TestBuilder_DeterministicIDs(t *testing.T) {
	input := candles(6)
	a := NewBuilder(Config{W: 3, S: 1, Symbol: "ETHUSDT", Timeframe: "1h"}).ProcessCandles(input)
	b := NewBuilder(Config{W: 3, S: 1, Symbol: "ETHUSDT", Timeframe: "1h"}).ProcessCandles(input)

	require.Len(t, a, 4)
	require.Len(t, b, 4)
	for i := range a {
		assert.Equal(t, a[i].WindowID, b[i].WindowID)
	}
	assert.NotEqual(t, a[0].WindowID, a[1].WindowID)
}

func TestBuilder_Warmup(t *testing.T) {
	b := NewBuilder(Config{W: 2, S: 1, Warmup: 5, Symbol: "ETHUSDT", Timeframe: "1h"})

	windows := b.ProcessCandles(candles(6))
	assert.Len(t, windows, 2)

	b.Reset()
	assert.False(t, b.IsWarmedUp())
}
