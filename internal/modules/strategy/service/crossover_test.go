package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_bot/internal/models"
	"ladder_bot/internal/modules/config"
)

func defaults() config.StrategyConfig {
	return config.Default().Strategy
}

func TestDecide(t *testing.T) {
	cfg := defaults()
	tests := []struct {
		name string
		snap Snapshot
		want models.Signal
	}{
		{
			name: "fresh cross up in uptrend",
			snap: Snapshot{FastPrev: 99, SlowPrev: 100, Fast: 101, Slow: 100.5, Trend: 98, RSI: 60, ADX: 25},
			want: models.SignalBuy,
		},
		{
			name: "fresh cross down in downtrend",
			snap: Snapshot{FastPrev: 101, SlowPrev: 100, Fast: 99, Slow: 99.5, Trend: 102, RSI: 40, ADX: 25},
			want: models.SignalSell,
		},
		{
			name: "already above, no fresh cross",
			snap: Snapshot{FastPrev: 101, SlowPrev: 100, Fast: 102, Slow: 100.5, Trend: 98, RSI: 60, ADX: 25},
			want: models.SignalHold,
		},
		{
			name: "weak trend strength",
			snap: Snapshot{FastPrev: 99, SlowPrev: 100, Fast: 101, Slow: 100.5, Trend: 98, RSI: 60, ADX: 15},
			want: models.SignalHold,
		},
		{
			name: "cross up against trend filter",
			snap: Snapshot{FastPrev: 99, SlowPrev: 100, Fast: 101, Slow: 100.5, Trend: 103, RSI: 60, ADX: 25},
			want: models.SignalHold,
		},
		{
			name: "cross up with weak momentum",
			snap: Snapshot{FastPrev: 99, SlowPrev: 100, Fast: 101, Slow: 100.5, Trend: 98, RSI: 50, ADX: 25},
			want: models.SignalHold,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.snap, cfg))
		})
	}
}

func TestEvaluate_InsufficientData(t *testing.T) {
	e := NewCrossover(defaults())
	candles := make([]models.Candle, 49)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}

	sig, _, err := e.Evaluate("BTCUSDT", candles)
	assert.ErrorIs(t, err, models.ErrDataInsufficient)
	assert.Equal(t, models.SignalHold, sig)
}

func TestEvaluate_ExactlyMinWindow(t *testing.T) {
	e := NewCrossover(defaults())
	candles := make([]models.Candle, 50)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}

	sig, snap, err := e.Evaluate("BTCUSDT", candles)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, sig)
	assert.InDelta(t, 100, snap.Trend, 1e-9)
}

func TestEvaluate_FlatMarketHolds(t *testing.T) {
	e := NewCrossover(defaults())
	candles := make([]models.Candle, 100)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}

	sig, snap, err := e.Evaluate("BTCUSDT", candles)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, sig)
	assert.InDelta(t, 100, snap.Trend, 1e-9)
}

func TestMinCandles(t *testing.T) {
	cfg := defaults()
	assert.Equal(t, 50, NewCrossover(cfg).MinCandles())

	cfg.EMATrend = 200
	assert.Equal(t, 200, NewCrossover(cfg).MinCandles())
}
