package helper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormSymbol(t *testing.T) {
	require.Equal(t, "BTCUSDT", NormSymbol(" btc/usdt "))
	require.Equal(t, "ETHUSDT", NormSymbol("ETH-USDT"))
	require.Equal(t, "SOLUSDT", NormSymbol("SOLUSDT"))
}

func TestRoundToTick(t *testing.T) {
	require.InDelta(t, 0.123, RoundDownToTick(0.12399, 0.001), 1e-12)
	require.InDelta(t, 0.124, RoundUpToTick(0.12301, 0.001), 1e-12)
	require.Equal(t, 1.5, RoundDownToTick(1.5, 0))
	require.InDelta(t, 2.0, RoundDownToTick(2.0, 0.1), 1e-12)
}

func TestStepDigits(t *testing.T) {
	require.Equal(t, 3, StepDigits(0.001))
	require.Equal(t, 5, StepDigits(0.00001))
	require.Equal(t, 0, StepDigits(1))
	require.Equal(t, 0, StepDigits(0))
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "65000.50", FormatPrice(65000.5))
	require.Equal(t, "101.0000", FormatPrice(101))
	require.Equal(t, "0", FormatPrice(0))
}
