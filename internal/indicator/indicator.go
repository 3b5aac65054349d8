// Package indicator: обёртки над go-talib с проверкой длины окна.
// talib паникует на слишком коротких рядах, поэтому всё идёт через ok-флаг.
package indicator

import (
	talib "github.com/markcheno/go-talib"

	"ladder_bot/internal/models"
)

// EMASeries: полный ряд EMA, первые period-1 значений не определены.
func EMASeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period {
		return nil, false
	}
	return talib.Ema(values, period), true
}

// EMA: последнее значение.
func EMA(values []float64, period int) (float64, bool) {
	s, ok := EMASeries(values, period)
	if !ok {
		return 0, false
	}
	return s[len(s)-1], true
}

func RSI(values []float64, period int) (float64, bool) {
	if period <= 1 || len(values) <= period {
		return 0, false
	}
	s := talib.Rsi(values, period)
	return s[len(s)-1], true
}

// ATR по окну свечей.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) <= period {
		return 0, false
	}
	s := talib.Atr(models.Highs(candles), models.Lows(candles), models.Closes(candles), period)
	return s[len(s)-1], true
}

// ADX требует около двух периодов прогрева.
func ADX(candles []models.Candle, period int) (float64, bool) {
	if period <= 1 || len(candles) <= 2*period {
		return 0, false
	}
	s := talib.Adx(models.Highs(candles), models.Lows(candles), models.Closes(candles), period)
	return s[len(s)-1], true
}
