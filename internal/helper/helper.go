package helper

import (
	"math"
	"strconv"
	"strings"
)

// NormSymbol: "btc/usdt", "BTC-USDT" -> "BTCUSDT".
func NormSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
	return s
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-9)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-9)
	return steps * tick
}

// StepDigits: число знаков после запятой у шага (0.001 -> 3).
func StepDigits(step float64) int {
	if step <= 0 || step >= 1 {
		return 0
	}
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// FormatPrice: цена для логов и уведомлений, без хвостовых нулей.
func FormatPrice(px float64) string {
	switch {
	case px == 0:
		return "0"
	case math.Abs(px) >= 1000:
		return strconv.FormatFloat(px, 'f', 2, 64)
	case math.Abs(px) >= 1:
		return strconv.FormatFloat(px, 'f', 4, 64)
	}
	return strconv.FormatFloat(px, 'f', 8, 64)
}
