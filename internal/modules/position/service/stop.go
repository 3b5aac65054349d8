package service

import (
	"ladder_bot/internal/indicator"
	"ladder_bot/internal/models"
	"ladder_bot/internal/modules/config"
)

// InitialStop: более дальний из двух ориентиров (EMA тренда и entry ∓ k·ATR),
// но не дальше max_pct от входа. Мало свечей или ни одного ориентира
// с правильной стороны: fallback_pct.
func InitialStop(side models.Side, entry float64, candles []models.Candle, cfg config.StopConfig) float64 {
	fallback := side.Offset(entry, -cfg.FallbackPct)
	if len(candles) < cfg.TrendEMAPeriod {
		return fallback
	}

	var refs []float64
	if ema, ok := indicator.EMA(models.Closes(candles), cfg.TrendEMAPeriod); ok {
		refs = append(refs, ema)
	}
	if atr, ok := indicator.ATR(candles, cfg.ATRPeriod); ok && atr > 0 {
		refs = append(refs, entry-side.Sign()*cfg.ATRMultiplier*atr)
	}

	stop := 0.0
	for _, r := range refs {
		// ориентир должен быть по невыгодную сторону от входа
		if !side.Improves(entry, r) {
			continue
		}
		if stop == 0 || side.Improves(stop, r) {
			stop = r
		}
	}
	if stop == 0 {
		return fallback
	}

	if limit := side.Offset(entry, -cfg.MaxPct); side.Improves(limit, stop) {
		stop = limit
	}
	return stop
}

// BuildTargets: лестница тейков от цены входа.
func BuildTargets(side models.Side, entry, total float64, levels []config.TPLevel) []models.TPTarget {
	out := make([]models.TPTarget, 0, len(levels))
	for i, l := range levels {
		out = append(out, models.TPTarget{
			Level:    i + 1,
			Price:    side.Offset(entry, l.Pct),
			Quantity: total * l.CloseFraction,
		})
	}
	return out
}
