package service

import (
	"fmt"

	"ladder_bot/internal/indicator"
	"ladder_bot/internal/models"
	"ladder_bot/internal/modules/config"
)

// minWindow: меньше 50 свечей сигнал не считаем.
const minWindow = 50

// Snapshot: значения индикаторов на последней свече (для логов и тестов).
type Snapshot struct {
	FastPrev float64
	SlowPrev float64
	Fast     float64
	Slow     float64
	Trend    float64
	RSI      float64
	ADX      float64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("ema_fast=%.4f ema_slow=%.4f ema_trend=%.4f rsi=%.2f adx=%.2f",
		s.Fast, s.Slow, s.Trend, s.RSI, s.ADX)
}

// Crossover: свежее пересечение быстрой и медленной EMA
// + фильтр тренда (медленная против трендовой) + RSI + ADX.
type Crossover struct {
	cfg config.StrategyConfig
}

func NewCrossover(cfg config.StrategyConfig) *Crossover {
	return &Crossover{cfg: cfg}
}

func (e *Crossover) Name() string { return "ema_crossover" }

func (e *Crossover) MinCandles() int {
	n := minWindow
	for _, v := range []int{e.cfg.EMATrend, e.cfg.EMASlow + 1, e.cfg.RSIPeriod + 1, 2*e.cfg.ADXPeriod + 1} {
		if v > n {
			n = v
		}
	}
	return n
}

func (e *Crossover) Evaluate(instrument string, candles []models.Candle) (models.Signal, Snapshot, error) {
	if len(candles) < e.MinCandles() {
		return models.SignalHold, Snapshot{}, fmt.Errorf("%w: %s has %d candles, need %d",
			models.ErrDataInsufficient, instrument, len(candles), e.MinCandles())
	}

	closes := models.Closes(candles)
	fast, okF := indicator.EMASeries(closes, e.cfg.EMAFast)
	slow, okS := indicator.EMASeries(closes, e.cfg.EMASlow)
	trend, okT := indicator.EMA(closes, e.cfg.EMATrend)
	rsi, okR := indicator.RSI(closes, e.cfg.RSIPeriod)
	adx, okA := indicator.ADX(candles, e.cfg.ADXPeriod)
	if !okF || !okS || !okT || !okR || !okA {
		return models.SignalHold, Snapshot{}, fmt.Errorf("%w: %s indicators not ready", models.ErrDataInsufficient, instrument)
	}

	n := len(closes)
	snap := Snapshot{
		FastPrev: fast[n-2],
		SlowPrev: slow[n-2],
		Fast:     fast[n-1],
		Slow:     slow[n-1],
		Trend:    trend,
		RSI:      rsi,
		ADX:      adx,
	}
	return decide(snap, e.cfg), snap, nil
}

// decide: чистая функция правил входа.
func decide(s Snapshot, cfg config.StrategyConfig) models.Signal {
	if s.ADX <= cfg.ADXMin {
		return models.SignalHold
	}

	crossUp := s.FastPrev <= s.SlowPrev && s.Fast > s.Slow
	if crossUp && s.Slow > s.Trend && s.RSI > cfg.RSILong {
		return models.SignalBuy
	}

	crossDown := s.FastPrev >= s.SlowPrev && s.Fast < s.Slow
	if crossDown && s.Slow < s.Trend && s.RSI < cfg.RSIShort {
		return models.SignalSell
	}
	return models.SignalHold
}
