package service

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"ladder_bot/internal/models"
)

var basePrices = map[string]float64{
	"BTCUSDT":  50000,
	"ETHUSDT":  3000,
	"BNBUSDT":  500,
	"SOLUSDT":  100,
	"XRPUSDT":  0.5,
	"ADAUSDT":  0.4,
	"DOGEUSDT": 0.1,
	"LINKUSDT": 15,
	"AVAXUSDT": 35,
	"DOTUSDT":  7,
}

const minHistory = 200

type series struct {
	rng     *rand.Rand
	candles []models.Candle
}

// Synthetic: офлайн-рынок, случайное блуждание с небольшим дрейфом.
// При одинаковых seed и часах выдаёт одинаковые данные.
type Synthetic struct {
	seed uint64
	now  func() time.Time

	mu     sync.Mutex
	series map[string]*series
}

func NewSynthetic(seed uint64) *Synthetic {
	return &Synthetic{
		seed:   seed,
		now:    time.Now,
		series: make(map[string]*series),
	}
}

func (s *Synthetic) Candles(_ context.Context, instrument string, intervalMinutes, count int) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.advanceLocked(instrument, time.Duration(intervalMinutes)*time.Minute, count)
	if count > len(sr.candles) {
		count = len(sr.candles)
	}
	out := make([]models.Candle, count)
	copy(out, sr.candles[len(sr.candles)-count:])
	return out, nil
}

func (s *Synthetic) LatestPrice(_ context.Context, instrument string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[instrument]
	if !ok || len(sr.candles) == 0 {
		sr = s.advanceLocked(instrument, 15*time.Minute, minHistory)
	}
	last := sr.candles[len(sr.candles)-1].Close
	return last * (1 + sr.rng.NormFloat64()*0.002), true, nil
}

// advanceLocked достраивает ряд до текущего момента.
func (s *Synthetic) advanceLocked(instrument string, interval time.Duration, count int) *series {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	now := s.now().Truncate(interval)

	sr, ok := s.series[instrument]
	if !ok {
		h := fnv.New64a()
		_, _ = h.Write([]byte(instrument))
		sr = &series{rng: rand.New(rand.NewPCG(s.seed, h.Sum64()))}
		s.series[instrument] = sr

		n := max(count, minHistory)
		base, ok := basePrices[instrument]
		if !ok {
			base = 100
		}
		start := now.Add(-time.Duration(n-1) * interval)
		prev := base
		for i := 0; i < n; i++ {
			c := nextCandle(sr.rng, prev, start.Add(time.Duration(i)*interval), interval)
			sr.candles = append(sr.candles, c)
			prev = c.Close
		}
		return sr
	}

	for last := sr.candles[len(sr.candles)-1]; last.OpenTime.Before(now); last = sr.candles[len(sr.candles)-1] {
		sr.candles = append(sr.candles, nextCandle(sr.rng, last.Close, last.OpenTime.Add(interval), interval))
	}
	if keep := max(count, minHistory) * 2; len(sr.candles) > keep {
		sr.candles = append([]models.Candle(nil), sr.candles[len(sr.candles)-keep:]...)
	}
	return sr
}

func nextCandle(rng *rand.Rand, prev float64, openTime time.Time, interval time.Duration) models.Candle {
	open := prev
	cl := open * (1 + 0.0001 + rng.NormFloat64()*0.01)
	if cl <= 0 {
		cl = open
	}
	high := math.Max(open, cl) * (1 + math.Abs(rng.NormFloat64()*0.005))
	low := math.Min(open, cl) * (1 - math.Abs(rng.NormFloat64()*0.005))
	return models.Candle{
		OpenTime:  openTime.UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cl,
		Volume:    1000 + rng.Float64()*9000,
		CloseTime: openTime.Add(interval - time.Millisecond).UTC(),
	}
}
