package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/models"
)

// TickSource: поток последних цен.
type TickSource interface {
	StreamTickers(ctx context.Context, symbols []string) <-chan exchange.Tick
}

type quote struct {
	price float64
	at    time.Time
}

// Stream кэширует цены из WebSocket. Свечи и устаревшие цены берутся
// из fallback-провайдера.
type Stream struct {
	fallback Provider
	source   TickSource
	maxAge   time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	quotes map[string]quote
}

func NewStream(fallback Provider, source TickSource, maxAge time.Duration, log *zap.Logger) *Stream {
	return &Stream{
		fallback: fallback,
		source:   source,
		maxAge:   maxAge,
		log:      log.Named("stream"),
		now:      time.Now,
		quotes:   make(map[string]quote),
	}
}

// Run читает поток до отмены ctx.
func (s *Stream) Run(ctx context.Context, symbols []string) {
	for tick := range s.source.StreamTickers(ctx, symbols) {
		s.set(tick.Symbol, tick.Price)
	}
	s.log.Info("price stream stopped")
}

func (s *Stream) set(symbol string, price float64) {
	s.mu.Lock()
	s.quotes[symbol] = quote{price: price, at: s.now()}
	s.mu.Unlock()
}

func (s *Stream) cached(symbol string) (float64, bool) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if !ok || s.now().Sub(q.at) > s.maxAge {
		return 0, false
	}
	return q.price, true
}

func (s *Stream) Candles(ctx context.Context, instrument string, intervalMinutes, count int) ([]models.Candle, error) {
	return s.fallback.Candles(ctx, instrument, intervalMinutes, count)
}

func (s *Stream) LatestPrice(ctx context.Context, instrument string) (float64, bool, error) {
	if p, ok := s.cached(instrument); ok {
		return p, true, nil
	}
	return s.fallback.LatestPrice(ctx, instrument)
}
