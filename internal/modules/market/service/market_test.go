package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/models"
)

type fakeExchange struct {
	price    float64
	priceErr error
	klines   []models.Candle
	kErr     error
	calls    int
}

func (f *fakeExchange) Klines(context.Context, string, int, int) ([]models.Candle, error) {
	return f.klines, f.kErr
}

func (f *fakeExchange) TickerPrice(context.Context, string) (float64, error) {
	f.calls++
	return f.price, f.priceErr
}

func TestREST_LatestPrice(t *testing.T) {
	cases := []struct {
		name      string
		ex        *fakeExchange
		wantPrice float64
		wantOK    bool
		wantErr   error
	}{
		{name: "price", ex: &fakeExchange{price: 101.5}, wantPrice: 101.5, wantOK: true},
		{name: "zero price is absent", ex: &fakeExchange{}, wantOK: false},
		{name: "unknown symbol is absent", ex: &fakeExchange{priceErr: &exchange.APIError{Status: 400, Code: -1121}}, wantOK: false},
		{name: "network error is transient", ex: &fakeExchange{priceErr: errors.New("timeout")}, wantErr: models.ErrTransientIO},
		{name: "5xx is transient", ex: &fakeExchange{priceErr: &exchange.APIError{Status: 503}}, wantErr: models.ErrTransientIO},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok, err := NewREST(tc.ex).LatestPrice(context.Background(), "BTCUSDT")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.wantPrice, p)
		})
	}
}

func TestREST_Candles(t *testing.T) {
	ex := &fakeExchange{klines: []models.Candle{{Close: 1}, {Close: 2}}}
	c, err := NewREST(ex).Candles(context.Background(), "BTCUSDT", 15, 2)
	require.NoError(t, err)
	require.Len(t, c, 2)

	ex.kErr = errors.New("reset")
	_, err = NewREST(ex).Candles(context.Background(), "BTCUSDT", 15, 2)
	require.ErrorIs(t, err, models.ErrTransientIO)
}

type chanSource struct{ ch chan exchange.Tick }

func (c chanSource) StreamTickers(context.Context, []string) <-chan exchange.Tick { return c.ch }

func TestStream_CacheAndFallback(t *testing.T) {
	ex := &fakeExchange{price: 99}
	src := chanSource{ch: make(chan exchange.Tick, 1)}
	s := NewStream(NewREST(ex), src, 10*time.Second, zap.NewNop())

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	// пусто: идём в REST
	p, ok, err := s.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 99.0, p)
	require.Equal(t, 1, ex.calls)

	src.ch <- exchange.Tick{Symbol: "BTCUSDT", Price: 100.5}
	close(src.ch)
	s.Run(context.Background(), []string{"BTCUSDT"})

	p, ok, err = s.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100.5, p)
	require.Equal(t, 1, ex.calls)

	// устарело: снова REST
	now = now.Add(11 * time.Second)
	p, _, _ = s.LatestPrice(context.Background(), "BTCUSDT")
	require.Equal(t, 99.0, p)
	require.Equal(t, 2, ex.calls)
}

func TestSynthetic(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 7, 0, 0, time.UTC)
	newSyn := func() *Synthetic {
		s := NewSynthetic(42)
		s.now = func() time.Time { return now }
		return s
	}

	s := newSyn()
	c, err := s.Candles(context.Background(), "BTCUSDT", 15, 100)
	require.NoError(t, err)
	require.Len(t, c, 100)
	require.Equal(t, now.Truncate(15*time.Minute), c[len(c)-1].OpenTime)
	for i, cd := range c {
		require.Greater(t, cd.Close, 0.0)
		require.GreaterOrEqual(t, cd.High, cd.Low)
		if i > 0 {
			require.True(t, cd.OpenTime.After(c[i-1].OpenTime))
		}
	}

	// детерминизм при одинаковых seed и часах
	c2, err := newSyn().Candles(context.Background(), "BTCUSDT", 15, 100)
	require.NoError(t, err)
	require.Equal(t, c, c2)

	// время идёт: появляются новые свечи
	now = now.Add(30 * time.Minute)
	c3, err := s.Candles(context.Background(), "BTCUSDT", 15, 100)
	require.NoError(t, err)
	require.Equal(t, c[len(c)-1].OpenTime.Add(30*time.Minute), c3[len(c3)-1].OpenTime)

	p, ok, err := s.LatestPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, p, 0.0)
}
