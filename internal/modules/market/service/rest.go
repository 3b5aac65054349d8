package service

import (
	"context"
	"errors"
	"fmt"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/models"
)

// Exchange: публичные методы биржевого клиента.
type Exchange interface {
	Klines(ctx context.Context, symbol string, intervalMinutes, limit int) ([]models.Candle, error)
	TickerPrice(ctx context.Context, symbol string) (float64, error)
}

// REST: свечи и цена через REST API биржи.
type REST struct {
	client Exchange
}

func NewREST(client Exchange) *REST {
	return &REST{client: client}
}

func (r *REST) Candles(ctx context.Context, instrument string, intervalMinutes, count int) ([]models.Candle, error) {
	candles, err := r.client.Klines(ctx, instrument, intervalMinutes, count)
	if err != nil {
		return nil, classify(err)
	}
	return candles, nil
}

func (r *REST) LatestPrice(ctx context.Context, instrument string) (float64, bool, error) {
	p, err := r.client.TickerPrice(ctx, instrument)
	if err != nil {
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			// неизвестный символ: цены нет, повторять бессмысленно
			return 0, false, nil
		}
		return 0, false, classify(err)
	}
	if p <= 0 {
		return 0, false, nil
	}
	return p, true, nil
}

func classify(err error) error {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrTransientIO, err)
}
