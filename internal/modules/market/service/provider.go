package service

import (
	"context"

	"ladder_bot/internal/models"
)

// Provider: источник свечей и последней цены.
type Provider interface {
	// Candles: от старых к новым.
	Candles(ctx context.Context, instrument string, intervalMinutes, count int) ([]models.Candle, error)
	// LatestPrice: false, если цены нет (инструмент не торгуется и т.п.).
	LatestPrice(ctx context.Context, instrument string) (float64, bool, error)
}
