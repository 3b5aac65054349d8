package service

import (
	"context"

	"ladder_bot/internal/models"
)

// Gateway: исполнение рыночных ордеров. false: ордер не исполнен,
// причина уже залогирована.
type Gateway interface {
	PlaceOrder(ctx context.Context, side models.OrderSide, instrument string, quantity float64) bool
}
