package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/models"
)

// Paper: режим симуляции, ордер всегда "исполнен".
type Paper struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewPaper(log *zap.Logger, m *metrics.Metrics) *Paper {
	return &Paper{log: log.Named("paper"), metrics: m}
}

func (p *Paper) PlaceOrder(_ context.Context, side models.OrderSide, instrument string, quantity float64) bool {
	if quantity <= 0 {
		p.log.Warn("paper order with non-positive quantity",
			zap.String("instrument", instrument), zap.Float64("quantity", quantity))
		p.metrics.Order(string(side), false)
		return false
	}
	p.log.Info("SIMULATION order",
		zap.String("order_id", uuid.New().String()),
		zap.String("instrument", instrument),
		zap.String("side", string(side)),
		zap.Float64("quantity", quantity),
	)
	p.metrics.Order(string(side), true)
	return true
}
