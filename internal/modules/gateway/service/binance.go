package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/metrics"
	"ladder_bot/internal/models"
	"ladder_bot/pkg/retry"
	"ladder_bot/pkg/tracing"
)

// Venue: то, что шлюзу нужно от биржевого клиента.
type Venue interface {
	Ping(ctx context.Context) error
	MarketOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64, clientID string) (exchange.OrderResult, error)
	QueryOrder(ctx context.Context, symbol, clientID string) (exchange.OrderResult, error)
}

// Binance: живые рыночные ордера на споте.
type Binance struct {
	venue       Venue
	policy      retry.Policy
	callTimeout time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics
	tracer      opentracing.Tracer
}

func NewBinance(venue Venue, policy retry.Policy, callTimeout time.Duration, log *zap.Logger, m *metrics.Metrics, tracer opentracing.Tracer) *Binance {
	b := &Binance{
		venue:       venue,
		callTimeout: callTimeout,
		log:         log.Named("binance"),
		metrics:     m,
		tracer:      tracer,
	}
	b.policy = policy.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		b.log.Warn("order retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	return b
}

// Ping: проверка доступности биржи на старте.
func (b *Binance) Ping(ctx context.Context) error {
	return retry.Do(ctx, b.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
		return b.venue.Ping(cctx)
	})
}

func (b *Binance) PlaceOrder(ctx context.Context, side models.OrderSide, instrument string, quantity float64) bool {
	span, ctx := tracing.StartSpan(ctx, b.tracer, "gateway.place_order")
	defer span.Finish()
	span.SetTag("instrument", instrument)
	span.SetTag("side", string(side))

	log := b.log.With(zap.String("instrument", instrument), zap.String("side", string(side)), zap.Float64("quantity", quantity))

	// один clientOrderId на все попытки: повтор после таймаута не удвоит ордер
	clientID := uuid.New().String()

	res, err := retry.DoValue(ctx, b.policy, func(ctx context.Context) (exchange.OrderResult, error) {
		cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
		res, err := b.venue.MarketOrder(cctx, instrument, side, quantity, clientID)
		if err != nil && !retryable(err) {
			return res, retry.Permanent(err)
		}
		return res, err
	})
	if err != nil && mayHaveFilled(err) {
		// ответ мог потеряться, а ордер исполниться: спрашиваем биржу
		if q, qerr := b.lookup(ctx, instrument, clientID); qerr != nil {
			log.Warn("order status unknown", zap.String("client_id", clientID), zap.Error(qerr))
		} else if q.Filled() {
			log.Warn("order reported failed but filled on venue", zap.String("client_id", clientID), zap.Error(err))
			res, err = q, nil
		}
	}
	if err != nil {
		ext.Error.Set(span, true)
		err = fmt.Errorf("%w: %w", models.ErrOrderRejected, err)
		log.Error("order failed", zap.Error(err))
		b.metrics.Order(string(side), false)
		return false
	}

	log.Info("order placed",
		zap.Int64("order_id", res.OrderID),
		zap.String("client_id", clientID),
		zap.String("status", res.Status),
		zap.String("executed_qty", res.ExecutedQty),
	)
	b.metrics.Order(string(side), true)
	return true
}

func (b *Binance) lookup(ctx context.Context, instrument, clientID string) (exchange.OrderResult, error) {
	return retry.DoValue(context.WithoutCancel(ctx), b.policy, func(ctx context.Context) (exchange.OrderResult, error) {
		cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
		res, err := b.venue.QueryOrder(cctx, instrument, clientID)
		if err != nil && !retryable(err) {
			return res, retry.Permanent(err)
		}
		return res, err
	})
}

// mayHaveFilled: ошибка не исключает, что ордер уже на бирже.
// Явный отказ биржи (кроме дубликата) исключает.
func mayHaveFilled(err error) bool {
	if errors.Is(err, exchange.ErrQuantityTooSmall) {
		return false
	}
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return apiErr.DuplicateOrder() || apiErr.Temporary()
	}
	return true
}

// retryable: сетевые ошибки и временные ответы биржи.
func retryable(err error) bool {
	if errors.Is(err, exchange.ErrQuantityTooSmall) {
		return false
	}
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
