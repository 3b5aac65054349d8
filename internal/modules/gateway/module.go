package gateway

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/metrics"
	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/gateway/service"
)

// Module: шлюз ордеров. В симуляции Paper, иначе Binance с проверкой
// связи на старте (недоступная биржа прерывает запуск).
func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(NewGateway),
	)
}

type Params struct {
	fx.In

	LC      fx.Lifecycle
	Cfg     *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Tracer  opentracing.Tracer
	Client  *exchange.Client
}

func NewGateway(p Params) service.Gateway {
	if p.Cfg.Trading.Simulation {
		p.Log.Info("order gateway: SIMULATION")
		return service.NewPaper(p.Log, p.Metrics)
	}

	b := service.NewBinance(p.Client, p.Cfg.RetryPolicy(), p.Cfg.Retry.CallTimeout, p.Log, p.Metrics, p.Tracer)
	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := b.Ping(ctx); err != nil {
				return fmt.Errorf("exchange unreachable: %w", err)
			}
			p.Log.Warn("order gateway: LIVE trading enabled")
			return nil
		},
	})
	return b
}
