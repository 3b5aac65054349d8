package monitor

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/helper"
	"ladder_bot/internal/metrics"
	"ladder_bot/internal/modules/config"
	health "ladder_bot/internal/modules/health/service"
	market "ladder_bot/internal/modules/market/service"
	"ladder_bot/internal/modules/monitor/service"
	position "ladder_bot/internal/modules/position/service"
	strategy "ladder_bot/internal/modules/strategy/service"
)

// Module: по монитору на инструмент, старт и остановка вместе с приложением.
func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(service.NewRunner),
		fx.Invoke(Run),
	)
}

type Params struct {
	fx.In

	LC       fx.Lifecycle
	Cfg      *config.Config
	Runner   *service.Runner
	Provider market.Provider
	Engine   strategy.Engine
	Manager  *position.Manager
	Health   *health.State
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Tracer   opentracing.Tracer
}

func Run(p Params) {
	var cancel context.CancelFunc

	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Log.Info("ladder bot starting",
				zap.String("summary", p.Cfg.Summary()),
				zap.String("strategy", p.Engine.Name()),
			)

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			for _, raw := range p.Cfg.Trading.Instruments {
				inst := helper.NormSymbol(raw)
				w := service.NewWorker(service.WorkerConfig{
					Instrument:            inst,
					Confirmations:         p.Cfg.Trading.Confirmations,
					Cooldown:              p.Cfg.Trading.Cooldown,
					PollInterval:          p.Cfg.Trading.PollInterval,
					CandleIntervalMinutes: p.Cfg.Trading.CandleIntervalMinutes,
					CandleCount:           p.Cfg.Trading.CandleCount,
					TradeNotional:         p.Cfg.Trading.TradeNotional,
					CallTimeout:           p.Cfg.Retry.CallTimeout,
					Retry:                 p.Cfg.RetryPolicy(),
				}, service.WorkerDeps{
					Provider:  p.Provider,
					Engine:    p.Engine,
					Positions: p.Manager,
					Heartbeat: p.Health,
					Log:       p.Log,
					Metrics:   p.Metrics,
					Tracer:    p.Tracer,
				})
				if err := p.Runner.Start(ctx, w); err != nil {
					p.Log.Warn("monitor not started", zap.String("instrument", inst), zap.Error(err))
				}
			}
			p.Health.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Health.SetReady(false)
			if cancel != nil {
				cancel()
			}
			return p.Runner.StopAll(ctx)
		},
	})
}
