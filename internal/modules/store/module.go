package store

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/store/service"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			func(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *service.Store {
				return service.NewStore(cfg.Store.Path, log, m)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					st := s.Load(ctx)
					log.Info("state restored",
						zap.String("path", s.Path()),
						zap.Int("open_trades", len(st.OpenTrades)),
						zap.Int64("sequence", st.Sequence),
						zap.Float64("cumulative_pnl", st.CumulativePnl),
					)
					for inst, p := range st.OpenTrades {
						log.Info("open position",
							zap.String("instrument", inst),
							zap.String("side", string(p.Side)),
							zap.Float64("entry", p.EntryPrice),
							zap.Float64("remaining", p.RemainingQty),
							zap.Float64("stop", p.StopPrice),
						)
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if !s.Flush(ctx) {
						log.Error("final state flush failed", zap.String("path", s.Path()))
					}
					return nil
				},
			})
		}),
	)
}
