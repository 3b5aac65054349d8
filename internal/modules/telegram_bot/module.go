package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/modules/config"
	position "ladder_bot/internal/modules/position/service"
	"ladder_bot/internal/notify"
)

// Module: уведомления. С токеном Telegram бот, иначе лог.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewTelegram,
			func(t *notify.Telegram, log *zap.Logger) notify.Notifier {
				if t == nil {
					return notify.NewLog(log)
				}
				return t
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *notify.Telegram, m *position.Manager) {
				if t == nil {
					return
				}
				var cancel context.CancelFunc
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						var ctx context.Context
						ctx, cancel = context.WithCancel(context.Background())
						t.Start(ctx, m)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}

// NewTelegram: nil без токена или при ошибке подключения; торговля
// от уведомлений не зависит.
func NewTelegram(cfg *config.Config, log *zap.Logger) *notify.Telegram {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Info("telegram disabled, notifications go to log")
		return nil
	}
	t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		log.Warn("telegram unavailable, notifications go to log", zap.Error(err))
		return nil
	}
	return t
}
