package market

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/helper"
	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/market/service"
)

// Module: биржевой клиент и провайдер рыночных данных.
func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			NewClient,
			NewProvider,
		),
	)
}

func NewClient(cfg *config.Config) *exchange.Client {
	return exchange.NewClient(exchange.Config{
		BaseURL:   cfg.Market.RestURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Timeout:   cfg.Retry.CallTimeout,
	})
}

func NewProvider(lc fx.Lifecycle, cfg *config.Config, client *exchange.Client, log *zap.Logger) service.Provider {
	if cfg.Market.Offline {
		log.Info("market data: synthetic (offline)")
		return service.NewSynthetic(uint64(time.Now().UnixNano()))
	}

	rest := service.NewREST(client)
	if cfg.Market.WSURL == "" {
		log.Info("market data: REST", zap.String("url", cfg.Market.RestURL))
		return rest
	}

	stream := service.NewStream(rest, exchange.NewStreamer(cfg.Market.WSURL, log), cfg.Market.StreamMaxAge, log)
	symbols := make([]string, 0, len(cfg.Trading.Instruments))
	for _, raw := range cfg.Trading.Instruments {
		symbols = append(symbols, helper.NormSymbol(raw))
	}

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// ctx хука живёт только до конца старта
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				stream.Run(ctx, symbols)
			}()
			log.Info("market data: stream + REST", zap.String("ws", cfg.Market.WSURL))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
	return stream
}
