package telemetry

import (
	"context"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/modules/config"
	"ladder_bot/pkg/logger"
	"ladder_bot/pkg/tracing"
)

// Module: логгер, трейсер и метрики, раздаются всем модулям через DI.
func Module() fx.Option {
	return fx.Module("telemetry",
		fx.Provide(
			NewLogger,
			NewTracer,
			metrics.NewRegistry,
			func(reg *prometheus.Registry) *metrics.Metrics {
				return metrics.New(reg)
			},
		),
	)
}

func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.New(logger.Config{
		Service: cfg.Service.Name,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = l.Sync()
			return nil
		},
	})
	return l, nil
}

func NewTracer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (opentracing.Tracer, error) {
	tracer, closer, err := tracing.InitTracer(tracing.Config{
		Service: cfg.Service.Name,
		Host:    cfg.Jaeger.Host,
		Port:    cfg.Jaeger.Port,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Jaeger.Host != "" {
		log.Info("tracing enabled", zap.String("agent", cfg.Jaeger.Host))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closeQuiet(closer)
		},
	})
	return tracer, nil
}

func closeQuiet(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}
