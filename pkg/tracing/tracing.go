package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	Service string
	Host    string
	Port    int
}

// Enabled: без хоста агента трассировка не поднимается.
func (c Config) Enabled() bool { return c.Host != "" }

// InitTracer поднимает jaeger-трейсер. При выключенной трассировке
// возвращает NoopTracer.
func InitTracer(conf Config) (opentracing.Tracer, io.Closer, error) {
	if !conf.Enabled() {
		return opentracing.NoopTracer{}, io.NopCloser(nil), nil
	}

	cfg := &jCfg.Configuration{
		ServiceName: conf.Service,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           true,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init jaeger: %w", err)
	}
	return tracer, closer, nil
}

// StartSpan: дочерний спан от ctx. nil-трейсер работает как Noop.
func StartSpan(ctx context.Context, tracer opentracing.Tracer, name string) (opentracing.Span, context.Context) {
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return opentracing.StartSpanFromContextWithTracer(ctx, tracer, name)
}
