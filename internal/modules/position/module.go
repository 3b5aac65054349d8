package position

import (
	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/modules/config"
	gateway "ladder_bot/internal/modules/gateway/service"
	ledger "ladder_bot/internal/modules/ledger/service"
	market "ladder_bot/internal/modules/market/service"
	"ladder_bot/internal/modules/position/service"
	store "ladder_bot/internal/modules/store/service"
)

func Module() fx.Option {
	return fx.Module("position",
		fx.Provide(NewManager),
	)
}

type Params struct {
	fx.In

	Cfg      *config.Config
	Store    *store.Store
	Gateway  gateway.Gateway
	Ledger   ledger.Ledger
	Provider market.Provider
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Tracer   opentracing.Tracer
}

func NewManager(p Params) *service.Manager {
	return service.NewManager(service.ConfigFrom(p.Cfg), service.Deps{
		Store:   p.Store,
		Gateway: p.Gateway,
		Ledger:  p.Ledger,
		Prices:  p.Provider,
		Log:     p.Log,
		Metrics: p.Metrics,
		Tracer:  p.Tracer,
	})
}
