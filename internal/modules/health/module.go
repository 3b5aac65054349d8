package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/health/service"
	ledger "ladder_bot/internal/modules/ledger/service"
	monitor "ladder_bot/internal/modules/monitor/service"
	position "ladder_bot/internal/modules/position/service"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.Service.StatusAddr}
}

// monitorStates приводит состояния мониторов к строкам для JSON.
type monitorStates struct{ r *monitor.Runner }

func (m monitorStates) States() map[string]string {
	out := make(map[string]string)
	for inst, st := range m.r.States() {
		out[inst] = string(st)
	}
	return out
}

type Params struct {
	fx.In

	Cfg      *config.Config
	State    *service.State
	Manager  *position.Manager
	Ledger   ledger.Ledger
	Runner   *monitor.Runner
	Registry *prometheus.Registry
	Log      *zap.Logger
}

func NewHandler(p Params) http.Handler {
	return service.NewAPI(service.Deps{
		State:    p.State,
		Trading:  p.Manager,
		History:  p.Ledger,
		Monitors: monitorStates{r: p.Runner},
		Info: service.Info{
			Instruments:   p.Cfg.Trading.Instruments,
			Simulation:    p.Cfg.Trading.Simulation,
			Confirmations: p.Cfg.Trading.Confirmations,
		},
		Gatherer: p.Registry,
		Log:      p.Log,
	}).Router()
}

func RunHTTP(lc fx.Lifecycle, cfg Config, h http.Handler, log *zap.Logger) {
	if cfg.Addr == "" {
		log.Info("status server disabled")
		return
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			log.Info("status server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("status server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewHandler,
		),
		fx.Invoke(RunHTTP),
	)
}
