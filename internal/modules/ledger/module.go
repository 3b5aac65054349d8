package ledger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/ledger/service"
	"ladder_bot/internal/notify"
	"ladder_bot/pkg/db"
)

// Module: журнал сделок. Postgres при заданном DSN, иначе CSV;
// поверх всегда уведомления.
func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(NewLedger),
	)
}

func NewLedger(lc fx.Lifecycle, cfg *config.Config, tx *db.PgTxManager, n notify.Notifier, log *zap.Logger) service.Ledger {
	var base service.Ledger
	if tx != nil {
		pg := service.NewPostgres(tx)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return pg.Migrate(ctx)
			},
		})
		base = pg
		log.Info("trade ledger: postgres")
	} else {
		base = service.NewCSV(cfg.Ledger.CSVPath)
		log.Info("trade ledger: csv", zap.String("path", cfg.Ledger.CSVPath))
	}
	return service.NewNotifying(base, n)
}
