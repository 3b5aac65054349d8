package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ladder_bot/internal/modules/config"
	"ladder_bot/pkg/db"
)

// Module: пул Postgres для журнала сделок. Без ledger.db_dsn отдаёт nil.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(NewTxManager),
	)
}

func NewTxManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*db.PgTxManager, error) {
	if cfg.Ledger.DSN == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Retry.CallTimeout)
	defer cancel()

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.Ledger.DSN})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}
	log.Info("postgres connected")

	m := db.NewPgTxManager(poolMaster)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m, nil
}
