package main

import (
	"go.uber.org/fx"

	"ladder_bot/internal/modules/config"
	"ladder_bot/internal/modules/gateway"
	"ladder_bot/internal/modules/health"
	"ladder_bot/internal/modules/ledger"
	"ladder_bot/internal/modules/market"
	"ladder_bot/internal/modules/monitor"
	"ladder_bot/internal/modules/position"
	"ladder_bot/internal/modules/postgres"
	"ladder_bot/internal/modules/store"
	"ladder_bot/internal/modules/strategy"
	telegram "ladder_bot/internal/modules/telegram_bot"
	"ladder_bot/internal/modules/telemetry"
)

func options() fx.Option {
	return fx.Options(
		config.Module(),
		telemetry.Module(),
		store.Module(),
		postgres.Module(),
		market.Module(),
		gateway.Module(),
		telegram.Module(),
		ledger.Module(),
		strategy.Module(),
		position.Module(),
		health.Module(),
		monitor.Module(),
	)
}

func main() {
	// Run блокирует до SIGINT/SIGTERM и гасит модули в обратном порядке
	fx.New(options()).Run()
}
