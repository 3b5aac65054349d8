package service

import (
	"ladder_bot/internal/modules/config"
)

func NewEngine(cfg *config.Config) Engine {
	return NewCrossover(cfg.Strategy)
}
