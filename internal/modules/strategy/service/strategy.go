package service

import "ladder_bot/internal/models"

type Engine interface {
	// Evaluate считает сигнал по окну закрытых свечей (от старых к новым).
	// models.ErrDataInsufficient: окно короче прогрева, вызывающий трактует как HOLD.
	Evaluate(instrument string, candles []models.Candle) (models.Signal, Snapshot, error)
	MinCandles() int
	Name() string
}
