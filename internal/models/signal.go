package models

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Side возвращает сторону входа для сигнала; для HOLD ok=false.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideLong, true
	case SignalSell:
		return SideShort, true
	}
	return "", false
}

// Opposes: сигнал противоположен открытой позиции.
func (s Signal) Opposes(side Side) bool {
	return (side == SideLong && s == SignalSell) || (side == SideShort && s == SignalBuy)
}
