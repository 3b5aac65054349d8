package models

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventEntry        EventType = "ENTRY"
	EventPartialClose EventType = "PARTIAL_CLOSE"
	EventExit         EventType = "EXIT"
)

// Причины событий журнала.
const (
	ReasonSL     = "SL"
	ReasonSignal = "SIGNAL"
	ReasonManual = "MANUAL"
)

// LedgerEntry: строка журнала сделок.
type LedgerEntry struct {
	Sequence      int64     `json:"sequence"`
	Instrument    string    `json:"instrument"`
	Side          Side      `json:"side"`
	Event         EventType `json:"event"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	RealizedPnl   float64   `json:"realized_pnl"`
	CumulativePnl float64   `json:"cumulative_pnl"`
}

// TPReason: причина для уровня лестницы: TP1, TP2, ...
func TPReason(level int) string {
	return fmt.Sprintf("TP%d", level)
}
