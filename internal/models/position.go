package models

import "time"

// Action: результат одного тика позиции.
type Action string

const (
	ActionNone       Action = "NONE"
	ActionTPHit      Action = "TP_HIT"
	ActionSLHit      Action = "SL_HIT"
	ActionSignalExit Action = "SIGNAL_EXIT"
	ActionManualExit Action = "MANUAL_EXIT"
)

// Closed: позиция после действия удалена из стора.
func (a Action) Closed() bool {
	return a == ActionSLHit || a == ActionSignalExit || a == ActionManualExit
}

// TPTarget: одна ступень лестницы тейков.
type TPTarget struct {
	Level    int     `json:"level"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Hit      bool    `json:"hit"`
}

// TrailingState: трейлинг на остаток после лестницы.
type TrailingState struct {
	Active      bool    `json:"active"`
	Watermark   float64 `json:"watermark,omitempty"`
	DistancePct float64 `json:"distance_pct"`
}

// PositionRecord: открытая позиция по инструменту (не больше одной).
type PositionRecord struct {
	Instrument   string        `json:"instrument"`
	Side         Side          `json:"side"`
	EntryPrice   float64       `json:"entry_price"`
	TotalQty     float64       `json:"total_qty"`
	RemainingQty float64       `json:"remaining_qty"`
	StopPrice    float64       `json:"stop_price"`
	InitialStop  float64       `json:"initial_stop"`
	Targets      []TPTarget    `json:"targets"`
	Trailing     TrailingState `json:"trailing"`
	RealizedPnl  float64       `json:"realized_pnl"`
	OpenedAt     time.Time     `json:"opened_at"`
	Sequence     int64         `json:"sequence"`
}

// HitQuantity: сумма объёмов уже сработавших тейков.
func (p *PositionRecord) HitQuantity() float64 {
	var q float64
	for _, t := range p.Targets {
		if t.Hit {
			q += t.Quantity
		}
	}
	return q
}

// NextTarget: индекс первого несработавшего тейка, -1 если лестница пройдена.
func (p *PositionRecord) NextTarget() int {
	for i, t := range p.Targets {
		if !t.Hit {
			return i
		}
	}
	return -1
}

func (p *PositionRecord) AnyTargetHit() bool {
	return len(p.Targets) > 0 && p.Targets[0].Hit
}

// StopCrossed: цена пересекла стоп в невыгодную сторону.
func (p *PositionRecord) StopCrossed(price float64) bool {
	if p.StopPrice <= 0 {
		return false
	}
	if p.Side == SideShort {
		return price >= p.StopPrice
	}
	return price <= p.StopPrice
}

// Reached: цена дошла до уровня level в выгодную сторону.
func (p *PositionRecord) Reached(price, level float64) bool {
	if p.Side == SideShort {
		return price <= level
	}
	return price >= level
}

// Pnl: результат закрытия qty по цене price (без комиссии).
func (p *PositionRecord) Pnl(price, qty float64) float64 {
	return (price - p.EntryPrice) * qty * p.Side.Sign()
}

// Excursion: относительный ход цены от входа в выгодную сторону.
func (p *PositionRecord) Excursion(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * p.Side.Sign()
}

func (p *PositionRecord) Clone() *PositionRecord {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Targets = append([]TPTarget(nil), p.Targets...)
	return &cp
}
