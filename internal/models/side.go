package models

import "strings"

// Side: направление позиции.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderSide: направление ордера на бирже.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong, true
	case "short", "sell":
		return SideShort, true
	}
	return "", false
}

// Sign: +1 для лонга, -1 для шорта.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// EntryOrder: ордер, открывающий позицию.
func (s Side) EntryOrder() OrderSide {
	if s == SideShort {
		return OrderSell
	}
	return OrderBuy
}

// ExitOrder: ордер, закрывающий (частично или полностью) позицию.
func (s Side) ExitOrder() OrderSide {
	if s == SideShort {
		return OrderBuy
	}
	return OrderSell
}

// Improves сообщает, что цена a выгоднее b для данной стороны
// (лонг: выше, шорт: ниже).
func (s Side) Improves(a, b float64) bool {
	if s == SideShort {
		return a < b
	}
	return a > b
}

// Offset сдвигает цену на pct в выгодную (pct>0) или невыгодную (pct<0) сторону.
func (s Side) Offset(price, pct float64) float64 {
	return price * (1 + s.Sign()*pct)
}
