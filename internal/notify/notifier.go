package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ladder_bot/internal/helper"
	"ladder_bot/internal/models"
)

// Notifier: уведомления о сделках. Ошибки доставки не возвращаются,
// торговый цикл от них не зависит.
type Notifier interface {
	Send(ctx context.Context, msg string)
}

func Sendf(ctx context.Context, n Notifier, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}

// Log: уведомления в лог, когда Telegram не настроен.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log.Named("notify")} }

func (l *Log) Send(_ context.Context, msg string) {
	l.log.Info(msg)
}

// FormatEntry: текст уведомления по записи журнала.
func FormatEntry(e models.LedgerEntry) string {
	side := strings.ToUpper(string(e.Side))
	switch e.Event {
	case models.EventEntry:
		return fmt.Sprintf("🟢 %s %s #%d открыт @ %s, объём %s",
			e.Instrument, side, e.Sequence, helper.FormatPrice(e.Price), formatQty(e.Quantity))
	case models.EventPartialClose:
		return fmt.Sprintf("🎯 %s %s #%d %s @ %s, закрыто %s, PnL %+.4f (всего %+.4f)",
			e.Instrument, side, e.Sequence, e.Reason, helper.FormatPrice(e.Price), formatQty(e.Quantity),
			e.RealizedPnl, e.CumulativePnl)
	}
	icon := "🔴"
	if e.RealizedPnl > 0 {
		icon = "✅"
	}
	return fmt.Sprintf("%s %s %s #%d закрыт (%s) @ %s, объём %s, PnL %+.4f (всего %+.4f)",
		icon, e.Instrument, side, e.Sequence, e.Reason, helper.FormatPrice(e.Price), formatQty(e.Quantity),
		e.RealizedPnl, e.CumulativePnl)
}

// FormatPositions: ответ на /positions.
func FormatPositions(ps []*models.PositionRecord) string {
	if len(ps) == 0 {
		return "📭 Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range ps {
		fmt.Fprintf(&b, "- %s [%s] #%d вход %s, остаток %s, стоп %s",
			p.Instrument, strings.ToUpper(string(p.Side)), p.Sequence,
			helper.FormatPrice(p.EntryPrice), formatQty(p.RemainingQty), helper.FormatPrice(p.StopPrice))
		for _, t := range p.Targets {
			mark := "·"
			if t.Hit {
				mark = "✓"
			}
			fmt.Fprintf(&b, " TP%d%s", t.Level, mark)
		}
		if p.Trailing.Active {
			fmt.Fprintf(&b, " трейл от %s", helper.FormatPrice(p.Trailing.Watermark))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStats: ответ на /stats.
func FormatStats(st models.AggregateStats, cumulativePnl float64) string {
	return fmt.Sprintf("📈 LONG: %d (✅ %d / ❌ %d)\n📉 SHORT: %d (✅ %d / ❌ %d)\n💰 PnL: %+.4f",
		st.Long.Total, st.Long.Success, st.Long.Fail,
		st.Short.Total, st.Short.Success, st.Short.Fail,
		cumulativePnl)
}

func formatQty(q float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", q), "0"), ".")
}
