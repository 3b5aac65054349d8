package service

import (
	"context"

	"ladder_bot/internal/models"
	"ladder_bot/internal/notify"
)

// Notifying дублирует каждую запись журнала в уведомления.
type Notifying struct {
	Ledger
	n notify.Notifier
}

func NewNotifying(next Ledger, n notify.Notifier) *Notifying {
	return &Notifying{Ledger: next, n: n}
}

// Append: событие уже исполнено, поэтому уведомление уходит и при
// ошибке записи в журнал.
func (l *Notifying) Append(ctx context.Context, e models.LedgerEntry) error {
	err := l.Ledger.Append(ctx, e)
	l.n.Send(ctx, notify.FormatEntry(e))
	return err
}
