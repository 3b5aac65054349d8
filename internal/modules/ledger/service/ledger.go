package service

import (
	"context"

	"ladder_bot/internal/models"
)

// Ledger: журнал исполненных событий, только дописывание.
type Ledger interface {
	Append(ctx context.Context, e models.LedgerEntry) error
	// Recent: последние n записей, новые первыми.
	Recent(ctx context.Context, n int) ([]models.LedgerEntry, error)
	Reset(ctx context.Context) error
}
