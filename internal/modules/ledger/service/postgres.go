package service

import (
	"context"
	"fmt"

	"ladder_bot/internal/models"
	"ladder_bot/pkg/db"
)

const (
	createLedgerTable = `
CREATE TABLE IF NOT EXISTS trade_ledger (
	id             BIGSERIAL PRIMARY KEY,
	sequence       BIGINT           NOT NULL,
	instrument     TEXT             NOT NULL,
	side           TEXT             NOT NULL,
	event          TEXT             NOT NULL,
	reason         TEXT             NOT NULL DEFAULT '',
	ts             TIMESTAMPTZ      NOT NULL,
	price          DOUBLE PRECISION NOT NULL,
	quantity       DOUBLE PRECISION NOT NULL,
	realized_pnl   DOUBLE PRECISION NOT NULL,
	cumulative_pnl DOUBLE PRECISION NOT NULL
)`

	insertLedgerEntry = `
INSERT INTO trade_ledger (sequence, instrument, side, event, reason, ts, price, quantity, realized_pnl, cumulative_pnl)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectRecentEntries = `
SELECT sequence, instrument, side, event, reason, ts, price, quantity, realized_pnl, cumulative_pnl
FROM trade_ledger
ORDER BY id DESC
LIMIT $1`

	truncateLedger = `TRUNCATE trade_ledger`
)

// Postgres: журнал в таблице trade_ledger.
type Postgres struct {
	db db.TxManager
}

func NewPostgres(tx db.TxManager) *Postgres {
	return &Postgres{db: tx}
}

// Migrate создаёт таблицу, если её нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, createLedgerTable)
		return err
	})
}

func (p *Postgres) Append(ctx context.Context, e models.LedgerEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Append: %w: %w", models.ErrTransientIO, err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertLedgerEntry,
			e.Sequence, e.Instrument, string(e.Side), string(e.Event), e.Reason,
			e.Timestamp.UTC(), e.Price, e.Quantity, e.RealizedPnl, e.CumulativePnl)
		return err
	})
}

func (p *Postgres) Recent(ctx context.Context, n int) (out []models.LedgerEntry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Recent: %w", err)
		}
	}()
	if n <= 0 {
		n = 100
	}

	err = p.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctxTx, selectRecentEntries, n)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e          models.LedgerEntry
				side, evnt string
			)
			if err := rows.Scan(&e.Sequence, &e.Instrument, &side, &evnt, &e.Reason,
				&e.Timestamp, &e.Price, &e.Quantity, &e.RealizedPnl, &e.CumulativePnl); err != nil {
				return err
			}
			e.Side = models.Side(side)
			e.Event = models.EventType(evnt)
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (p *Postgres) Reset(ctx context.Context) error {
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, truncateLedger)
		return err
	})
}
