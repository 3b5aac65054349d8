package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ladder_bot/internal/models"
	"ladder_bot/pkg/tracing"
)

// допуск сравнения хода цены с порогом активации трейлинга
const excursionEps = 1e-12

// EvaluateTick: не больше одного действия за тик, в порядке
// стоп -> следующий тейк -> трейлинг -> выход по противоположному сигналу.
// Обновление трейлинга наружу отдаётся как NONE.
func (m *Manager) EvaluateTick(ctx context.Context, instrument string, price float64, sig models.Signal) (models.Action, error) {
	span, ctx := tracing.StartSpan(ctx, m.tracer, "position.evaluate")
	defer span.Finish()
	span.SetTag("instrument", instrument)

	unlock := m.lock(instrument)
	defer unlock()

	rec, ok := m.store.Position(ctx, instrument)
	if !ok {
		return models.ActionNone, nil
	}
	if price <= 0 {
		return models.ActionNone, fmt.Errorf("%w: price %v", models.ErrInvalidState, price)
	}
	log := m.log.With(zap.String("instrument", instrument), zap.String("side", string(rec.Side)), zap.Int64("sequence", rec.Sequence))

	// 1. стоп
	if rec.StopCrossed(price) {
		log.Info("stop crossed", zap.Float64("price", price), zap.Float64("stop", rec.StopPrice), zap.Bool("trailing", rec.Trailing.Active))
		_, err := m.closeAll(ctx, log, rec, price, models.ActionSLHit, models.ReasonSL)
		if err != nil {
			return models.ActionNone, err
		}
		return models.ActionSLHit, nil
	}

	// 2. следующий тейк
	if idx := rec.NextTarget(); idx >= 0 && rec.Reached(price, rec.Targets[idx].Price) {
		if err := m.takeProfit(ctx, log, rec, idx, price); err != nil {
			return models.ActionNone, err
		}
		return models.ActionTPHit, nil
	}

	// 3. трейлинг: считаем на копии, фиксируем если нет выхода по сигналу
	trailed := rec.Clone()
	changed := m.trail(trailed, price)

	// 4. противоположный сигнал
	if sig.Opposes(rec.Side) {
		log.Info("opposite signal", zap.String("signal", string(sig)), zap.Float64("price", price))
		_, err := m.closeAll(ctx, log, rec, price, models.ActionSignalExit, models.ReasonSignal)
		if err != nil {
			return models.ActionNone, err
		}
		return models.ActionSignalExit, nil
	}

	if changed {
		err := m.store.Update(ctx, func(st *models.State) error {
			cur, ok := st.OpenTrades[instrument]
			if !ok || cur.Sequence != rec.Sequence {
				return nil
			}
			m.trail(cur, price)
			return nil
		})
		if err = m.committed(log, err); err != nil {
			return models.ActionNone, err
		}
		log.Debug("trailing updated",
			zap.Float64("watermark", trailed.Trailing.Watermark),
			zap.Float64("stop", trailed.StopPrice))
	}
	return models.ActionNone, nil
}

func (m *Manager) takeProfit(ctx context.Context, log *zap.Logger, rec *models.PositionRecord, idx int, price float64) error {
	t := rec.Targets[idx]
	remaining := rec.TotalQty - rec.HitQuantity() - t.Quantity
	if remaining <= 0 {
		log.Error("take profit would leave no remaining quantity, skipped",
			zap.Int("level", t.Level), zap.Float64("remaining", remaining))
		return fmt.Errorf("%w: remaining %v after TP%d", models.ErrInvalidState, remaining, t.Level)
	}

	if !m.gateway.PlaceOrder(ctx, rec.Side.ExitOrder(), rec.Instrument, t.Quantity) {
		log.Warn("take profit order not confirmed, level kept for next tick", zap.Int("level", t.Level))
		return models.ErrOrderRejected
	}

	var entry models.LedgerEntry
	var after *models.PositionRecord
	err := m.store.Update(ctx, func(st *models.State) error {
		cur, ok := st.OpenTrades[rec.Instrument]
		if !ok || cur.Sequence != rec.Sequence || cur.NextTarget() != idx {
			return fmt.Errorf("%w: position changed while TP%d order was in flight", models.ErrInvalidState, t.Level)
		}

		pnl := cur.Pnl(price, t.Quantity) - m.fee(price, t.Quantity)
		cur.Targets[idx].Hit = true
		cur.RemainingQty = cur.TotalQty - cur.HitQuantity()
		cur.RealizedPnl += pnl
		st.CumulativePnl += pnl

		// храповик: TP1 -> вход, TPk -> цена TP(k-1)
		ratchet := cur.EntryPrice
		if idx > 0 {
			ratchet = cur.Targets[idx-1].Price
		}
		improveStop(cur, ratchet)
		if cur.NextTarget() < 0 {
			m.trail(cur, price)
		}

		after = cur.Clone()
		entry = m.entry(cur, models.EventPartialClose, models.TPReason(t.Level), price, t.Quantity, pnl, st.CumulativePnl)
		return nil
	})
	if err = m.committed(log, err); err != nil {
		log.Error("take profit executed but state not updated", zap.Int("level", t.Level), zap.Error(err))
		return err
	}

	log.Info("take profit hit",
		zap.Int("level", t.Level),
		zap.Float64("price", price),
		zap.Float64("closed", t.Quantity),
		zap.Float64("remaining", after.RemainingQty),
		zap.Float64("stop", after.StopPrice),
		zap.Bool("trailing", after.Trailing.Active),
	)
	m.record(ctx, log, entry)
	return nil
}

// closeAll закрывает весь остаток и удаляет позицию.
func (m *Manager) closeAll(ctx context.Context, log *zap.Logger, rec *models.PositionRecord, price float64, action models.Action, reason string) (models.LedgerEntry, error) {
	if !m.gateway.PlaceOrder(ctx, rec.Side.ExitOrder(), rec.Instrument, rec.RemainingQty) {
		log.Warn("exit order not confirmed, position kept", zap.String("reason", reason))
		return models.LedgerEntry{}, models.ErrOrderRejected
	}

	var (
		entry models.LedgerEntry
		total float64
	)
	err := m.store.Update(ctx, func(st *models.State) error {
		cur, ok := st.OpenTrades[rec.Instrument]
		if !ok || cur.Sequence != rec.Sequence {
			return fmt.Errorf("%w: position changed while exit order was in flight", models.ErrInvalidState)
		}
		qty := cur.RemainingQty
		pnl := cur.Pnl(price, qty) - m.fee(price, qty)
		total = cur.RealizedPnl + pnl

		st.CumulativePnl += pnl
		st.Stats.Record(cur.Side, total)
		delete(st.OpenTrades, rec.Instrument)

		entry = m.entry(cur, models.EventExit, reason, price, qty, pnl, st.CumulativePnl)
		return nil
	})
	if err = m.committed(log, err); err != nil {
		log.Error("exit executed but state not updated", zap.String("reason", reason), zap.Error(err))
		return models.LedgerEntry{}, err
	}

	log.Info("position closed",
		zap.String("action", string(action)),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("quantity", entry.Quantity),
		zap.Float64("trade_pnl", total),
		zap.Float64("cumulative_pnl", entry.CumulativePnl),
	)
	m.record(ctx, log, entry)
	return entry, nil
}

// trail активирует или ведёт трейлинг. true: запись изменилась.
func (m *Manager) trail(p *models.PositionRecord, price float64) bool {
	if !p.Trailing.Active {
		if p.NextTarget() >= 0 || p.Excursion(price) < m.cfg.Trailing.ActivationPct-excursionEps {
			return false
		}
		p.Trailing = models.TrailingState{Active: true, Watermark: price, DistancePct: m.cfg.Trailing.DistancePct}
		improveStop(p, p.Side.Offset(price, -p.Trailing.DistancePct))
		return true
	}

	changed := false
	if p.Side.Improves(price, p.Trailing.Watermark) {
		p.Trailing.Watermark = price
		changed = true
	}
	if improveStop(p, p.Side.Offset(p.Trailing.Watermark, -p.Trailing.DistancePct)) {
		changed = true
	}
	return changed
}

// improveStop двигает стоп только в выгодную сторону.
func improveStop(p *models.PositionRecord, candidate float64) bool {
	if p.StopPrice <= 0 || p.Side.Improves(candidate, p.StopPrice) {
		p.StopPrice = candidate
		return true
	}
	return false
}
