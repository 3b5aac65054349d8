package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/models"
	"ladder_bot/internal/modules/config"
	gateway "ladder_bot/internal/modules/gateway/service"
	ledger "ladder_bot/internal/modules/ledger/service"
	store "ladder_bot/internal/modules/store/service"
	"ladder_bot/pkg/tracing"
)

// PriceSource: последняя цена для ручного закрытия.
type PriceSource interface {
	LatestPrice(ctx context.Context, instrument string) (float64, bool, error)
}

type Config struct {
	Levels   []config.TPLevel
	Trailing config.TrailingConfig
	Stop     config.StopConfig
	FeePct   float64
}

func ConfigFrom(c *config.Config) Config {
	return Config{
		Levels:   c.TakeProfit.Levels,
		Trailing: c.Trailing,
		Stop:     c.Stop,
		FeePct:   c.Trading.FeePct,
	}
}

// Manager ведёт жизненный цикл позиций: вход, лестница тейков, стоп,
// трейлинг, закрытие. Изменение состояния фиксируется только после
// подтверждения ордера шлюзом. Все операции по одному инструменту
// (воркер, ручное закрытие) идут под его мьютексом: снимок, ордер и
// фиксация в сторе не пересекаются.
type Manager struct {
	cfg     Config
	store   *store.Store
	gateway gateway.Gateway
	ledger  ledger.Ledger
	prices  PriceSource
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  opentracing.Tracer
	now     func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type Deps struct {
	Store   *store.Store
	Gateway gateway.Gateway
	Ledger  ledger.Ledger
	Prices  PriceSource
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Tracer  opentracing.Tracer
}

func NewManager(cfg Config, d Deps) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   d.Store,
		gateway: d.Gateway,
		ledger:  d.Ledger,
		prices:  d.Prices,
		log:     d.Log.Named("position"),
		metrics: d.Metrics,
		tracer:  d.Tracer,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lock захватывает мьютекс инструмента, возвращает unlock.
func (m *Manager) lock(instrument string) func() {
	m.locksMu.Lock()
	mu, ok := m.locks[instrument]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[instrument] = mu
	}
	m.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

var ErrNoPosition = fmt.Errorf("%w: no open position", models.ErrInvalidState)

// Open: вход в позицию. Ордер отправляется до записи в стор.
func (m *Manager) Open(ctx context.Context, instrument string, side models.Side, price, quantity float64, candles []models.Candle) (*models.PositionRecord, error) {
	span, ctx := tracing.StartSpan(ctx, m.tracer, "position.open")
	defer span.Finish()
	span.SetTag("instrument", instrument)

	log := m.log.With(zap.String("instrument", instrument), zap.String("side", string(side)))

	if price <= 0 || quantity <= 0 {
		return nil, fmt.Errorf("%w: open with price=%v quantity=%v", models.ErrInvalidState, price, quantity)
	}

	unlock := m.lock(instrument)
	defer unlock()

	if _, ok := m.store.Position(ctx, instrument); ok {
		return nil, fmt.Errorf("%w: position already open", models.ErrInvalidState)
	}

	stop := InitialStop(side, price, candles, m.cfg.Stop)
	targets := BuildTargets(side, price, quantity, m.cfg.Levels)

	if !m.gateway.PlaceOrder(ctx, side.EntryOrder(), instrument, quantity) {
		log.Warn("entry order not confirmed, position not opened")
		return nil, models.ErrOrderRejected
	}

	var (
		rec   *models.PositionRecord
		entry models.LedgerEntry
	)
	err := m.store.Update(ctx, func(st *models.State) error {
		if _, ok := st.OpenTrades[instrument]; ok {
			return fmt.Errorf("%w: position appeared while entry order was in flight", models.ErrInvalidState)
		}
		fee := -m.fee(price, quantity)
		r := &models.PositionRecord{
			Instrument:   instrument,
			Side:         side,
			EntryPrice:   price,
			TotalQty:     quantity,
			RemainingQty: quantity,
			StopPrice:    stop,
			InitialStop:  stop,
			Targets:      targets,
			Trailing:     models.TrailingState{DistancePct: m.cfg.Trailing.DistancePct},
			RealizedPnl:  fee,
			OpenedAt:     m.now().UTC(),
			Sequence:     st.NextSequence(),
		}
		st.OpenTrades[instrument] = r
		st.CumulativePnl += fee

		rec = r.Clone()
		entry = m.entry(r, models.EventEntry, "", price, quantity, fee, st.CumulativePnl)
		return nil
	})
	if err = m.committed(log, err); err != nil {
		return nil, err
	}

	log.Info("position opened",
		zap.Int64("sequence", rec.Sequence),
		zap.Float64("entry", price),
		zap.Float64("quantity", quantity),
		zap.Float64("stop", stop),
		zap.Any("targets", rec.Targets),
	)
	m.record(ctx, log, entry)
	return rec, nil
}

// Close: ручное закрытие всего остатка по цене price.
func (m *Manager) Close(ctx context.Context, instrument string, price float64, reason string) (models.LedgerEntry, error) {
	unlock := m.lock(instrument)
	defer unlock()

	rec, ok := m.store.Position(ctx, instrument)
	if !ok {
		return models.LedgerEntry{}, ErrNoPosition
	}
	if price <= 0 {
		return models.LedgerEntry{}, fmt.Errorf("%w: close price %v", models.ErrInvalidState, price)
	}
	log := m.log.With(zap.String("instrument", instrument), zap.String("side", string(rec.Side)))
	return m.closeAll(ctx, log, rec, price, models.ActionManualExit, reason)
}

// CloseAtMarket: ручное закрытие по последней цене.
func (m *Manager) CloseAtMarket(ctx context.Context, instrument string) (models.LedgerEntry, error) {
	if _, ok := m.store.Position(ctx, instrument); !ok {
		return models.LedgerEntry{}, ErrNoPosition
	}
	if m.prices == nil {
		return models.LedgerEntry{}, errors.New("no price source configured")
	}
	price, ok, err := m.prices.LatestPrice(ctx, instrument)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("%w: no price for %s", models.ErrTransientIO, instrument)
	}
	return m.Close(ctx, instrument, price, models.ReasonManual)
}

// Positions: открытые позиции, по инструменту.
func (m *Manager) Positions(ctx context.Context) []*models.PositionRecord {
	st := m.store.Snapshot(ctx)
	out := make([]*models.PositionRecord, 0, len(st.OpenTrades))
	for _, p := range st.OpenTrades {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

func (m *Manager) Stats(ctx context.Context) (models.AggregateStats, float64) {
	st := m.store.Snapshot(ctx)
	return st.Stats, st.CumulativePnl
}

func (m *Manager) HasPosition(ctx context.Context, instrument string) bool {
	_, ok := m.store.Position(ctx, instrument)
	return ok
}

func (m *Manager) fee(price, qty float64) float64 {
	return price * qty * m.cfg.FeePct
}

func (m *Manager) entry(p *models.PositionRecord, ev models.EventType, reason string, price, qty, pnl, cum float64) models.LedgerEntry {
	return models.LedgerEntry{
		Sequence:      p.Sequence,
		Instrument:    p.Instrument,
		Side:          p.Side,
		Event:         ev,
		Reason:        reason,
		Timestamp:     m.now().UTC(),
		Price:         price,
		Quantity:      qty,
		RealizedPnl:   pnl,
		CumulativePnl: cum,
	}
}

// committed: изменение в памяти, но не на диске, считается применённым.
func (m *Manager) committed(log *zap.Logger, err error) error {
	if errors.Is(err, store.ErrNotPersisted) {
		log.Warn("state change kept in memory, file write failed", zap.Error(err))
		return nil
	}
	return err
}

// record пишет событие в журнал; ошибка журнала не откатывает сделку.
func (m *Manager) record(ctx context.Context, log *zap.Logger, e models.LedgerEntry) {
	m.metrics.PositionEvent(string(e.Event), e.Reason, e.RealizedPnl)
	if err := m.ledger.Append(context.WithoutCancel(ctx), e); err != nil {
		log.Error("ledger append failed", zap.String("event", string(e.Event)), zap.Error(err))
	}
}
