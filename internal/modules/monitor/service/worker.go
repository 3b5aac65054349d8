package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/models"
	market "ladder_bot/internal/modules/market/service"
	strategy "ladder_bot/internal/modules/strategy/service"
	"ladder_bot/pkg/retry"
	"ladder_bot/pkg/tracing"
)

// State: состояние монитора инструмента.
type State string

const (
	StateIdle         State = "IDLE"
	StateAccumulating State = "ACCUMULATING"
	StateCooldown     State = "COOLDOWN"
)

// Positions: часть менеджера позиций, нужная монитору.
type Positions interface {
	HasPosition(ctx context.Context, instrument string) bool
	Open(ctx context.Context, instrument string, side models.Side, price, quantity float64, candles []models.Candle) (*models.PositionRecord, error)
	EvaluateTick(ctx context.Context, instrument string, price float64, sig models.Signal) (models.Action, error)
}

// Heartbeat отмечает живой тик (для /healthz).
type Heartbeat interface {
	TouchTick(t time.Time)
}

type WorkerConfig struct {
	Instrument            string
	Confirmations         int
	Cooldown              time.Duration
	PollInterval          time.Duration
	CandleIntervalMinutes int
	CandleCount           int
	TradeNotional         float64
	CallTimeout           time.Duration
	Retry                 retry.Policy
}

// TickResult: итог одного опроса.
type TickResult struct {
	State   State
	Signal  models.Signal
	Price   float64
	Counter int
	Action  models.Action
	Opened  bool
	Skipped bool
	Err     error
}

// Worker: монитор одного инструмента. Однопоточный, общается с другими
// воркерами только через стор.
type Worker struct {
	cfg       WorkerConfig
	provider  market.Provider
	engine    strategy.Engine
	positions Positions
	heartbeat Heartbeat
	log       *zap.Logger
	metrics   *metrics.Metrics
	tracer    opentracing.Tracer
	now       func() time.Time

	state         State
	counter       int
	cooldownUntil time.Time

	// published: состояние для чтения из других горутин
	published atomic.Value
}

type WorkerDeps struct {
	Provider  market.Provider
	Engine    strategy.Engine
	Positions Positions
	Heartbeat Heartbeat
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Tracer    opentracing.Tracer
}

func NewWorker(cfg WorkerConfig, d WorkerDeps) *Worker {
	w := &Worker{
		cfg:       cfg,
		provider:  d.Provider,
		engine:    d.Engine,
		positions: d.Positions,
		heartbeat: d.Heartbeat,
		log:       d.Log.Named("monitor").With(zap.String("instrument", cfg.Instrument)),
		metrics:   d.Metrics,
		tracer:    d.Tracer,
		now:       time.Now,
		state:     StateIdle,
	}
	w.published.Store(StateIdle)
	w.cfg.Retry = cfg.Retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		w.log.Warn("market data retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	return w
}

// State: состояние на конец последнего тика, безопасно из любой горутины.
func (w *Worker) State() State { return w.published.Load().(State) }

// Run: цикл опроса до отмены ctx. Первый тик сразу.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("monitor started", zap.Duration("poll", w.cfg.PollInterval))
	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()

	for {
		if ctx.Err() != nil {
			w.log.Info("monitor stopped")
			return
		}
		w.Tick(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("monitor stopped")
			return
		case <-t.C:
		}
	}
}

// Tick: один опрос. Паника и ошибки гасятся, тик становится пустым.
func (w *Worker) Tick(ctx context.Context) (res TickResult) {
	span, ctx := tracing.StartSpan(ctx, w.tracer, "monitor.tick")
	defer span.Finish()
	span.SetTag("instrument", w.cfg.Instrument)

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("tick panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			w.metrics.TickError(w.cfg.Instrument, "panic")
			res = TickResult{State: w.state, Counter: w.counter, Skipped: true, Err: fmt.Errorf("panic: %v", r)}
		}
		w.published.Store(res.State)
		w.metrics.Tick(w.cfg.Instrument, string(res.State))
		if w.heartbeat != nil {
			w.heartbeat.TouchTick(w.now())
		}
	}()

	res = w.tick(ctx)
	return res
}

func (w *Worker) tick(ctx context.Context) TickResult {
	candles, err := retry.DoValue(ctx, w.cfg.Retry, func(ctx context.Context) ([]models.Candle, error) {
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
		defer cancel()
		return w.provider.Candles(cctx, w.cfg.Instrument, w.cfg.CandleIntervalMinutes, w.cfg.CandleCount)
	})
	if err != nil {
		return w.skip("candles", err)
	}

	price, err := retry.DoValue(ctx, w.cfg.Retry, func(ctx context.Context) (float64, error) {
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
		defer cancel()
		p, ok, err := w.provider.LatestPrice(cctx, w.cfg.Instrument)
		if err == nil && !ok {
			return 0, retry.Permanent(errNoPrice)
		}
		return p, err
	})
	if err != nil {
		return w.skip("price", err)
	}

	sig, snap, err := w.engine.Evaluate(w.cfg.Instrument, candles)
	switch {
	case errors.Is(err, models.ErrDataInsufficient):
		w.log.Debug("not enough candles, HOLD", zap.Int("candles", len(candles)), zap.Int("need", w.engine.MinCandles()))
		sig = models.SignalHold
	case err != nil:
		w.log.Warn("strategy failed, HOLD", zap.Error(err))
		w.metrics.TickError(w.cfg.Instrument, "strategy")
		sig = models.SignalHold
	}

	res := TickResult{Signal: sig, Price: price}
	now := w.now()

	// открытой позицией управляем всегда, в том числе в кулдауне
	if w.positions.HasPosition(ctx, w.cfg.Instrument) {
		act, err := w.positions.EvaluateTick(ctx, w.cfg.Instrument, price, sig)
		res.Action, res.Err = act, err
		if err != nil {
			w.log.Warn("position evaluation failed", zap.Float64("price", price), zap.Error(err))
			w.metrics.TickError(w.cfg.Instrument, "position")
		}
		if act.Closed() {
			w.startCooldown(now)
		} else if w.state != StateCooldown || !now.Before(w.cooldownUntil) {
			w.state = StateIdle
		}
		w.counter = 0
		res.State, res.Counter = w.state, w.counter
		return res
	}

	if w.state == StateCooldown && now.Before(w.cooldownUntil) {
		res.State, res.Counter = w.state, w.counter
		return res
	}

	if sig == models.SignalHold {
		w.counter = 0
		w.state = StateIdle
		res.State, res.Counter = w.state, w.counter
		return res
	}

	w.counter++
	w.state = StateAccumulating
	w.log.Info("signal confirmation",
		zap.String("signal", string(sig)),
		zap.Int("count", w.counter),
		zap.Int("need", w.cfg.Confirmations),
		zap.Stringer("indicators", snap),
	)

	if w.counter >= w.cfg.Confirmations {
		side, _ := sig.Side()
		qty := w.cfg.TradeNotional / price
		if _, err := w.positions.Open(ctx, w.cfg.Instrument, side, price, qty, candles); err != nil {
			// счётчик сохраняем: вход повторится на следующем тике
			w.log.Warn("entry failed", zap.String("signal", string(sig)), zap.Error(err))
			w.metrics.TickError(w.cfg.Instrument, "open")
			res.Err = err
		} else {
			res.Opened = true
			w.counter = 0
			w.startCooldown(now)
		}
	}
	res.State, res.Counter = w.state, w.counter
	return res
}

var errNoPrice = fmt.Errorf("%w: no latest price", models.ErrTransientIO)

func (w *Worker) skip(stage string, err error) TickResult {
	w.log.Warn("market data unavailable, tick skipped", zap.String("stage", stage), zap.Error(err))
	w.metrics.TickError(w.cfg.Instrument, stage)
	return TickResult{State: w.state, Counter: w.counter, Skipped: true, Err: err}
}

func (w *Worker) startCooldown(now time.Time) {
	if w.cfg.Cooldown <= 0 {
		w.state = StateIdle
		return
	}
	w.state = StateCooldown
	w.cooldownUntil = now.Add(w.cfg.Cooldown)
	w.log.Info("cooldown started", zap.Time("until", w.cooldownUntil))
}
