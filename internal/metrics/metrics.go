package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ladder_bot"

// Metrics: коллекторы бота на собственном реестре (без глобального DefaultRegisterer).
// Все методы nil-safe, в тестах можно передавать nil.
type Metrics struct {
	ticks             *prometheus.CounterVec
	tickErrors        *prometheus.CounterVec
	orders            *prometheus.CounterVec
	positionEvents    *prometheus.CounterVec
	openPositions     prometheus.Gauge
	realizedPnl       prometheus.Counter
	storeSaveFailures prometheus.Counter
	storeSaveSeconds  prometheus.Histogram
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Monitor ticks by instrument and resulting state",
		}, []string{"instrument", "state"}),
		tickErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Failed ticks by instrument and stage",
		}, []string{"instrument", "stage"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders sent to the gateway by side and result",
		}, []string{"side", "result"}),
		positionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_events_total",
			Help:      "Position lifecycle events (entry, TP, SL, exits)",
		}, []string{"event", "reason"}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Currently open positions",
		}),
		realizedPnl: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_pnl_abs_total",
			Help:      "Sum of absolute realized P&L, quote currency",
		}),
		storeSaveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_save_failures_total",
			Help:      "State saves that failed after all retries",
		}),
		storeSaveSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_save_seconds",
			Help:      "Latency of atomic state saves",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (m *Metrics) Tick(instrument, state string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(instrument, state).Inc()
}

func (m *Metrics) TickError(instrument, stage string) {
	if m == nil {
		return
	}
	m.tickErrors.WithLabelValues(instrument, stage).Inc()
}

func (m *Metrics) Order(side string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.orders.WithLabelValues(side, result).Inc()
}

func (m *Metrics) PositionEvent(event, reason string, pnl float64) {
	if m == nil {
		return
	}
	m.positionEvents.WithLabelValues(event, reason).Inc()
	if pnl < 0 {
		pnl = -pnl
	}
	m.realizedPnl.Add(pnl)
}

func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}

func (m *Metrics) StoreSave(seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.storeSaveSeconds.Observe(seconds)
	if !ok {
		m.storeSaveFailures.Inc()
	}
}
