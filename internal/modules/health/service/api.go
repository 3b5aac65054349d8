package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ladder_bot/internal/models"
)

// Trading: позиции и статистика.
type Trading interface {
	Positions(ctx context.Context) []*models.PositionRecord
	Stats(ctx context.Context) (models.AggregateStats, float64)
	CloseAtMarket(ctx context.Context, instrument string) (models.LedgerEntry, error)
}

type History interface {
	Recent(ctx context.Context, n int) ([]models.LedgerEntry, error)
}

// Monitors: состояния мониторов по инструментам.
type Monitors interface {
	States() map[string]string
}

type Info struct {
	Instruments   []string
	Simulation    bool
	Confirmations int
}

type API struct {
	state    *State
	trading  Trading
	history  History
	monitors Monitors
	info     Info
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

type Deps struct {
	State    *State
	Trading  Trading
	History  History
	Monitors Monitors
	Info     Info
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func NewAPI(d Deps) *API {
	return &API{
		state:    d.State,
		trading:  d.Trading,
		history:  d.History,
		monitors: d.Monitors,
		info:     d.Info,
		gatherer: d.Gatherer,
		log:      d.Log.Named("http"),
	}
}

const defaultHistoryLimit = 20

func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !a.state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)

	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", a.stats).Methods(http.MethodGet)
	api.HandleFunc("/open-trades", a.openTrades).Methods(http.MethodGet)
	api.HandleFunc("/trade-history", a.tradeHistory).Methods(http.MethodGet)
	api.HandleFunc("/positions/{instrument}/close", a.closePosition).Methods(http.MethodPost)
	return r
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	var lastTick int64
	if t := a.state.LastTick(); !t.IsZero() {
		lastTick = t.Unix()
	}
	resp := map[string]any{
		"ready":        a.state.Ready(),
		"uptimeSec":    int64(a.state.Uptime().Seconds()),
		"lastTickUnix": lastTick,
	}
	if a.monitors != nil {
		resp["monitors"] = a.monitors.States()
	}
	a.writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Long             models.SideStats `json:"long"`
	Short            models.SideStats `json:"short"`
	InstrumentsCount int              `json:"instruments_count"`
	Simulation       bool             `json:"simulation"`
	Confirmations    int              `json:"confirmations"`
	OpenTradesCount  int              `json:"open_trades_count"`
	CumulativePnl    float64          `json:"cumulative_pnl"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	st, cum := a.trading.Stats(r.Context())
	a.writeJSON(w, http.StatusOK, statsResponse{
		Long:             st.Long,
		Short:            st.Short,
		InstrumentsCount: len(a.info.Instruments),
		Simulation:       a.info.Simulation,
		Confirmations:    a.info.Confirmations,
		OpenTradesCount:  len(a.trading.Positions(r.Context())),
		CumulativePnl:    cum,
	})
}

func (a *API) openTrades(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.trading.Positions(r.Context()))
}

func (a *API) tradeHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 1000)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	entries, err := a.history.Recent(ctx, limit)
	if err != nil {
		a.log.Error("trade history failed", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "trade history unavailable")
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *API) closePosition(w http.ResponseWriter, r *http.Request) {
	inst := strings.ToUpper(mux.Vars(r)["instrument"])
	e, err := a.trading.CloseAtMarket(r.Context(), inst)
	switch {
	case errors.Is(err, models.ErrInvalidState):
		a.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, models.ErrOrderRejected):
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		a.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	a.log.Info("manual close via api", zap.String("instrument", inst), zap.Float64("price", e.Price))
	a.writeJSON(w, http.StatusOK, e)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		a.log.Error("encode response", zap.Error(err))
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}
