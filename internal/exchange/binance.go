package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"ladder_bot/internal/helper"
	"ladder_bot/internal/models"
)

// Interval переводит минуты в обозначение интервала Binance.
func Interval(minutes int) (string, error) {
	switch minutes {
	case 1, 3, 5, 15, 30:
		return fmt.Sprintf("%dm", minutes), nil
	case 60, 120, 240, 360, 480, 720:
		return fmt.Sprintf("%dh", minutes/60), nil
	case 1440:
		return "1d", nil
	}
	return "", fmt.Errorf("unsupported candle interval: %d minutes", minutes)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v3/ping", nil, false)
	return err
}

// Klines: закрытые и текущая свечи, от старых к новым.
func (c *Client) Klines(ctx context.Context, symbol string, intervalMinutes, limit int) ([]models.Candle, error) {
	interval, err := Interval(intervalMinutes)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/api/v3/klines", q, false)
	if err != nil {
		return nil, err
	}

	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	out := make([]models.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		c := models.Candle{
			OpenTime:  time.UnixMilli(toInt64(row[0])).UTC(),
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
			CloseTime: time.UnixMilli(toInt64(row[6])).UTC(),
		}
		if c.Close <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", q, false)
	if err != nil {
		return 0, err
	}
	var p struct {
		Price string `json:"price"`
	}
	if err := sonic.Unmarshal(body, &p); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	return strconv.ParseFloat(p.Price, 64)
}

type OrderResult struct {
	OrderID     int64  `json:"orderId"`
	ClientID    string `json:"clientOrderId"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
}

// Filled: ордер исполнен полностью.
func (r OrderResult) Filled() bool { return r.Status == "FILLED" }

// ErrQuantityTooSmall: после округления до шага лота объём нулевой.
var ErrQuantityTooSmall = errors.New("quantity below lot step")

// MarketOrder отправляет рыночный ордер, объём округляется вниз до stepSize.
func (c *Client) MarketOrder(ctx context.Context, symbol string, side models.OrderSide, qty float64, clientID string) (OrderResult, error) {
	step, err := c.lotStep(ctx, symbol)
	if err != nil {
		return OrderResult{}, err
	}
	qty = helper.RoundDownToTick(qty, step)
	if qty <= 0 {
		return OrderResult{}, ErrQuantityTooSmall
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", sideParam(side))
	q.Set("type", "MARKET")
	q.Set("quantity", strconv.FormatFloat(qty, 'f', helper.StepDigits(step), 64))
	if clientID != "" {
		q.Set("newClientOrderId", clientID)
	}
	q.Set("newOrderRespType", "RESULT")

	body, err := c.do(ctx, http.MethodPost, "/api/v3/order", q, true)
	if err != nil {
		return OrderResult{}, err
	}
	var res OrderResult
	if err := sonic.Unmarshal(body, &res); err != nil {
		return OrderResult{}, fmt.Errorf("decode order: %w", err)
	}
	return res, nil
}

// QueryOrder: статус ордера по clientOrderId.
func (c *Client) QueryOrder(ctx context.Context, symbol, clientID string) (OrderResult, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("origClientOrderId", clientID)

	body, err := c.do(ctx, http.MethodGet, "/api/v3/order", q, true)
	if err != nil {
		return OrderResult{}, err
	}
	var res OrderResult
	if err := sonic.Unmarshal(body, &res); err != nil {
		return OrderResult{}, fmt.Errorf("decode order: %w", err)
	}
	return res, nil
}

func sideParam(s models.OrderSide) string {
	if s == models.OrderSell {
		return "SELL"
	}
	return "BUY"
}

var (
	stepMu    sync.Mutex
	stepCache = map[string]float64{}
)

// lotStep: шаг количества из фильтра LOT_SIZE (кэшируется).
func (c *Client) lotStep(ctx context.Context, symbol string) (float64, error) {
	stepMu.Lock()
	step, ok := stepCache[c.baseURL+"|"+symbol]
	stepMu.Unlock()
	if ok {
		return step, nil
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", q, false)
	if err != nil {
		return 0, err
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := sonic.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType == "LOT_SIZE" {
				step, _ = strconv.ParseFloat(f.StepSize, 64)
			}
		}
	}

	stepMu.Lock()
	stepCache[c.baseURL+"|"+symbol] = step
	stepMu.Unlock()
	return step, nil
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case float64:
		return x
	}
	return 0
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}
