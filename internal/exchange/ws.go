package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Tick: последняя цена инструмента из потока miniTicker.
type Tick struct {
	Symbol string
	Price  float64
	At     time.Time
}

type Streamer struct {
	wsURL     string
	dialer    *websocket.Dialer
	log       *zap.Logger
	reconnect time.Duration
}

func NewStreamer(wsURL string, log *zap.Logger) *Streamer {
	return &Streamer{
		wsURL:     strings.TrimRight(wsURL, "/"),
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:       log.Named("ws"),
		reconnect: time.Second,
	}
}

// streamURL: комбинированный поток "<symbol>@miniTicker/...".
func (s *Streamer) streamURL(symbols []string) string {
	names := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		names = append(names, strings.ToLower(sym)+"@miniTicker")
	}
	return s.wsURL + "/stream?streams=" + strings.Join(names, "/")
}

// StreamTickers держит одно WebSocket-соединение на все инструменты и
// переподключается при обрыве. Канал закрывается по ctx.
func (s *Streamer) StreamTickers(ctx context.Context, symbols []string) <-chan Tick {
	ch := make(chan Tick, len(symbols))
	go func() {
		defer close(ch)

		if len(symbols) == 0 {
			return
		}
		u := s.streamURL(symbols)

		for {
			if ctx.Err() != nil {
				return
			}
			s.log.Info("ws connect", zap.Int("symbols", len(symbols)))
			conn, _, err := s.dialer.DialContext(ctx, u, nil)
			if err != nil {
				s.log.Warn("ws dial error", zap.Error(err))
				if !sleepCtx(ctx, s.reconnect) {
					return
				}
				continue
			}

			// закрываем соединение при отмене, чтобы разблокировать ReadMessage
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					_ = conn.Close()
				case <-done:
				}
			}()

			s.readLoop(ctx, conn, ch)
			close(done)
			_ = conn.Close()

			if !sleepCtx(ctx, s.reconnect) {
				return
			}
		}
	}()
	return ch
}

func (s *Streamer) readLoop(ctx context.Context, conn *websocket.Conn, ch chan<- Tick) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("ws read error", zap.Error(err))
			}
			return
		}

		var frame struct {
			Stream string `json:"stream"`
			Data   struct {
				Event  string `json:"e"`
				TimeMs int64  `json:"E"`
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Data.Event != "24hrMiniTicker" || frame.Data.Symbol == "" {
			continue
		}
		p, err := strconv.ParseFloat(frame.Data.Close, 64)
		if err != nil || p <= 0 {
			continue
		}

		tick := Tick{Symbol: frame.Data.Symbol, Price: p, At: time.UnixMilli(frame.Data.TimeMs).UTC()}
		select {
		case ch <- tick:
		case <-ctx.Done():
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
