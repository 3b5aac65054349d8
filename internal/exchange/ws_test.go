package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStreamTickers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotQuery := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery <- r.URL.Query().Get("streams")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"65000.10"}}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStreamer("ws"+strings.TrimPrefix(srv.URL, "http"), zap.NewNop())
	ch := s.StreamTickers(ctx, []string{"BTCUSDT", "ETHUSDT"})

	select {
	case tick := <-ch:
		require.Equal(t, "BTCUSDT", tick.Symbol)
		require.Equal(t, 65000.10, tick.Price)
	case <-time.After(3 * time.Second):
		t.Fatal("no tick received")
	}
	require.Equal(t, "btcusdt@miniTicker/ethusdt@miniTicker", <-gotQuery)

	cancel()
	for range ch {
	}
}
