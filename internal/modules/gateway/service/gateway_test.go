package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ladder_bot/internal/exchange"
	"ladder_bot/internal/models"
	"ladder_bot/pkg/retry"
)

type fakeVenue struct {
	errs      []error
	calls     int
	clientIDs []string
	pingErr   error

	query    exchange.OrderResult
	queryErr error
	queried  []string
}

func (f *fakeVenue) QueryOrder(_ context.Context, _ string, clientID string) (exchange.OrderResult, error) {
	f.queried = append(f.queried, clientID)
	return f.query, f.queryErr
}

func (f *fakeVenue) Ping(context.Context) error { return f.pingErr }

func (f *fakeVenue) MarketOrder(_ context.Context, _ string, _ models.OrderSide, _ float64, clientID string) (exchange.OrderResult, error) {
	f.calls++
	f.clientIDs = append(f.clientIDs, clientID)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return exchange.OrderResult{}, err
		}
	}
	return exchange.OrderResult{OrderID: 7, Status: "FILLED"}, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}
}

func TestPaper(t *testing.T) {
	p := NewPaper(zap.NewNop(), nil)
	require.True(t, p.PlaceOrder(context.Background(), models.OrderBuy, "BTCUSDT", 0.01))
	require.False(t, p.PlaceOrder(context.Background(), models.OrderBuy, "BTCUSDT", 0))
}

func TestBinance_PlaceOrder(t *testing.T) {
	cases := []struct {
		name      string
		errs      []error
		wantOK    bool
		wantCalls int
	}{
		{name: "filled", wantOK: true, wantCalls: 1},
		{name: "transient then filled", errs: []error{errors.New("connection reset"), nil}, wantOK: true, wantCalls: 2},
		{name: "server error retried", errs: []error{&exchange.APIError{Status: 502}, &exchange.APIError{Status: 502}, &exchange.APIError{Status: 502}}, wantOK: false, wantCalls: 3},
		{name: "rejected not retried", errs: []error{&exchange.APIError{Status: 400, Code: -2010, Msg: "insufficient balance"}}, wantOK: false, wantCalls: 1},
		{name: "lot too small", errs: []error{exchange.ErrQuantityTooSmall}, wantOK: false, wantCalls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &fakeVenue{errs: tc.errs}
			b := NewBinance(v, fastPolicy(), time.Second, zap.NewNop(), nil, nil)

			ok := b.PlaceOrder(context.Background(), models.OrderSell, "ETHUSDT", 0.5)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.wantCalls, v.calls)
			for _, id := range v.clientIDs {
				require.Equal(t, v.clientIDs[0], id)
			}
		})
	}
}

func TestBinance_LostResponseResolvedByQuery(t *testing.T) {
	filled := exchange.OrderResult{OrderID: 9, Status: "FILLED"}
	duplicate := &exchange.APIError{Status: 400, Code: -2010, Msg: "Duplicate order sent."}

	cases := []struct {
		name        string
		errs        []error
		query       exchange.OrderResult
		queryErr    error
		wantOK      bool
		wantQueries int
	}{
		{name: "timeout then duplicate, filled", errs: []error{context.DeadlineExceeded, duplicate}, query: filled, wantOK: true, wantQueries: 1},
		{name: "timeouts exhausted, filled", errs: []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded}, query: filled, wantOK: true, wantQueries: 1},
		{name: "timeouts exhausted, not found", errs: []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded},
			queryErr: &exchange.APIError{Status: 400, Code: -2013, Msg: "Order does not exist."}, wantOK: false, wantQueries: 1},
		{name: "duplicate, still open", errs: []error{context.DeadlineExceeded, duplicate}, query: exchange.OrderResult{Status: "NEW"}, wantOK: false, wantQueries: 1},
		{name: "rejected, no query", errs: []error{&exchange.APIError{Status: 400, Code: -2010, Msg: "Account has insufficient balance."}}, wantOK: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &fakeVenue{errs: tc.errs, query: tc.query, queryErr: tc.queryErr}
			b := NewBinance(v, fastPolicy(), time.Second, zap.NewNop(), nil, nil)

			ok := b.PlaceOrder(context.Background(), models.OrderSell, "ETHUSDT", 0.5)
			require.Equal(t, tc.wantOK, ok)
			require.Len(t, v.queried, tc.wantQueries)
			for _, id := range v.queried {
				require.Equal(t, v.clientIDs[0], id)
			}
		})
	}
}

func TestBinance_Ping(t *testing.T) {
	b := NewBinance(&fakeVenue{pingErr: errors.New("down")}, fastPolicy(), time.Second, zap.NewNop(), nil, nil)
	require.Error(t, b.Ping(context.Background()))

	b = NewBinance(&fakeVenue{}, fastPolicy(), time.Second, zap.NewNop(), nil, nil)
	require.NoError(t, b.Ping(context.Background()))
}
