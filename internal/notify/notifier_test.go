package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ladder_bot/internal/models"
)

type fakeCommands struct {
	closed string
}

func (f *fakeCommands) Positions(context.Context) []*models.PositionRecord {
	return []*models.PositionRecord{{
		Instrument:   "ETHUSDT",
		Side:         models.SideShort,
		EntryPrice:   3000,
		RemainingQty: 0.7,
		StopPrice:    3000,
		Sequence:     4,
		Targets:      []models.TPTarget{{Level: 1, Hit: true}, {Level: 2}},
	}}
}

func (f *fakeCommands) Stats(context.Context) (models.AggregateStats, float64) {
	return models.AggregateStats{Long: models.SideStats{Total: 3, Success: 2, Fail: 1}}, 12.5
}

func (f *fakeCommands) CloseAtMarket(_ context.Context, inst string) (models.LedgerEntry, error) {
	if inst != "ETHUSDT" {
		return models.LedgerEntry{}, errors.New("no open position")
	}
	f.closed = inst
	return models.LedgerEntry{Instrument: inst, Side: models.SideShort, Event: models.EventExit, Reason: models.ReasonManual, Price: 2900, Quantity: 0.7, RealizedPnl: 70}, nil
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	cmds := &fakeCommands{}

	out := HandleCommand(ctx, cmds, "positions", "")
	require.Contains(t, out, "ETHUSDT [SHORT] #4")
	require.Contains(t, out, "TP1✓")
	require.Contains(t, out, "TP2·")

	out = HandleCommand(ctx, cmds, "stats", "")
	require.Contains(t, out, "LONG: 3 (✅ 2 / ❌ 1)")
	require.Contains(t, out, "+12.5000")

	out = HandleCommand(ctx, cmds, "close", " ethusdt ")
	require.Equal(t, "ETHUSDT", cmds.closed)
	require.Contains(t, out, "MANUAL")

	require.Contains(t, HandleCommand(ctx, cmds, "close", ""), "/close SYMBOL")
	require.Contains(t, HandleCommand(ctx, cmds, "close", "BTCUSDT"), "no open position")
	require.Contains(t, HandleCommand(ctx, cmds, "help", ""), "/positions")
}

func TestFormatEntry(t *testing.T) {
	e := models.LedgerEntry{
		Sequence: 7, Instrument: "BTCUSDT", Side: models.SideLong, Event: models.EventEntry,
		Timestamp: time.Now(), Price: 100, Quantity: 5,
	}
	require.Equal(t, "🟢 BTCUSDT LONG #7 открыт @ 100.0000, объём 5", FormatEntry(e))

	e.Event, e.Reason, e.RealizedPnl = models.EventExit, models.ReasonSL, -2
	require.Contains(t, FormatEntry(e), "🔴")
	require.Contains(t, FormatEntry(e), "(SL)")

	require.Equal(t, "📭 Открытых позиций нет", FormatPositions(nil))
}
