package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ladder_bot/internal/models"
)

func entry(seq int64, ev models.EventType, reason string) models.LedgerEntry {
	return models.LedgerEntry{
		Sequence:      seq,
		Instrument:    "BTCUSDT",
		Side:          models.SideLong,
		Event:         ev,
		Reason:        reason,
		Timestamp:     time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC),
		Price:         101.25,
		Quantity:      0.3,
		RealizedPnl:   0.375,
		CumulativePnl: 1.5,
	}
}

func TestCSV_AppendRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "trades.csv")
	l := NewCSV(path)

	got, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, l.Append(ctx, entry(1, models.EventEntry, "")))
	require.NoError(t, l.Append(ctx, entry(1, models.EventPartialClose, models.TPReason(1))))
	require.NoError(t, l.Append(ctx, entry(1, models.EventExit, models.ReasonSL)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "sequence,timestamp"))

	got, err = l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, models.EventExit, got[0].Event)
	require.Equal(t, "SL", got[0].Reason)
	require.Equal(t, "TP1", got[1].Reason)
	require.Equal(t, entry(1, models.EventExit, models.ReasonSL), got[0])

	all, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, l.Reset(ctx))
	got, err = l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, l.Reset(ctx))
}

func TestCSV_SkipsBrokenRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades.csv")
	l := NewCSV(path)
	require.NoError(t, l.Append(ctx, entry(1, models.EventEntry, "")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage,row\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(ctx, entry(2, models.EventEntry, "")))

	got, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].Sequence)
}

type memLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	err     error
}

func (m *memLedger) Append(_ context.Context, e models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLedger) Recent(context.Context, int) ([]models.LedgerEntry, error) { return m.entries, nil }
func (m *memLedger) Reset(context.Context) error                                { m.entries = nil; return nil }

type recNotifier struct{ msgs []string }

func (r *recNotifier) Send(_ context.Context, msg string) { r.msgs = append(r.msgs, msg) }

func TestNotifying(t *testing.T) {
	ctx := context.Background()
	inner := &memLedger{}
	n := &recNotifier{}
	l := NewNotifying(inner, n)

	require.NoError(t, l.Append(ctx, entry(3, models.EventPartialClose, "TP2")))
	require.Len(t, inner.entries, 1)
	require.Len(t, n.msgs, 1)
	require.Contains(t, n.msgs[0], "BTCUSDT")
	require.Contains(t, n.msgs[0], "TP2")

	inner.err = errors.New("disk full")
	require.Error(t, l.Append(ctx, entry(3, models.EventExit, "SL")))
	require.Len(t, n.msgs, 2)

	got, err := l.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
