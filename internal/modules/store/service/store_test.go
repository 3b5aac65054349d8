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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ladder_bot/internal/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return NewStore(path, zap.NewNop(), nil), path
}

func sampleState() models.State {
	st := models.NewState()
	st.Sequence = 7
	st.CumulativePnl = 12.5
	st.Stats.Long = models.SideStats{Total: 3, Success: 2, Fail: 1}
	st.OpenTrades["BTCUSDT"] = &models.PositionRecord{
		Instrument:   "BTCUSDT",
		Side:         models.SideLong,
		EntryPrice:   100,
		TotalQty:     5,
		RemainingQty: 3.5,
		StopPrice:    100,
		InitialStop:  98,
		Targets: []models.TPTarget{
			{Level: 1, Price: 101, Quantity: 1.5, Hit: true},
			{Level: 2, Price: 102, Quantity: 1.25},
			{Level: 3, Price: 103, Quantity: 1.25},
		},
		Trailing:    models.TrailingState{DistancePct: 0.01},
		RealizedPnl: 1.5,
		OpenedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Sequence:    7,
	}
	return st
}

func TestLoad_MissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	st := s.Load(context.Background())
	assert.Equal(t, models.SchemaVersion, st.SchemaVersion)
	assert.Empty(t, st.OpenTrades)
	assert.NotNil(t, st.OpenTrades)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	want := sampleState()
	require.True(t, s.Save(ctx, want))

	// новый экземпляр читает с диска
	got := NewStore(path, zap.NewNop(), nil).Load(ctx)
	assert.Equal(t, want, got)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.True(t, s.Save(ctx, sampleState()))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestLoad_IgnoresInterruptedWrite(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	want := sampleState()
	require.True(t, s.Save(ctx, want))

	// падение между записью temp-файла и rename: рядом лежит половина нового документа
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	stray := filepath.Join(filepath.Dir(path), ".state.json.tmp-123456")
	require.NoError(t, os.WriteFile(stray, raw[:len(raw)/2], 0o644))

	got := NewStore(path, zap.NewNop(), nil).Load(ctx)
	assert.Equal(t, want, got)
}

func TestWriteFileAtomic_FailedRenameKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	// rename файла поверх непустой директории не проходит
	target := filepath.Join(dir, "state.json")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o755))

	err := writeFileAtomic(target, []byte(`{"schema_version":1}`), 0o644)
	require.Error(t, err)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestLoad_CorruptFileFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated", `{"schema_version":1,"open_trades":{"BTCUSDT":{"side":"lo`},
		{"garbage", "not json at all"},
		{"unknown version", `{"schema_version":99}`},
		{"empty", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, path := newTestStore(t)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			st := s.Load(context.Background())
			assert.Empty(t, st.OpenTrades)
			assert.Equal(t, models.SchemaVersion, st.SchemaVersion)
		})
	}
}

func TestLoad_CorruptFileIsQuarantined(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s.Load(context.Background())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "state.json.corrupt-") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoad_UpgradesLegacyDocument(t *testing.T) {
	s, path := newTestStore(t)
	legacy := `{
  "open_trades": {
    "ETHUSDT": {
      "entry_price": "2000.0000",
      "side": "short",
      "total_quantity": "0.250000",
      "remaining_quantity": "0.175000",
      "trade_num": 12,
      "entry_time": "2024-05-01T10:00:00.123456",
      "sl": "2000.0000",
      "tp_targets": {
        "tp1": {"price": "1980.0000", "hit": true, "level": 1, "quantity": 0.075, "closed": true},
        "tp2": {"price": "1960.0000", "hit": false, "level": 2, "quantity": 0.0625, "closed": false},
        "tp3": {"price": "1940.0000", "hit": false, "level": 3, "quantity": 0.0625, "closed": false}
      },
      "trailing_active": false,
      "highest_price": "2000.0000",
      "lowest_price": "2000.0000",
      "trailing_distance_percent": 0.01
    }
  },
  "stats": {"long": {"total": 4, "success": 3, "fail": 1}, "short": {"total": 1, "success": 0, "fail": 1}}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	st := s.Load(context.Background())
	require.Contains(t, st.OpenTrades, "ETHUSDT")
	p := st.OpenTrades["ETHUSDT"]

	assert.Equal(t, models.SideShort, p.Side)
	assert.InDelta(t, 2000, p.EntryPrice, 1e-9)
	assert.InDelta(t, 0.175, p.RemainingQty, 1e-9)
	require.Len(t, p.Targets, 3)
	assert.True(t, p.Targets[0].Hit)
	assert.InDelta(t, 1960, p.Targets[1].Price, 1e-9)
	assert.Equal(t, int64(12), p.Sequence)
	assert.Equal(t, int64(12), st.Sequence)
	assert.Equal(t, 4, st.Stats.Long.Total)
	assert.Equal(t, 2024, p.OpenedAt.Year())

	// после записи документ уже в новой схеме
	require.True(t, s.Save(context.Background(), st))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_version": 1`)
}

func TestUpdate_ErrorLeavesStateUntouched(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.True(t, s.Save(ctx, sampleState()))

	boom := errors.New("boom")
	err := s.Update(ctx, func(st *models.State) error {
		st.OpenTrades["BTCUSDT"].RemainingQty = 0
		delete(st.OpenTrades, "BTCUSDT")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, ok := s.Position(ctx, "BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 3.5, p.RemainingQty, 1e-12)
}

func TestUpdate_ConcurrentWritersAreSerialized(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = s.Update(ctx, func(st *models.State) error {
					st.NextSequence()
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker), s.Snapshot(ctx).Sequence)
	onDisk := NewStore(path, zap.NewNop(), nil).Load(ctx)
	assert.Equal(t, int64(workers*perWorker), onDisk.Sequence)
}

func TestUpdate_PersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// родитель пути - обычный файл, запись невозможна
	s := NewStore(filepath.Join(blocker, "state.json"), zap.NewNop(), nil)
	ctx := context.Background()

	err := s.Update(ctx, func(st *models.State) error {
		st.NextSequence()
		return nil
	})
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.ErrorIs(t, err, models.ErrTransientIO)
	assert.Equal(t, int64(1), s.Snapshot(ctx).Sequence)
	assert.False(t, s.Flush(ctx))
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.True(t, s.Save(ctx, sampleState()))

	snap := s.Snapshot(ctx)
	snap.OpenTrades["BTCUSDT"].Targets[1].Hit = true

	p, _ := s.Position(ctx, "BTCUSDT")
	assert.False(t, p.Targets[1].Hit)
}

func TestReset(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.True(t, s.Save(ctx, sampleState()))
	require.True(t, s.Reset(ctx))

	st := NewStore(path, zap.NewNop(), nil).Load(ctx)
	assert.Empty(t, st.OpenTrades)
	assert.Zero(t, st.Stats.Long.Total)
}
