package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ladder_bot/internal/models"
)

var csvHeader = []string{
	"sequence", "timestamp", "instrument", "side", "event", "reason",
	"price", "quantity", "realized_pnl", "cumulative_pnl",
}

// CSV: журнал в файле, одна строка на событие.
type CSV struct {
	path string
	mu   sync.Mutex
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Append(_ context.Context, e models.LedgerEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("csv.Append: %w: %w", models.ErrTransientIO, err)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err = w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err = w.Write(encodeRow(e)); err != nil {
		return err
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func (c *CSV) Recent(_ context.Context, n int) (out []models.LedgerEntry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("csv.Recent: %w", err)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var all []models.LedgerEntry
	for {
		row, rerr := r.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
		e, ok := decodeRow(row)
		if !ok {
			// заголовок или повреждённая строка
			continue
		}
		all = append(all, e)
	}

	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out = make([]models.LedgerEntry, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Reset: пустой журнал.
func (c *CSV) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("csv.Reset: %w", err)
	}
	return nil
}

func encodeRow(e models.LedgerEntry) []string {
	return []string{
		strconv.FormatInt(e.Sequence, 10),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Instrument,
		string(e.Side),
		string(e.Event),
		e.Reason,
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		strconv.FormatFloat(e.Quantity, 'f', -1, 64),
		strconv.FormatFloat(e.RealizedPnl, 'f', -1, 64),
		strconv.FormatFloat(e.CumulativePnl, 'f', -1, 64),
	}
}

func decodeRow(row []string) (models.LedgerEntry, bool) {
	if len(row) != len(csvHeader) {
		return models.LedgerEntry{}, false
	}
	seq, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.LedgerEntry{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return models.LedgerEntry{}, false
	}
	nums := make([]float64, 4)
	for i := range nums {
		if nums[i], err = strconv.ParseFloat(row[6+i], 64); err != nil {
			return models.LedgerEntry{}, false
		}
	}
	return models.LedgerEntry{
		Sequence:      seq,
		Timestamp:     ts,
		Instrument:    row[2],
		Side:          models.Side(row[3]),
		Event:         models.EventType(row[4]),
		Reason:        row[5],
		Price:         nums[0],
		Quantity:      nums[1],
		RealizedPnl:   nums[2],
		CumulativePnl: nums[3],
	}, true
}
