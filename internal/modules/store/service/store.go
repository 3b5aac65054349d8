package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"ladder_bot/internal/metrics"
	"ladder_bot/internal/models"
	"ladder_bot/pkg/retry"
)

// ErrNotPersisted: изменение применено в памяти, но файл записать не удалось.
// Следующая успешная запись сохранит всё накопленное.
var ErrNotPersisted = fmt.Errorf("%w: state not persisted", models.ErrTransientIO)

// Store: файловое хранилище состояния. Один мьютекс на весь цикл
// load -> mutate -> save, воркеры инструментов ходят только через него.
type Store struct {
	path    string
	log     *zap.Logger
	policy  retry.Policy
	metrics *metrics.Metrics

	mu     sync.Mutex
	state  models.State
	loaded bool
	dirty  bool
}

func NewStore(path string, log *zap.Logger, m *metrics.Metrics) *Store {
	s := &Store{
		path:    path,
		log:     log.Named("store"),
		metrics: m,
	}
	s.policy = retry.Persist().WithOnRetry(func(attempt int, err error, delay time.Duration) {
		s.log.Warn("state save retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	return s
}

func (s *Store) Path() string { return s.path }

// Load перечитывает файл. Никогда не падает: при отсутствии или порче
// файла возвращается пустое состояние.
func (s *Store) Load(ctx context.Context) models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.readLocked(ctx)
	s.loaded = true
	s.dirty = false
	return s.state.Clone()
}

// Save атомарно записывает st. false: все попытки исчерпаны.
func (s *Store) Save(ctx context.Context, st models.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st = st.Clone()
	s.state = st
	s.loaded = true
	if !s.saveLocked(ctx, st) {
		s.dirty = true
		return false
	}
	s.dirty = false
	return true
}

// Update: read-modify-write под одним локом. Если fn вернула ошибку,
// состояние не меняется. Ошибка записи файла возвращается как ErrNotPersisted,
// изменение при этом остаётся в памяти.
func (s *Store) Update(ctx context.Context, fn func(st *models.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoadedLocked(ctx)

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next

	if !s.saveLocked(ctx, next) {
		s.dirty = true
		return ErrNotPersisted
	}
	s.dirty = false
	return nil
}

// View отдаёт копию состояния под локом.
func (s *Store) View(ctx context.Context, fn func(st models.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoadedLocked(ctx)
	fn(s.state.Clone())
}

func (s *Store) Snapshot(ctx context.Context) models.State {
	var out models.State
	s.View(ctx, func(st models.State) { out = st })
	return out
}

// Position: копия записи по инструменту.
func (s *Store) Position(ctx context.Context, instrument string) (*models.PositionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoadedLocked(ctx)
	p, ok := s.state.OpenTrades[instrument]
	return p.Clone(), ok
}

// Flush дописывает состояние, если прошлая запись не удалась.
func (s *Store) Flush(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return true
	}
	if !s.saveLocked(ctx, s.state) {
		return false
	}
	s.dirty = false
	return true
}

// Reset: пустое состояние (позиции и статистика).
func (s *Store) Reset(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.NewState()
	s.loaded = true
	ok := s.saveLocked(ctx, s.state)
	s.dirty = !ok
	return ok
}

func (s *Store) ensureLoadedLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.state = s.readLocked(ctx)
	s.loaded = true
}

func (s *Store) readLocked(ctx context.Context) models.State {
	raw, err := retry.DoValue(context.WithoutCancel(ctx), s.policy, func(context.Context) ([]byte, error) {
		b, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, retry.Permanent(err)
		}
		return b, err
	})
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Info("no state file, starting empty", zap.String("path", s.path))
		return models.NewState()
	case err != nil:
		s.log.Error("state read failed, starting empty", zap.String("path", s.path), zap.Error(err))
		return models.NewState()
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		s.log.Warn("state file is empty", zap.String("path", s.path))
		return models.NewState()
	}

	st, err := decodeState(raw)
	if err != nil {
		s.log.Error("state file is corrupt, replaced with default", zap.String("path", s.path), zap.Error(err))
		s.quarantineLocked(raw)
		return models.NewState()
	}
	return st
}

// quarantineLocked сохраняет битый файл рядом для разбора.
func (s *Store) quarantineLocked(raw []byte) {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.WriteFile(dst, raw, 0o600); err != nil {
		s.log.Warn("cannot keep corrupt state copy", zap.String("path", dst), zap.Error(err))
	}
}

func (s *Store) saveLocked(ctx context.Context, st models.State) bool {
	st.SchemaVersion = models.SchemaVersion

	data, err := sonic.ConfigStd.MarshalIndent(st, "", "  ")
	if err != nil {
		s.log.Error("state encode failed", zap.Error(err))
		s.metrics.StoreSave(0, false)
		return false
	}

	// отмена тика не должна обрывать запись на середине серии попыток
	wctx := context.WithoutCancel(ctx)

	started := time.Now()
	err = retry.Do(wctx, s.policy, func(context.Context) error {
		return writeFileAtomic(s.path, data, 0o644)
	})
	s.metrics.StoreSave(time.Since(started).Seconds(), err == nil)
	s.metrics.SetOpenPositions(len(st.OpenTrades))
	if err != nil {
		s.log.Error("state save failed", zap.String("path", s.path), zap.Error(err))
		return false
	}
	return true
}
