package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Runner держит по горутине на инструмент, у каждой свой дочерний контекст.
type Runner struct {
	log *zap.Logger

	mu      sync.Mutex
	workers map[string]*running
	wg      sync.WaitGroup
}

type running struct {
	w      *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		log:     log.Named("runner"),
		workers: make(map[string]*running),
	}
}

// Start запускает воркер, если он ещё не запущен.
func (r *Runner) Start(parent context.Context, w *Worker) error {
	inst := w.cfg.Instrument

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[inst]; ok {
		return fmt.Errorf("monitor already running for %s", inst)
	}

	ctx, cancel := context.WithCancel(parent)
	rw := &running{w: w, cancel: cancel, done: make(chan struct{})}
	r.workers[inst] = rw

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(rw.done)
		w.Run(ctx)

		// после Stop+Start под ключом уже новый воркер
		r.mu.Lock()
		if r.workers[inst] == rw {
			delete(r.workers, inst)
		}
		r.mu.Unlock()
	}()
	return nil
}

// Stop гасит один воркер.
func (r *Runner) Stop(instrument string) error {
	r.mu.Lock()
	rw, ok := r.workers[instrument]
	if ok {
		delete(r.workers, instrument)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("monitor not running for %s", instrument)
	}
	rw.cancel()
	return nil
}

// StopAll отменяет все воркеры и ждёт их выхода (или отмены ctx).
func (r *Runner) StopAll(ctx context.Context) error {
	r.mu.Lock()
	for _, rw := range r.workers {
		rw.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running: инструменты с активным воркером.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.workers))
	for inst := range r.workers {
		out = append(out, inst)
	}
	return out
}

// States: текущее состояние каждого монитора.
func (r *Runner) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.workers))
	for inst, rw := range r.workers {
		out[inst] = rw.w.State()
	}
	return out
}
