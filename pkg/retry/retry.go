package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy: одна политика повторов для всех внешних вызовов.
//
// delay(attempt) = min(BaseDelay * Multiplier^attempt, MaxDelay)
type Policy struct {
	// MaxAttempts: количество попыток, включая первую.
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// MaxDelay: 0 = без ограничения.
	MaxDelay time.Duration

	// OnRetry вызывается перед ожиданием очередной попытки.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Network: внешние HTTP/WS вызовы.
func Network() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
	}
}

// Persist: запись файла состояния (6 попыток, 80ms * 1.5).
func Persist() Policy {
	return Policy{
		MaxAttempts: 6,
		BaseDelay:   80 * time.Millisecond,
		Multiplier:  1.5,
	}
}

// WithOnRetry возвращает копию политики с хуком.
func (p Policy) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Policy {
	p.OnRetry = fn
	return p
}

// Delay: пауза после неудачной попытки attempt (с нуля).
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(base) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как не подлежащую повтору.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do выполняет fn до MaxAttempts раз. Возвращает последнюю ошибку
// (permanent-обёртка снимается).
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue: Do для функций с результатом.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if delay <= 0 {
			continue
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, lastErr
		case <-t.C:
		}
	}
	return zero, lastErr
}
