// Package retry повторяет нестабильные сетевые вызовы с экспоненциальной паузой.
//
// Пауза после неудачной попытки k (с единицы):
//
//	Multiplier * 2^(k-1) секунд, зажатая в [MinWait, MaxWait]
//
// С дефолтами (Multiplier=1, MinWait=4s, MaxWait=70s) это 4s, 4s, 4s, 8s, 16s, ...
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// ErrAttemptsExhausted возвращается (обёрнутой вместе с последней ошибкой),
// когда все попытки исчерпаны.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// SleepFunc ждёт d или отмены контекста.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy - параметры повторов.
type Policy struct {
	Attempts   int
	MinWait    time.Duration
	MaxWait    time.Duration
	Multiplier float64

	// Sleep подменяется в тестах. nil = реальное ожидание.
	Sleep SleepFunc
}

// DefaultPolicy возвращает политику 3 попытки, 4s..70s, множитель 1.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		MinWait:    4 * time.Second,
		MaxWait:    70 * time.Second,
		Multiplier: 1,
	}
}

// FromConfig строит политику из секции retry в config.yaml.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		Attempts:   cfg.Attempts,
		MinWait:    cfg.MinWait,
		MaxWait:    cfg.MaxWait,
		Multiplier: cfg.Multiplier,
	}
}

// Backoff возвращает паузу после неудачной попытки attempt (с единицы).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	secs := p.Multiplier * math.Pow(2, float64(attempt-1))

	var wait time.Duration
	if p.MaxWait > 0 && secs >= p.MaxWait.Seconds() {
		wait = p.MaxWait
	} else {
		wait = time.Duration(secs * float64(time.Second))
	}
	if wait < p.MinWait {
		wait = p.MinWait
	}
	return wait
}

// permanentError помечает ошибку как не подлежащую повтору.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку так, что Do прекратит попытки сразу.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do вызывает fn до Attempts раз и возвращает первый успешный результат.
//
// После успеха fn больше не вызывается. После исчерпания попыток возвращается
// ошибка, оборачивающая и ErrAttemptsExhausted, и последнюю ошибку fn.
// Отмена контекста во время паузы прерывает ожидание немедленно.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				utils.Info("Retry succeeded", "op", op, "attempt", attempt)
			}
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			utils.Error("Non-retryable error", "op", op, "attempt", attempt, "error", perm.err)
			return zero, perm.err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		utils.Warn("Attempt failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err)

		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrAttemptsExhausted, attempts, lastErr)
}

// Sleep ждёт d или отмены контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
