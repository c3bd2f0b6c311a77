package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleep возвращает SleepFunc, которая не ждёт, а запоминает паузы.
func recordSleep(waits *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestBackoff_DefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 4*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 64*time.Second, p.Backoff(7))
	assert.Equal(t, 70*time.Second, p.Backoff(8))
	assert.Equal(t, 70*time.Second, p.Backoff(100))
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Attempts = 5
	p.Sleep = recordSleep(&waits)

	calls := 0
	got, err := Do(context.Background(), p, "generate", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "example", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "example", got)
	assert.Equal(t, 3, calls, "no 4th call after success")
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, waits)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordSleep(&waits)

	underlying := errors.New("service unavailable")
	calls := 0
	_, err := Do(context.Background(), p, "generate", func(ctx context.Context) (int, error) {
		calls++
		return 0, underlying
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2, "no sleep after the final attempt")
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, underlying)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordSleep(&waits)

	authErr := errors.New("401 unauthorized")
	calls := 0
	_, err := Do(context.Background(), p, "generate", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(authErr)
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
	assert.ErrorIs(t, err, authErr)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}

	calls := 0
	_, err := Do(ctx, p, "generate", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("x")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
