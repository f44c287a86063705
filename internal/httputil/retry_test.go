package httputil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func TestRetryPolicy_SucceedsOnRetry(t *testing.T) {
	var calls, notified int
	p := RetryPolicy{
		Attempts: 2,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, _ time.Duration, _ error) { notified = attempt },
	}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errFlaky
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, notified)
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	var calls int
	p := RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_NotRetryable(t *testing.T) {
	var calls int
	p := RetryPolicy{
		Attempts:  3,
		Delay:     time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, errFlaky) },
	}
	_ = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	p := RetryPolicy{
		Attempts: 3,
		Delay:    time.Hour,
		OnRetry:  func(int, time.Duration, error) { cancel() },
	}
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	var calls int
	_ = RetryPolicy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
}
