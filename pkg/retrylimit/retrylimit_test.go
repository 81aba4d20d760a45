package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func quickPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, RateLimitDelay: time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, quickPolicy(3), func() error {
		calls++
		if calls < 3 {
			return statusErr(502)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAndWrapsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, quickPolicy(3), func() error {
		calls++
		return statusErr(500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsServerError(err))
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestDoStopsOnFatal(t *testing.T) {
	cause := errors.New("forbidden")
	calls := 0
	err := Do(context.Background(), nil, quickPolicy(3), func() error {
		calls++
		return Fatal(cause)
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, nil, quickPolicy(3), func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoCallsOnRetry(t *testing.T) {
	var attempts []int
	p := quickPolicy(2)
	p.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), nil, p, func() error { return statusErr(429) })
	assert.Equal(t, []int{1}, attempts)
}

func TestLimiterAdapts(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)
	assert.Equal(t, 4.0, lim.CurrentLimit())

	lim.Success()
	assert.Equal(t, 5.0, lim.CurrentLimit())

	lim.Backoff()
	assert.Equal(t, 2.5, lim.CurrentLimit())

	// no growth right after pushback
	lim.Success()
	assert.Equal(t, 2.5, lim.CurrentLimit())

	lim.Backoff()
	lim.Backoff()
	assert.Equal(t, 1.0, lim.CurrentLimit())
}

func TestLimiterClampsInitial(t *testing.T) {
	assert.Equal(t, 3.0, NewAdaptiveLimiter(10, 1, 3, 1, 0.5).CurrentLimit())
	assert.Equal(t, 1.0, NewAdaptiveLimiter(0, 0, 3, 1, 0.5).CurrentLimit())
}

func TestDoBacksOffLimiterOnRateLimit(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)
	calls := 0
	err := Do(context.Background(), lim, quickPolicy(2), func() error {
		calls++
		if calls == 1 {
			return statusErr(429)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, lim.CurrentLimit())
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", statusErr(503))
	assert.True(t, IsServerError(wrapped))
	assert.False(t, IsRateLimited(wrapped))
	assert.True(t, IsRateLimited(statusErr(429)))
	assert.False(t, IsServerError(errors.New("plain")))
	assert.Nil(t, Fatal(nil))
}
