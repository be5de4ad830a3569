package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoale58-vl/sol-simple-swap/pkg/retry/backoff"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	var calls int
	attempts, err := Retry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Limit(5))

	assert.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StrategyOrder(t *testing.T) {
	retriable := errors.New("retriable")
	r := NewRetrier(Limit(4), RetriableErrors(retriable))

	attempts, err := r.Retry(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	// Either filter can end the chain.
	attempts, err = r.Retry(context.Background(), func(context.Context) error { return errors.New("unknown") })
	assert.EqualError(t, err, "unknown")
	assert.EqualValues(t, 1, attempts)

	attempts, err = r.Retry(context.Background(), func(context.Context) error { return errors.Wrap(retriable, "call") })
	assert.True(t, errors.Is(err, retriable))
	assert.EqualValues(t, 4, attempts)
}

func TestRetry_Cancelled(t *testing.T) {
	waits := recordWaits(t)

	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	attempts, err := Retry(ctx, func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("err")
	}, Limit(10), Backoff(backoff.Constant(time.Second), time.Second))

	assert.Equal(t, context.Canceled, err)
	assert.EqualValues(t, 2, attempts)
	assert.Equal(t, 2, calls)
	assert.Len(t, *waits, 1)

	attempts, err = Retry(ctx, func(context.Context) error { return nil })
	assert.Equal(t, context.Canceled, err)
	assert.EqualValues(t, 0, attempts)
}

func TestRetry_RealWait(t *testing.T) {
	start := time.Now()
	attempts, err := Retry(context.Background(), func(context.Context) error {
		return errors.New("err")
	}, Limit(2), Backoff(backoff.Constant(200*time.Millisecond), time.Second))

	assert.Error(t, err)
	assert.EqualValues(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	// A deadline interrupts the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start = time.Now()
	_, err = Retry(ctx, func(context.Context) error {
		return errors.New("err")
	}, Backoff(backoff.Constant(time.Minute), time.Minute))

	require.Equal(t, context.DeadlineExceeded, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func recordWaits(t *testing.T) *[]time.Duration {
	var waits []time.Duration

	original := wait
	wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() {
		wait = original
	})

	return &waits
}
