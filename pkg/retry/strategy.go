package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hoale58-vl/sol-simple-swap/pkg/retry/backoff"
)

// Strategy decides whether another attempt should follow a failed one.
// Strategies may block, for example to wait out a backoff delay.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit caps the total number of attempts, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of targets via errors.Is.
func RetriableErrors(targets ...error) Strategy {
	return RetriableWhen(func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// RetriableWhen only retries errors the classifier accepts, such as
// solana.IsTransient.
func RetriableWhen(classifier func(error) bool) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		return classifier(err)
	}
}

// Backoff waits out schedule's delay, capped at maxDelay, before the next
// attempt. It declines if ctx is done while waiting.
func Backoff(schedule backoff.Strategy, maxDelay time.Duration) Strategy {
	return BackoffWithJitter(schedule, maxDelay, 0)
}

// BackoffWithJitter is Backoff with the capped delay scaled by a uniformly
// random factor in [1-jitter, 1+jitter].
func BackoffWithJitter(schedule backoff.Strategy, maxDelay time.Duration, jitter float64) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		delay := schedule(attempts)
		if delay > maxDelay {
			delay = maxDelay
		}
		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 - jitter + 2*jitter*rand.Float64()))
		}
		return wait(ctx, delay) == nil
	}
}

// wait blocks for d or until ctx is done. Tests replace it to avoid real
// delays.
var wait = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
