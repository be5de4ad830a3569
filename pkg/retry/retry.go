// Package retry runs actions again after failures, as directed by a chain of
// strategies.
package retry

import (
	"context"
)

// Action is a function to be performed in a retriable manner.
type Action func(ctx context.Context) error

// Retrier runs actions under a fixed set of strategies.
type Retrier interface {
	Retry(ctx context.Context, action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier returns a Retrier bound to strategies. With none, failed actions
// are retried until ctx is done.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(ctx context.Context, action Action) (uint, error) {
	return Retry(ctx, action, r...)
}

// Retry runs action until it succeeds, a strategy declines another attempt,
// or ctx is done. It returns the number of attempts made.
//
// Strategies are consulted in order and the chain stops at the first one that
// declines, so delaying strategies belong last. Once ctx is done, ctx.Err()
// is returned in place of the action's error.
func Retry(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := action(ctx)
		if err == nil {
			return attempts, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, ctxErr
		}

		for _, s := range strategies {
			if !s(ctx, attempts, err) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return attempts, ctxErr
				}
				return attempts, err
			}
		}
	}
}
