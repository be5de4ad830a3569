// Package backoff provides delay schedules for retry strategies.
package backoff

import (
	"math"
	"time"
)

// Strategy maps the number of attempts made so far, starting at 1, to the
// delay before the next one.
type Strategy func(attempts uint) time.Duration

// Constant waits interval between every attempt.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential grows the delay by factor after every attempt:
// base, base*factor, base*factor^2, and so on. The delay saturates at the
// largest time.Duration instead of overflowing.
func Exponential(base time.Duration, factor float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}

		delay := float64(base) * math.Pow(factor, float64(attempts-1))
		if delay >= math.MaxInt64 || math.IsNaN(delay) {
			return math.MaxInt64
		}
		return time.Duration(delay)
	}
}

// BinaryExponential doubles the delay after every attempt.
func BinaryExponential(base time.Duration) Strategy {
	return Exponential(base, 2)
}
