package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(500 * time.Millisecond)

	for attempt := uint(1); attempt <= 5; attempt++ {
		assert.Equal(t, 500*time.Millisecond, s(attempt))
	}
}

func TestExponential(t *testing.T) {
	s := Exponential(250*time.Millisecond, 3.0)

	for attempt, expected := range []time.Duration{
		250 * time.Millisecond,
		750 * time.Millisecond,
		2250 * time.Millisecond,
		6750 * time.Millisecond,
	} {
		assert.Equal(t, expected, s(uint(attempt+1)))
	}
}

func TestBinaryExponential(t *testing.T) {
	s := BinaryExponential(250 * time.Millisecond)

	assert.Equal(t, 250*time.Millisecond, s(1))
	assert.Equal(t, 500*time.Millisecond, s(2))
	assert.Equal(t, time.Second, s(3))
	assert.Equal(t, 2*time.Second, s(4))
}

func TestExponential_Saturates(t *testing.T) {
	s := BinaryExponential(time.Second)

	assert.Equal(t, time.Duration(math.MaxInt64), s(200))
	assert.Equal(t, time.Second, s(0))
}
