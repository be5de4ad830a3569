// Package wrapper converts untyped config sources into typed values.
package wrapper

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/config"
)

// ErrUnsupportedConversion indicates the source yielded a type the wrapper
// cannot convert.
var ErrUnsupportedConversion = errors.New("config: unsupported source type")

// ParseFunc converts the raw bytes of a source into T.
type ParseFunc[T any] func([]byte) (T, error)

type typed[T any] struct {
	source       config.Config
	defaultValue T
	parse        ParseFunc[T]

	mu   sync.RWMutex
	last T
}

// New wraps source as a typed value. Raw byte values go through parse, values
// that already have type T are used as is.
func New[T any](source config.Config, defaultValue T, parse ParseFunc[T]) config.Value[T] {
	return &typed[T]{
		source:       source,
		defaultValue: defaultValue,
		parse:        parse,
		last:         defaultValue,
	}
}

// GetSafe implements config.Value.GetSafe. On failure the last good value is
// returned alongside the error.
func (c *typed[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.source.Get(ctx)
	if err == config.ErrNoValue {
		c.remember(c.defaultValue)
		return c.defaultValue, nil
	}

	c.mu.RLock()
	last := c.last
	c.mu.RUnlock()

	if err != nil {
		return last, err
	}

	var value T
	switch raw := raw.(type) {
	case T:
		value = raw
	case []byte:
		if value, err = c.parse(raw); err != nil {
			return last, errors.Wrapf(err, "config: cannot parse %q", raw)
		}
	default:
		return last, ErrUnsupportedConversion
	}

	c.remember(value)
	return value, nil
}

// Get implements config.Value.Get
func (c *typed[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown implements config.Value.Shutdown
func (c *typed[T]) Shutdown() {
	c.source.Shutdown()
}

func (c *typed[T]) remember(v T) {
	c.mu.Lock()
	c.last = v
	c.mu.Unlock()
}

func NewBoolConfig(source config.Config, defaultValue bool) config.Bool {
	return New(source, defaultValue, func(b []byte) (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(string(b)))
	})
}

func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	return New(source, defaultValue, func(b []byte) (uint64, error) {
		return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	})
}

func NewStringConfig(source config.Config, defaultValue string) config.String {
	return New(source, defaultValue, func(b []byte) (string, error) {
		return string(b), nil
	})
}

// NewDurationConfig accepts either a Go duration string ("90s") or a bare
// integer number of seconds.
func NewDurationConfig(source config.Config, defaultValue time.Duration) config.Duration {
	return New(source, defaultValue, parseDuration)
}

func parseDuration(b []byte) (time.Duration, error) {
	s := strings.TrimSpace(string(b))
	if secs, err := strconv.ParseUint(s, 10, 32); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
