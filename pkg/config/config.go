package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates the source has nothing set and the default applies
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is an untyped configuration source. Values are either raw bytes,
// which typed wrappers parse, or already typed Go values.
type Config interface {
	Get(ctx context.Context) (any, error)

	// Shutdown releases the source. Subsequent calls to Get fail.
	Shutdown()
}

// Value is a typed view over a Config with a default.
type Value[T any] interface {
	// Get returns the current value, falling back to the last good value.
	Get(ctx context.Context) T

	// GetSafe is Get with the source's error surfaced.
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Bool     = Value[bool]
	Duration = Value[time.Duration]
	Uint64   = Value[uint64]
	String   = Value[string]
)
