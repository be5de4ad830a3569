// Package env sources configuration from environment variables. Variables
// are read on every Get, so changes after startup are observed.
package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hoale58-vl/sol-simple-swap/pkg/config"
	"github.com/hoale58-vl/sol-simple-swap/pkg/config/wrapper"
)

type source struct {
	key string
}

// NewConfig returns a source for the upper-cased variable key. Unset and
// empty variables both yield config.ErrNoValue.
func NewConfig(key string) config.Config {
	return &source{key: strings.ToUpper(key)}
}

// Get implements config.Config.Get
func (s *source) Get(_ context.Context) (any, error) {
	val, ok := os.LookupEnv(s.key)
	if !ok || len(val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(val), nil
}

// Shutdown implements config.Config.Shutdown
func (s *source) Shutdown() {
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
