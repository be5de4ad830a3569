// Package memory provides a mutable in-process config source for tests.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/config"
)

// ErrInduced is returned by Get while errors are being induced.
var ErrInduced = errors.New("config: induced failure")

type Config struct {
	mu       sync.RWMutex
	value    any
	fail     bool
	shutdown bool
}

// NewConfig returns a source holding value. A nil value means unset.
func NewConfig(value any) *Config {
	return &Config{value: value}
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.fail:
		return nil, ErrInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

func (c *Config) SetValue(value any) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

func (c *Config) ClearValue() {
	c.SetValue(nil)
}

func (c *Config) InduceErrors() {
	c.setFail(true)
}

func (c *Config) StopInducingErrors() {
	c.setFail(false)
}

func (c *Config) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}
