// Package cache provides a weight bounded LRU cache.
package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrKeyExists is returned when inserting a key that is already cached.
var ErrKeyExists = errors.New("cache: key already exists")

// Cache is a concurrency safe LRU keyed by K. Each entry carries a weight and
// the least recently used entries are evicted once the total weight exceeds
// the budget.
type Cache[K comparable, V any] interface {
	SetVerbose(verbose bool)
	GetWeight() int
	GetBudget() int
	Insert(key K, value V, weight int) error
	Retrieve(key K) (V, bool)
	Clear()
}

type node[K comparable, V any] struct {
	prev, next *node[K, V]
	key        K
	value      V
	weight     int
}

type lru[K comparable, V any] struct {
	log *logrus.Entry

	mu      sync.Mutex
	head    *node[K, V]
	tail    *node[K, V]
	lookup  map[K]*node[K, V]
	weight  int
	budget  int
	verbose bool
}

func New[K comparable, V any](budget int) Cache[K, V] {
	return &lru[K, V]{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[K]*node[K, V]),
		budget: budget,
	}
}

// SetVerbose enables a debug log line per eviction.
func (c *lru[K, V]) SetVerbose(verbose bool) {
	c.mu.Lock()
	c.verbose = verbose
	c.mu.Unlock()
}

func (c *lru[K, V]) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *lru[K, V]) GetBudget() int {
	return c.budget
}

func (c *lru[K, V]) Insert(key K, value V, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup[key]; ok {
		return ErrKeyExists
	}

	n := &node[K, V]{key: key, value: value, weight: weight}
	c.pushFront(n)
	c.lookup[key] = n
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		delete(c.lookup, evicted.key)
		c.weight -= evicted.weight

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":    evicted.key,
				"weight": evicted.weight,
				"spare":  c.budget - c.weight,
			}).Debug("evicted entry")
		}
	}

	return nil
}

// Retrieve returns the value for key and marks it most recently used.
func (c *lru[K, V]) Retrieve(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.lookup[key]
	if !ok {
		var zero V
		return zero, false
	}

	if n != c.head {
		c.unlink(n)
		c.pushFront(n)
	}
	return n.value, true
}

func (c *lru[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head, c.tail = nil, nil
	c.lookup = make(map[K]*node[K, V])
	c.weight = 0
}

func (c *lru[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *lru[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
