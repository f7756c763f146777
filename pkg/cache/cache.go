// Package cache provides a thread-safe LRU cache for compiled and bound
// search expressions.
//
// The cache is used by the evaluator when the WithCaching option is enabled.
// It avoids re-parsing and re-binding the same expression string on every
// call, which matters when one query is run many times, as in batch mode or
// behind the HTTP server.
//
// # Example
//
//	c := cache.New(1024)
//	node, err := c.GetOrCompile("sort{t:mesh, @label}", compile)
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// Cache is a thread-safe LRU cache of bound expression trees keyed by source
// text. Bound nodes are immutable, so a cached tree may be executed by many
// goroutines at once.
type Cache struct {
	capacity int
	lru      *lru.Cache[string, *types.Node]
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, DefaultCapacity is used.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, *types.Node](capacity)
	if err != nil {
		// Only returned for non-positive sizes.
		panic("cache: " + err.Error())
	}
	return &Cache{capacity: capacity, lru: l}
}

// Get retrieves a bound expression and marks it most recently used.
func (c *Cache) Get(key string) (*types.Node, bool) {
	return c.lru.Get(key)
}

// Set inserts or replaces an expression, evicting the least recently used
// entry when full.
func (c *Cache) Set(key string, node *types.Node) {
	c.lru.Add(key, node)
}

// GetOrCompile retrieves the expression for key from cache, or calls compile
// to create it, caches the result, and returns it. Errors are not cached.
func (c *Cache) GetOrCompile(key string, compile func(string) (*types.Node, error)) (*types.Node, error) {
	if node, ok := c.Get(key); ok {
		return node, nil
	}
	node, err := compile(key)
	if err != nil {
		return nil, err
	}
	c.Set(key, node)
	return node, nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry from the cache.
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}
