package cache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads a fresh value and reports how long it stays valid.
// A zero or negative ttl falls back to the cache default.
type FetchFunc[T any] func(ctx context.Context) (value T, ttl time.Duration, err error)

// Expiring holds a single value together with its expiry time.
// Reads are concurrent; a refresh happens when the value is missing or expired.
// Two callers may refresh at the same time, the later write wins.
type Expiring[T any] struct {
	mu        sync.RWMutex
	value     T
	expiresAt time.Time
	valid     bool

	defaultTTL time.Duration
	now        func() time.Time
}

// NewExpiring creates an empty cache entry
func NewExpiring[T any](defaultTTL time.Duration) *Expiring[T] {
	return &Expiring[T]{
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached value if present and not expired
func (c *Expiring[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || !c.now().Before(c.expiresAt) {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores a value for ttl (defaultTTL when ttl <= 0)
func (c *Expiring[T]) Set(value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.expiresAt = c.now().Add(ttl)
	c.valid = true
}

// Invalidate drops the cached value
func (c *Expiring[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
}

// ExpiresAt returns the expiry of the current value (zero time when empty)
func (c *Expiring[T]) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return time.Time{}
	}
	return c.expiresAt
}

// GetOrRefresh returns the cached value, calling fetch when it is missing or expired.
// A failed fetch leaves the previous (expired) value untouched.
func (c *Expiring[T]) GetOrRefresh(ctx context.Context, fetch FetchFunc[T]) (T, error) {
	if v, ok := c.Get(); ok {
		return v, nil
	}

	v, ttl, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(v, ttl)
	return v, nil
}
