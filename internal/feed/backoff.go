package feed

import (
	"sync"
	"time"
)

// Backoff yields exponentially growing reconnect delays
type Backoff struct {
	base        time.Duration
	max         time.Duration
	factor      float64
	maxAttempts int // 0 = unlimited

	mu       sync.Mutex
	attempts int
	next     time.Duration
}

// NewBackoff creates a backoff starting at base and capped at 32x base
func NewBackoff(base time.Duration, maxAttempts int) *Backoff {
	if base <= 0 {
		base = 5 * time.Second
	}
	return &Backoff{
		base:        base,
		max:         base * 32,
		factor:      2,
		maxAttempts: maxAttempts,
		next:        base,
	}
}

// Exhausted reports whether the attempt limit has been reached
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxAttempts > 0 && b.attempts >= b.maxAttempts
}

// Next counts an attempt and returns the delay to wait before it
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	d := b.next
	b.next = min(time.Duration(float64(b.next)*b.factor), b.max)
	return d
}

// Attempts returns the attempts made since the last reset
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset starts over after a successful connection
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
	b.next = b.base
}
