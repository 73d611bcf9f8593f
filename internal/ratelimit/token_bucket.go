// Package ratelimit provides the per-connection signaling message limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so bucket behavior is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TokenBucket is a mutex-guarded token bucket refilled lazily on each Allow
// call. A capacity or rate of zero disables the limiter (Allow always
// succeeds); negative values are clamped to zero.
type TokenBucket struct {
	mu sync.Mutex

	clock    Clock
	capacity float64
	rate     float64 // tokens per second

	tokens float64
	last   time.Time
}

func NewTokenBucket(clock Clock, capacity, ratePerSecond int) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if ratePerSecond < 0 {
		ratePerSecond = 0
	}
	return &TokenBucket{
		clock:    clock,
		capacity: float64(capacity),
		rate:     float64(ratePerSecond),
		tokens:   float64(capacity),
		last:     clock.Now(),
	}
}

// Allow consumes n tokens if available. n <= 0 always succeeds.
func (b *TokenBucket) Allow(n int) bool {
	if n <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 || b.rate == 0 {
		return true
	}

	now := b.clock.Now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	// A clock that moves backwards only shifts the reference point.
	b.last = now

	cost := float64(n)
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}
