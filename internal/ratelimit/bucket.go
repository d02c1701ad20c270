// Package ratelimit paces outbound calls to the contribution API behind a
// shared token bucket with bounded retries for transient upstream failures.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// TokenBucket is an interval-refill bucket: it holds at most Capacity tokens
// and is refilled back to capacity once per Period. Unlike a continuously
// refilling limiter, tokens spent early in a period are not replenished until
// the next period boundary, which matches the upstream API's quota windows.
//
// Withdrawal is safe under concurrent callers.
type TokenBucket struct {
	capacity   int
	period     time.Duration
	now        func() time.Time
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig holds configuration for a token bucket.
type TokenBucketConfig struct {
	// Capacity is the number of tokens granted per period. Required.
	Capacity int

	// Period is the refill interval. Required.
	Period time.Duration

	// Now overrides the clock. Used by tests; defaults to time.Now.
	Now func() time.Time
}

// Validate checks if the configuration is valid.
func (c *TokenBucketConfig) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if c.Period <= 0 {
		return errors.New("period must be positive")
	}
	return nil
}

// NewTokenBucket creates a full bucket with the given configuration.
func NewTokenBucket(cfg *TokenBucketConfig) (*TokenBucket, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenBucket{
		capacity:   cfg.Capacity,
		period:     cfg.Period,
		now:        now,
		tokens:     cfg.Capacity,
		lastRefill: now(),
	}, nil
}

// TryConsume attempts to withdraw one token.
//
// Returns:
//   - consumed: true if a token was withdrawn
//   - wait: if not consumed, the time until the next refill
func (b *TokenBucket) TryConsume() (consumed bool, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}

	return false, b.lastRefill.Add(b.period).Sub(b.now())
}

// refillLocked advances the refill boundary and restores the bucket to
// capacity when at least one full period has elapsed.
func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.period {
		return
	}

	periods := elapsed / b.period
	b.lastRefill = b.lastRefill.Add(periods * b.period)
	b.tokens = b.capacity
}

// Remaining returns the number of tokens currently available.
func (b *TokenBucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// Capacity returns the configured tokens per period.
func (b *TokenBucket) Capacity() int {
	return b.capacity
}

// Period returns the configured refill interval.
func (b *TokenBucket) Period() time.Duration {
	return b.period
}
