// Package ratelimit implements a per-key token bucket limiter used to
// throttle command execution bursts. Thread-safe. No background goroutines —
// tokens are refilled lazily on each Allow call.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key has exhausted its token bucket.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config configures the token bucket limiter.
type Config struct {
	ExecutionsPerMinute int // Tokens added per minute. 0 = unlimited (Allow always succeeds).
	BurstSize           int // Maximum tokens in bucket. 0 = defaults to ExecutionsPerMinute.
}

// Limiter is a per-key token bucket limiter. Each base command gets an
// independent bucket, so a runaway npm loop cannot starve git.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64 // max bucket capacity
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewLimiter creates a limiter with the given configuration.
// If ExecutionsPerMinute is 0, Allow always succeeds (unlimited).
func NewLimiter(cfg Config) *Limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = cfg.ExecutionsPerMinute
	}
	if burst <= 0 {
		burst = 1 // safety floor
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.ExecutionsPerMinute) / 60.0,
		burst:   float64(burst),
	}
}

// Allow checks whether the key has tokens remaining.
// Consumes one token on success. Returns ErrRateLimited if the bucket is empty.
func (l *Limiter) Allow(key string) error {
	// Unlimited mode.
	if l.rate <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		// First execution: start with a full bucket.
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastFill = now

	// Try to consume one token.
	if b.tokens < 1 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}
