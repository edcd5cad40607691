// Package ratelimit provides per-source request budgets on top of
// golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a single token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a burst of 10% of the rate.
// A non-positive rate disables limiting.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Keyed holds one limiter per key, created on first use.
type Keyed struct {
	mu                sync.Mutex
	limiters          map[string]*Limiter
	requestsPerMinute map[string]int
	fallback          int
}

// NewKeyed creates a keyed limiter. Keys without an explicit budget use
// fallbackPerMinute.
func NewKeyed(fallbackPerMinute int) *Keyed {
	return &Keyed{
		limiters:          make(map[string]*Limiter),
		requestsPerMinute: make(map[string]int),
		fallback:          fallbackPerMinute,
	}
}

// SetBudget configures the rate for key. It resets any existing bucket.
func (k *Keyed) SetBudget(key string, requestsPerMinute int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.requestsPerMinute[key] = requestsPerMinute
	delete(k.limiters, key)
}

// Get returns the limiter for key.
func (k *Keyed) Get(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if l, ok := k.limiters[key]; ok {
		return l
	}
	rpm, ok := k.requestsPerMinute[key]
	if !ok {
		rpm = k.fallback
	}
	l := New(rpm)
	k.limiters[key] = l
	return l
}

// Wait blocks on key's bucket.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.Get(key).Wait(ctx)
}
