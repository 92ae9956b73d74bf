// Package ratelimit gates calls per key to a minimum interval.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket of burst 1 per configured key.
// Keys that were never configured pass through immediately.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Configure sets the minimum interval for key. A non-positive interval
// removes the gate.
func (l *Limiter) Configure(key string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval <= 0 {
		delete(l.limiters, key)
		return
	}
	if existing, ok := l.limiters[key]; ok {
		existing.SetLimit(rate.Every(interval))
		return
	}
	l.limiters[key] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Interval reports the configured interval for key, or 0.
func (l *Limiter) Interval(key string) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	limiter, ok := l.limiters[key]
	if !ok || limiter.Limit() == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limiter.Limit()))
}
