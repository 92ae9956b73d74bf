package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Throttle spaces requests to the same host. One Throttle is shared by every
// client of a process so that concurrent callers to a domain queue together.
type Throttle struct {
	mu       sync.Mutex
	nextSlot map[string]time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

func NewThrottle() *Throttle {
	return &Throttle{
		nextSlot: make(map[string]time.Time),
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   randomJitter,
	}
}

// Wait reserves the next slot for host under the lock and sleeps outside it.
// The first request to a host is free; later ones start minDelay after the
// previous reservation plus up to a fifth of minDelay of jitter.
func (t *Throttle) Wait(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		return nil
	}
	t.mu.Lock()
	now := t.now()
	start := now
	if next, ok := t.nextSlot[host]; ok && next.After(now) {
		start = next.Add(t.jitter(minDelay / 5))
	}
	t.nextSlot[host] = start.Add(minDelay)
	t.mu.Unlock()

	if wait := start.Sub(now); wait > 0 {
		return t.sleep(ctx, wait)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
