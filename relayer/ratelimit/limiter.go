// Package ratelimit throttles outbound RPC calls so the relayer stays inside
// provider quotas: a minimum spacing between dispatches plus a bound on
// calls in flight.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces minimum spacing between dispatches and bounded
// concurrency. The zero value is not usable; construct with New.
type Limiter struct {
	minSpacing time.Duration
	slots      chan struct{}

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a limiter allowing at most maxConcurrent calls in flight with
// at least minSpacing between dispatch times. Non-positive arguments fall
// back to permissive values.
func New(minSpacing time.Duration, maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		minSpacing: minSpacing,
		slots:      make(chan struct{}, maxConcurrent),
	}
}

// Do runs fn once a concurrency slot is free and the spacing from the
// previous dispatch has elapsed. The wait is abandoned if ctx is cancelled.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slots }()

	if err := l.waitSpacing(ctx); err != nil {
		return err
	}
	return fn()
}

// waitSpacing sleeps until minSpacing has passed since the last dispatch and
// claims the new dispatch time.
func (l *Limiter) waitSpacing(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		wait := l.minSpacing - now.Sub(l.lastCall)
		if wait <= 0 {
			l.lastCall = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
