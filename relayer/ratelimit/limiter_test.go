package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoEnforcesSpacing(t *testing.T) {
	limiter := New(20*time.Millisecond, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Do(context.Background(), func() error { return nil }))
	}

	// Two full gaps between three dispatches.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDoBoundsConcurrency(t *testing.T) {
	limiter := New(0, 2)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Do(context.Background(), func() error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDoAbandonsWaitOnCancel(t *testing.T) {
	limiter := New(0, 1)

	release := make(chan struct{})
	go func() {
		_ = limiter.Do(context.Background(), func() error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Do(ctx, func() error {
		t.Error("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestDoReturnsFnError(t *testing.T) {
	limiter := New(0, 1)

	sentinel := assert.AnError
	err := limiter.Do(context.Background(), func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}
