// Package poll provides a bounded poll-until-predicate helper. It is the one
// place in the relayer that waits for an external effect to become visible:
// seqno increments after a send, balance movement after a swap, transaction
// confirmation.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when the predicate never became true within the
// configured attempts.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Schedule describes the wait pattern between predicate checks.
type Schedule struct {
	Attempts   int           // total predicate evaluations
	Initial    time.Duration // wait before the second attempt
	Multiplier float64       // growth factor per attempt; 1.0 for fixed spacing
	Max        time.Duration // cap on a single wait; 0 for no cap
}

// Fixed returns a schedule with evenly spaced attempts.
func Fixed(attempts int, interval time.Duration) Schedule {
	return Schedule{Attempts: attempts, Initial: interval, Multiplier: 1.0}
}

// Growing returns a schedule where each wait is longer than the last.
func Growing(attempts int, initial time.Duration, multiplier float64, max time.Duration) Schedule {
	return Schedule{Attempts: attempts, Initial: initial, Multiplier: multiplier, Max: max}
}

// Predicate reports whether the awaited condition holds. A non-nil error
// aborts the poll immediately.
type Predicate func(ctx context.Context) (bool, error)

// Until evaluates the predicate according to the schedule until it reports
// true, the attempts run out (ErrExhausted), the predicate fails, or the
// context is cancelled.
func Until(ctx context.Context, s Schedule, fn Predicate) error {
	if s.Attempts <= 0 {
		return ErrExhausted
	}
	if s.Multiplier <= 0 {
		s.Multiplier = 1.0
	}

	delay := s.Initial
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == s.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * s.Multiplier)
		if s.Max > 0 && delay > s.Max {
			delay = s.Max
		}
	}
	return ErrExhausted
}
