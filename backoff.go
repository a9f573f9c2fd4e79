package lifewatch

import "time"

// backoff tracks the retry delay for fetch failures: it starts at initial,
// doubles after each failure up to max, and resets to initial after any
// successful fetch.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// Current returns the delay to sleep before the next attempt.
func (b *backoff) Current() time.Duration { return b.current }

// Fail doubles the delay, capped at max.
func (b *backoff) Fail() {
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
}

// Reset returns the delay to its initial value.
func (b *backoff) Reset() { b.current = b.initial }
