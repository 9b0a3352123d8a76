package chain

import (
	"math/rand"
	"time"
)

// Backoff computes a jittered exponential delay, capped at max, for the
// nth retry attempt (attempt starts at 0 for the first retry).
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Duration returns the delay to sleep before attempt (0-indexed), applying
// full jitter (uniform random in [0, cappedExponential]) so many adapters
// backing off simultaneously do not retry in lockstep.
func (b Backoff) Duration(attempt int) time.Duration {
	if b.Base <= 0 {
		b.Base = 250 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}

	exp := b.Base << uint(attempt)
	if exp <= 0 || exp > b.Max { // overflow or past ceiling
		exp = b.Max
	}
	return time.Duration(rand.Int63n(int64(exp) + 1))
}
