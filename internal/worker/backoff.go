package worker

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before a failed delivery attempt is retried:
// exponential doubling from Base, clamped to Max, plus a uniform jitter
// strictly less than Base so simultaneous failures spread out instead of
// retrying in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func NewBackoff(base, max time.Duration) Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return Backoff{Base: base, Max: max}
}

// Delay returns the wait before the next try of a job whose attempt-th
// delivery just failed (attempt is 1-based):
//
//	attempt 1 → base      (+ jitter)
//	attempt 2 → base * 2  (+ jitter)
//	attempt k → min(base * 2^(k-1), max)  (+ jitter)
//
// A transport-suggested hint (e.g. a flood wait) raises the exponential
// delay, still clamped to Max.
func (b Backoff) Delay(attempt int, hint time.Duration) time.Duration {
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	if hint > d {
		d = hint
		if d > b.Max {
			d = b.Max
		}
	}
	return d + b.jitter()
}

func (b Backoff) jitter() time.Duration {
	if b.Base <= 1 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(b.Base)))
}
