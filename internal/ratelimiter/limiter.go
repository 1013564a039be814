package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// SendLimiter is a token bucket shared by all workers. It enforces a
// steady-state send rate toward the chat API (e.g. 30 messages/sec for
// Telegram bots). Burst is set equal to the rate so no extra burst
// capacity is allowed beyond the configured per-second maximum.
type SendLimiter struct {
	limiter *rate.Limiter
}

// New creates a SendLimiter with ratePerSec tokens per second.
func New(ratePerSec int) *SendLimiter {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec // burst == rate: prevents any "saved up" burst above the limit

	return &SendLimiter{
		limiter: rate.NewLimiter(r, burst),
	}
}

// Wait blocks until the limiter grants a token.
// Called by each worker immediately before a send attempt.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *SendLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
