// ratelimit.go implements a token-bucket rate limiter for the reference
// venue's REST endpoints, so order placement and cancellation stay under a
// venue's published per-window request caps without bursting against them
// at the moment of a cascade fire.
package refvenue

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is a continuously-refilling token-bucket rate limiter.
// Callers block in wait() until a token is available or the context is
// cancelled.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

func newTokenBucket(capacity, ratePerSecond float64) *tokenBucket {
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

func (tb *tokenBucket) wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// rateLimiter groups the order and cancel token buckets. SendOrder and
// CancelOrder each wait on the matching bucket before issuing the REST
// call, so a burst of cascade fires degrades to throttled submission
// instead of venue-side rejection.
type rateLimiter struct {
	order  *tokenBucket
	cancel *tokenBucket
}

// newRateLimiter builds a rate limiter with a 350-request burst / 50 req/s
// order bucket and a 300-request burst / 30 req/s cancel bucket — generous
// defaults sized for a single symbol's cascade cadence, not a venue's
// published hard ceiling.
func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		order:  newTokenBucket(350, 50),
		cancel: newTokenBucket(300, 30),
	}
}
