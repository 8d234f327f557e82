package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter is a token bucket bounding the outbound HTTP request rate.
// Capacity equals the configured rate, so bursts of up to one second's
// worth of requests pass immediately while long-run throughput never
// exceeds rate tokens/second. Shared by all HTTP-stage workers.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64   // tokens added per second; 0 disables limiting
	capacity   float64   // maximum stored tokens (== rate)
	tokens     float64   // may go negative to account for queued waiters
	lastRefill time.Time // last time tokens were credited
	log        *logrus.Entry
}

// NewRateLimiter creates a RateLimiter. ratePerSec <= 0 disables limiting.
func NewRateLimiter(ratePerSec float64, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		rate:       ratePerSec,
		capacity:   ratePerSec,
		tokens:     ratePerSec,
		lastRefill: time.Now(),
		log:        log,
	}
}

// Acquire consumes one token, suspending the caller exactly long enough
// for its token to exist when none is available. Returns early with the
// context error if ctx is cancelled during the wait.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if rl.rate <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now

	// Taking the token before waiting keeps the reservation under one
	// critical section; a negative balance encodes queued waiters.
	rl.tokens--
	deficit := -rl.tokens
	rl.mu.Unlock()

	if deficit <= 0 {
		return nil
	}

	wait := time.Duration(deficit / rl.rate * float64(time.Second))
	rl.log.WithFields(logrus.Fields{"wait": wait}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
