package network

import (
	"context"
	"sync"
	"time"
)

// TokenBucket limits how often an action may happen. A nil bucket allows everything.
type TokenBucket struct {
	mu       sync.Mutex
	capacity int
	tokens   float64
	rate     float64 // tokens per second
	last     time.Time
}

func NewTokenBucket(capacity int, rate float64) *TokenBucket {
	return &TokenBucket{capacity: capacity, tokens: float64(capacity), rate: rate, last: time.Now()}
}

// Every returns a bucket that allows one action per interval, or nil when interval is not positive.
func Every(interval time.Duration) *TokenBucket {
	if interval <= 0 {
		return nil
	}
	return NewTokenBucket(1, 1/interval.Seconds())
}

func (b *TokenBucket) Allow(now time.Time) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		if b.Allow(time.Now()) {
			return nil
		}
		timer := time.NewTimer(b.nextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *TokenBucket) nextToken() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (b *TokenBucket) refill(now time.Time) {
	dt := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += b.rate * dt
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
}
