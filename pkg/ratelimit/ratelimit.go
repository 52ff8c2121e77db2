// Package ratelimit implements the per-identifier token-bucket rate
// limiter supporting service (spec §4.4 "Supporting Services"): Allow
// reports remaining = max(0, limit - count) and, when denied, a
// positive retry_after_seconds (spec §8 invariant 6).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed          bool
	Remaining        int
	RetryAfterSeconds int
}

// bucket pairs a token-bucket limiter with the last time it was
// touched, so the sweep can evict buckets nobody has used recently.
type bucket struct {
	limiter    *rate.Limiter
	limit      int
	lastTouch  time.Time
}

// Limiter enforces a window/max quota per identifier (e.g. per API key
// or per session id), with a background sweep evicting idle buckets.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	max     int
	stop    chan struct{}
	stopOnce sync.Once
}

// New returns a Limiter allowing up to max requests per window, per
// identifier. sweepInterval controls how often idle per-identifier
// buckets are reclaimed.
func New(window time.Duration, max int, sweepInterval time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
		max:     max,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// Stop ends the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow reports whether identifier may proceed now, consuming one
// token from its bucket if so.
func (l *Limiter) Allow(identifier string) Result {
	l.mu.Lock()
	b, ok := l.buckets[identifier]
	if !ok {
		b = l.newBucketLocked()
		l.buckets[identifier] = b
	}
	b.lastTouch = time.Now()
	l.mu.Unlock()

	if b.limiter.Allow() {
		return Result{Allowed: true, Remaining: int(b.limiter.Tokens())}
	}

	retryAfter := retryAfterSeconds(b.limiter, l.window, l.max)
	return Result{Allowed: false, Remaining: 0, RetryAfterSeconds: retryAfter}
}

func (l *Limiter) newBucketLocked() *bucket {
	refillPerSecond := rate.Limit(float64(l.max) / l.window.Seconds())
	return &bucket{
		limiter:   rate.NewLimiter(refillPerSecond, l.max),
		limit:     l.max,
		lastTouch: time.Now(),
	}
}

// retryAfterSeconds estimates how long until the next token is
// available, rounded up to at least one second (spec §8 invariant 6:
// "if denied, retry_after_seconds > 0").
func retryAfterSeconds(limiter *rate.Limiter, window time.Duration, max int) int {
	perToken := window / time.Duration(max)
	secs := int(perToken.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweepIdle(interval)
		case <-l.stop:
			return
		}
	}
}

// sweepIdle removes buckets untouched for longer than idleAfter,
// bounding memory for identifiers that stop sending requests.
func (l *Limiter) sweepIdle(idleAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-idleAfter)
	for id, b := range l.buckets {
		if b.lastTouch.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
