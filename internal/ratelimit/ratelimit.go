// Package ratelimit paces requests against the retailer sites. All
// scraping runs from one egress IP, so workers wait deliberately between
// pages: slower after failures, slightly faster after long clean streaks.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter enforces a jittered minimum delay between actions.
type SimpleRateLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

// Wait blocks until enough time has passed since the previous action.
// Concurrent callers queue on the mutex, so one limiter shared between
// goroutines still produces sequential pacing.
func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

// Delays reports the current window, mostly for run logging.
func (r *SimpleRateLimiter) Delays() (min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) nextDelay() time.Duration {
	delta := r.maxDelay - r.minDelay
	if !r.jitter || delta <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// Adaptive tuning. The floor keeps a good streak from turning into a
// hammering loop; the ceilings keep a bad streak from stalling a run
// for minutes per product.
const (
	speedUpStreak = 5
	speedUpFactor = 0.9
	delayFloor    = 1 * time.Second

	backOffStreak = 3
	backOffFactor = 1.5
	minDelayCap   = 60 * time.Second
	maxDelayCap   = 120 * time.Second
)

// AdaptiveRateLimiter speeds up while pages keep coming back clean and
// backs off when a site starts failing or blocking. One instance per
// retailer worker; streaks from different stores must not mix.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	errorStreak   int
	successStreak int
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
	}
}

// RecordSuccess notes a clean page. After speedUpStreak in a row the
// minimum delay shrinks by speedUpFactor, never below delayFloor.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.errorStreak = 0

	if a.successStreak > speedUpStreak {
		newMin := time.Duration(float64(a.minDelay) * speedUpFactor)
		if newMin < delayFloor {
			newMin = delayFloor
		}
		a.minDelay = newMin
		a.successStreak = 0
	}
}

// RecordError notes a failed page. After backOffStreak in a row both
// delays grow by backOffFactor, capped so one sick retailer cannot
// stretch a nightly run past its window.
func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successStreak = 0

	if a.errorStreak >= backOffStreak {
		newMin := time.Duration(float64(a.minDelay) * backOffFactor)
		newMax := time.Duration(float64(a.maxDelay) * backOffFactor)

		if newMin > minDelayCap {
			newMin = minDelayCap
		}
		if newMax > maxDelayCap {
			newMax = maxDelayCap
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorStreak = 0
	}
}

// TokenBucketRateLimiter allows short bursts while holding a steady
// long-term rate. Used where requests arrive in clumps rather than as a
// steady walk.
type TokenBucketRateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	minDelay   time.Duration
}

func NewTokenBucketRateLimiter(maxTokens int, refillRate time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
		minDelay:   1 * time.Second,
	}
}

func (t *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refill()

	for t.tokens <= 0 {
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			t.mu.Lock()
			return ctx.Err()
		case <-time.After(t.refillRate):
		}

		t.mu.Lock()
		t.refill()
	}

	t.tokens--

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.minDelay):
		return nil
	}
}

// SetDelay adjusts only the per-action delay; bucket size and refill
// rate are fixed at construction.
func (t *TokenBucketRateLimiter) SetDelay(min, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.minDelay = min
}

func (t *TokenBucketRateLimiter) refill() {
	elapsed := time.Since(t.lastRefill)
	tokensToAdd := int(elapsed / t.refillRate)

	if tokensToAdd > 0 {
		t.tokens += tokensToAdd
		if t.tokens > t.maxTokens {
			t.tokens = t.maxTokens
		}
		t.lastRefill = time.Now()
	}
}
