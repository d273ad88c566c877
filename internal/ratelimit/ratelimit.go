// Package ratelimit implements per-client request limiting with
// lazy-refill token buckets. Buckets refill continuously based on
// elapsed time, so there is no background goroutine per client.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket sized and refilled from a per-minute limit.
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(perMinute int64, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(perMinute),
		max:      float64(perMinute),
		rate:     float64(perMinute) / 60.0,
		lastFill: now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// Limiter is the bucket for a single client.
type Limiter struct {
	mu       sync.Mutex
	bucket   *bucket
	limit    int64
	lastUsed time.Time
}

func newLimiter(perMinute int64, now time.Time) *Limiter {
	return &Limiter{
		bucket:   newBucket(perMinute, now),
		limit:    perMinute,
		lastUsed: now,
	}
}

// Allow consumes one request token.
func (l *Limiter) Allow() Result {
	return l.allowAt(time.Now())
}

func (l *Limiter) allowAt(now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastUsed = now

	b := l.bucket
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return Result{Allowed: true, Limit: l.limit, Remaining: int64(b.tokens)}
	}
	return Result{
		Allowed:           false,
		Limit:             l.limit,
		RetryAfterSeconds: (1 - b.tokens) / b.rate,
	}
}

// Registry holds one Limiter per client key.
type Registry struct {
	mu        sync.RWMutex
	perMinute int64
	limiters  map[string]*Limiter
	now       func() time.Time
}

// NewRegistry creates a Registry where every client gets perMinute
// requests per minute.
func NewRegistry(perMinute int64) *Registry {
	return &Registry{
		perMinute: perMinute,
		limiters:  make(map[string]*Limiter),
		now:       time.Now,
	}
}

// Allow consumes one token for the given client key, creating the
// limiter on first sight.
func (r *Registry) Allow(key string) Result {
	now := r.now()

	r.mu.RLock()
	l, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return l.allowAt(now)
	}

	r.mu.Lock()
	if l, ok = r.limiters[key]; !ok {
		l = newLimiter(r.perMinute, now)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return l.allowAt(now)
}

// Len reports the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// EvictStale drops limiters idle since before cutoff and reports how
// many were removed. A returning client simply gets a fresh bucket.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for key, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, key)
			evicted++
		}
	}
	return evicted
}
