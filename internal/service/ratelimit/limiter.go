package ratelimit

import (
	"sync"
	"time"
)

// Buckets idle longer than this are dropped during a sweep. Scoring
// clients poll at most every few seconds, so an hour of silence means
// the caller is gone.
const idleHorizon = time.Hour

// sweepThreshold bounds how large the bucket map may grow before a
// sweep is attempted on the next Allow call.
const sweepThreshold = 4096

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a per-key token bucket used to shield the scoring API
// from hot polling loops. Keys combine client IP and route so one
// noisy endpoint cannot starve the others for the same caller.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*bucket
	lastSweep time.Time
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket), lastSweep: time.Now()}
}

// Allow consumes one token for key, creating the bucket on first use
// with the given capacity and refill rate. It returns false when the
// bucket is empty.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) > sweepThreshold && now.Sub(l.lastSweep) > idleHorizon/4 {
		l.sweepLocked(now)
	}

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// sweepLocked drops buckets that have not been touched within the idle
// horizon. Callers must hold mu.
func (l *Limiter) sweepLocked(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.last) > idleHorizon {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}
