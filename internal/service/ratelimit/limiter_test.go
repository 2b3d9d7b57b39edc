package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4:score", 3, 0), "request %d within burst", i)
	}
	assert.False(t, l.Allow("1.2.3.4:score", 3, 0), "burst exhausted")
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()

	require.True(t, l.Allow("a:score", 1, 0))
	require.False(t, l.Allow("a:score", 1, 0))

	assert.True(t, l.Allow("a:history", 1, 0), "different route, same caller")
	assert.True(t, l.Allow("b:score", 1, 0), "different caller, same route")
}

func TestAllowRefills(t *testing.T) {
	l := New()

	require.True(t, l.Allow("k", 1, 100))
	require.False(t, l.Allow("k", 1, 100))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, l.Allow("k", 1, 100), "bucket refilled after wait")
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := New()

	l.Allow("stale", 1, 0)
	l.mu.Lock()
	l.m["stale"].last = time.Now().Add(-2 * idleHorizon)
	l.sweepLocked(time.Now())
	_, ok := l.m["stale"]
	l.mu.Unlock()

	assert.False(t, ok, "idle bucket swept")
}

func TestSweepKeepsActiveBuckets(t *testing.T) {
	l := New()

	l.Allow("live", 5, 1)
	l.mu.Lock()
	l.sweepLocked(time.Now())
	_, ok := l.m["live"]
	l.mu.Unlock()

	assert.True(t, ok, "recently used bucket survives sweep")
}
