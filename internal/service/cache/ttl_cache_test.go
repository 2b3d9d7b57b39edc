package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("api:score:1", []byte(`{"score":712}`), time.Minute))

	b, ok, err := c.GetBytes("api:score:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"score":712}`, string(b))
}

func TestTTLCacheMiss(t *testing.T) {
	c := NewTTLCache()

	b, ok, err := c.GetBytes("api:score:404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.False(t, ok, "entry expired")

	c.mu.RLock()
	_, present := c.m["k"]
	c.mu.RUnlock()
	assert.False(t, present, "expired entry deleted on read")
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("k", []byte("v"), 0))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTTLCacheCopiesValue(t *testing.T) {
	c := NewTTLCache()

	buf := []byte("original")
	require.NoError(t, c.SetBytes("k", buf, time.Minute))
	buf[0] = 'X'

	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "original", string(b), "stored value unaffected by caller buffer reuse")
}

func TestTTLCacheSweepRemovesExpired(t *testing.T) {
	c := NewTTLCache()

	require.NoError(t, c.SetBytes("dead", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)

	c.mu.Lock()
	c.sweepLocked(time.Now())
	_, present := c.m["dead"]
	c.mu.Unlock()

	assert.False(t, present, "sweep collects expired entries")
}
