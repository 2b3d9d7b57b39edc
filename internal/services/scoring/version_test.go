package scoring

import (
    "fmt"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNextVersionFromClock(t *testing.T) {
    now := time.Unix(1700000000, 0)
    got := nextVersion("v1.0.0", now)
    assert.Equal(t, "v1.0.1700000000", got)
}

func TestNextVersionBumpsOnStalledClock(t *testing.T) {
    now := time.Unix(1700000000, 0)
    prev := fmt.Sprintf("v1.0.%d", now.Unix())

    got := nextVersion(prev, now)
    assert.Equal(t, "v1.0.1700000001", got)
    assert.True(t, newerVersion(got, prev))
}

func TestNextVersionBumpsOnClockRegression(t *testing.T) {
    prev := "v1.0.1700000500"
    got := nextVersion(prev, time.Unix(1700000000, 0))
    assert.Equal(t, "v1.0.1700000501", got)
}

func TestNextVersionFromEmpty(t *testing.T) {
    got := nextVersion("", time.Unix(1700000000, 0))
    assert.Equal(t, "v1.0.1700000000", got)
}

func TestVersionSeq(t *testing.T) {
    seq, ok := versionSeq("v1.0.1700000000")
    require.True(t, ok)
    assert.Equal(t, int64(1700000000), seq)

    seq, ok = versionSeq("v1.0.0")
    require.True(t, ok)
    assert.Zero(t, seq)

    _, ok = versionSeq("garbage")
    assert.False(t, ok)

    _, ok = versionSeq("v1.0.")
    assert.False(t, ok)
}

func TestNewerVersion(t *testing.T) {
    assert.True(t, newerVersion("v1.0.1700000001", "v1.0.1700000000"))
    assert.False(t, newerVersion("v1.0.1700000000", "v1.0.1700000000"))
    assert.True(t, newerVersion("v1.0.1700000000", "v1.0.0"))
    // non-numeric tokens fall back to string order
    assert.True(t, newerVersion("b", "a"))
}
