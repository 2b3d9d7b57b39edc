package scoring

import (
    "fmt"
    "strconv"
    "strings"
    "time"
)

// nextVersion derives the version token for a freshly trained artifact.
// The token embeds the training unix time; when that would not sort after
// the previous version (clock stall or regression) the previous sequence
// is bumped instead, so versions stay strictly increasing.
func nextVersion(prev string, now time.Time) string {
    candidate := fmt.Sprintf("v1.0.%d", now.Unix())
    if newerVersion(candidate, prev) {
        return candidate
    }
    if seq, ok := versionSeq(prev); ok {
        return fmt.Sprintf("v1.0.%d", seq+1)
    }
    return candidate
}

// versionSeq extracts the trailing numeric sequence of a version token.
func versionSeq(v string) (int64, bool) {
    i := strings.LastIndexByte(v, '.')
    if i < 0 || i == len(v)-1 {
        return 0, false
    }
    n, err := strconv.ParseInt(v[i+1:], 10, 64)
    if err != nil {
        return 0, false
    }
    return n, true
}

// newerVersion reports whether a sorts strictly after b. Tokens with
// numeric sequences compare numerically; anything else falls back to
// lexicographic order.
func newerVersion(a, b string) bool {
    as, aok := versionSeq(a)
    bs, bok := versionSeq(b)
    if aok && bok {
        return as > bs
    }
    return a > b
}
