package cache

import "time"

// BytesCache stores rendered API response bodies keyed by route and
// parameters. A miss is (nil, false, nil); errors are reserved for
// backend failures so handlers can fall through to the query path.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
