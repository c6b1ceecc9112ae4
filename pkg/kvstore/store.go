/*
Package kvstore is the durable key-value boundary behind the popular places
cache.

Values are opaque byte slices with a time-to-live. Three backends share the
Store contract:

  - Memory: process-local map, used in tests and when persistence is off.
  - File: a single msgpack file guarded by an advisory lock, so several
    processes on one machine can share a cache directory.
  - Redis: a shared server, keys namespaced under a prefix.

A missing or expired key is reported as ErrNotFound. Every other error means
the backend itself is unavailable; callers are expected to degrade rather
than fail.
*/
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for keys that are absent or expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store persists byte values under string keys.
//
// A ttl of zero or less stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clock returns the current time. Backends that expire entries themselves
// accept one so tests can move time forward.
type Clock func() time.Time

// record is the stored form of one value in the local backends.
type record struct {
	Value     []byte `msgpack:"v"`
	ExpiresAt int64  `msgpack:"e,omitempty"`
}

func newRecord(value []byte, ttl time.Duration, now time.Time) record {
	r := record{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl).UnixNano()
	}
	return r
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}
