// Package cache is a grouped key/value cache with per-group invalidation epochs
//
// Values are opaque bytes. An epoch is a monotonic counter per group; callers
// fold it into their keys so bumping it orphans every key derived before.
package cache

import (
	"context"
	"encoding/json"
	"time"

	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
)

// Cache is the storage seam used by services
type Cache interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, group, key string) (val []byte, ok bool, err error)
	// Set stores val, ttl <= 0 keeps it until deleted or evicted
	Set(ctx context.Context, group, key string, val []byte, ttl time.Duration) error
	// Delete removes keys, missing keys are not an error
	Delete(ctx context.Context, group string, keys ...string) error
	// Epoch returns the current epoch of group, 0 when never bumped
	Epoch(ctx context.Context, group string) (int64, error)
	// Bump increments the epoch of group and returns the new value
	Bump(ctx context.Context, group string) (int64, error)
}

// GetJSON reads and decodes a JSON value
// a value that fails to decode is reported as a miss
func GetJSON[T any](ctx context.Context, c Cache, group, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(ctx, group, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, nil
	}
	return v, true, nil
}

// SetJSON encodes and stores a JSON value
func SetJSON[T any](ctx context.Context, c Cache, group, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "cache: encode %s/%s", group, key)
	}
	return c.Set(ctx, group, key, raw, ttl)
}

// Observed wraps c and counts lookups per group
func Observed(c Cache) Cache { return observed{inner: c} }

type observed struct{ inner Cache }

func (o observed) Get(ctx context.Context, group, key string) ([]byte, bool, error) {
	v, ok, err := o.inner.Get(ctx, group, key)
	switch {
	case err != nil:
		metrics.CacheLookup(group, "error")
	case ok:
		metrics.CacheLookup(group, "hit")
	default:
		metrics.CacheLookup(group, "miss")
	}
	return v, ok, err
}

func (o observed) Set(ctx context.Context, group, key string, val []byte, ttl time.Duration) error {
	return o.inner.Set(ctx, group, key, val, ttl)
}

func (o observed) Delete(ctx context.Context, group string, keys ...string) error {
	return o.inner.Delete(ctx, group, keys...)
}

func (o observed) Epoch(ctx context.Context, group string) (int64, error) {
	return o.inner.Epoch(ctx, group)
}

func (o observed) Bump(ctx context.Context, group string) (int64, error) {
	n, err := o.inner.Bump(ctx, group)
	if err == nil {
		metrics.EpochBump(group)
	}
	return n, err
}
