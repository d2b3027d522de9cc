package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	perr "murmur/internal/platform/errors"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a redis server
// keys are <prefix>:<group>:<key>, epochs are <prefix>:epoch:<group> counters
type Redis struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedis wraps a go-redis client, prefix namespaces every key
func NewRedis(rdb redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "murmur"
	}
	return &Redis{rdb: rdb, prefix: strings.TrimSuffix(prefix, ":")}
}

func (r *Redis) key(group, key string) string { return r.prefix + ":" + group + ":" + key }

func (r *Redis) epochKey(group string) string { return r.prefix + ":epoch:" + group }

// Get implements Cache
func (r *Redis) Get(ctx context.Context, group, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(group, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis get %s", group)
	}
	return v, true, nil
}

// Set implements Cache
func (r *Redis) Set(ctx context.Context, group, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, r.key(group, key), val, ttl).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis set %s", group)
	}
	return nil
}

// Delete implements Cache
func (r *Redis) Delete(ctx context.Context, group string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(group, k)
	}
	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis del %s", group)
	}
	return nil
}

// Epoch implements Cache
func (r *Redis) Epoch(ctx context.Context, group string) (int64, error) {
	n, err := r.rdb.Get(ctx, r.epochKey(group)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis epoch %s", group)
	}
	return n, nil
}

// Bump implements Cache
func (r *Redis) Bump(ctx context.Context, group string) (int64, error) {
	n, err := r.rdb.Incr(ctx, r.epochKey(group)).Result()
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis bump %s", group)
	}
	return n, nil
}
