package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by Redis.
const DefaultRedisPrefix = "placeserve:"

// RedisOptions selects the server and key namespace.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Store backed by a Redis server. Expiry is left to the server.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to the server and pings it once.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisFromClient(rdb, opts.Prefix), nil
}

// NewRedisFromClient wraps an existing client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
