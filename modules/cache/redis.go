package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by the redis backend.
const DefaultRedisPrefix = "_cache:"

// RedisBackend stores payloads in Redis.
//
// Options: addr, or host and port; password; index (database number);
// prefix.
type RedisBackend struct {
	opts   Options
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend creates a Redis backend. The connection is established
// lazily by the client on first use.
func NewRedisBackend(opts Options) (Backend, error) {
	if opts == nil {
		opts = Options{}
	}
	addr := opts.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(opts.StringOr("host", "127.0.0.1"), strconv.Itoa(opts.IntOr("port", 6379)))
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.String("password"),
		DB:           opts.IntOr("index", 0),
		DialTimeout:  3 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewRedisBackendWithClient(client, opts), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client redis.UniversalClient, opts Options) *RedisBackend {
	if opts == nil {
		opts = Options{}
	}
	return &RedisBackend{opts: opts, client: client, prefix: opts.StringOr("prefix", DefaultRedisPrefix)}
}

// Get retrieves a payload from Redis
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores a payload in Redis with the TTL
func (b *RedisBackend) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a payload from Redis
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is stored in Redis
func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Flush removes every key under the backend prefix. Other keys in the same
// database are left alone.
func (b *RedisBackend) Flush(ctx context.Context) error {
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := b.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis flush: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis flush: %w", err)
	}
	if len(batch) > 0 {
		if err := b.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis flush: %w", err)
		}
	}
	return nil
}

// Close closes the Redis client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) Options() Options { return b.opts }

// Client exposes the underlying client, e.g. for health checks.
func (b *RedisBackend) Client() redis.UniversalClient { return b.client }
