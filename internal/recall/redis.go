// ABOUTME: Redis-backed Cache implementation for multi-replica deployments
// ABOUTME: JSON-encoded entries under a key prefix; errors degrade to cache misses

package recall

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a shared Redis instance so replicas see
// each other's recall entries. All Redis failures degrade to a miss (Get)
// or a dropped write (Put); the cache is an optimization, never a
// correctness dependency.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is the key prefix for all recall keys (default "parrot:recall:")
	Prefix string
	// TTL is the entry expiry (0 = never expire)
	TTL time.Duration
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisCacheFromClient creates a Redis cache from an existing client.
// This is useful for testing with miniredis.
func NewRedisCacheFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "parrot:recall:"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: slog.Default().With("component", "recall"),
	}
}

// Get fetches and decodes the owner's entry. Any failure is a miss.
func (c *RedisCache) Get(ctx context.Context, ownerID string) (*Entry, bool) {
	data, err := c.client.Get(ctx, c.prefix+ownerID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", "owner_id", ownerID, "error", err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("corrupt recall entry dropped", "owner_id", ownerID, "error", err)
		return nil, false
	}
	return &entry, true
}

// Put overwrites the owner's slot. Write failures are logged and dropped.
func (c *RedisCache) Put(ctx context.Context, ownerID string, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("encoding recall entry failed", "owner_id", ownerID, "error", err)
		return
	}

	if err := c.client.Set(ctx, c.prefix+ownerID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "owner_id", ownerID, "error", err)
	}
}

// Close releases the underlying Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
