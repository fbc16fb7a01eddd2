// Package rediscache provides the Redis tier of the lookup cache, shared by
// every API process.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces lookup entries.
const DefaultKeyPrefix = "dgsync:lookup:"

const scanBatch = 500

// Cache implements outbound.SharedCache on Redis.
type Cache struct {
	client    *redis.Client
	keyPrefix string
}

// Config configures the Redis connection.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// New creates a cache over client. An empty prefix selects DefaultKeyPrefix.
func New(client *redis.Client, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Cache{client: client, keyPrefix: keyPrefix}
}

// Get returns the cached bytes for key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key. A zero ttl keeps it until cleared.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
}

// Clear removes every entry under the prefix. Keys are collected by a full
// SCAN before any is deleted so deletions cannot shift the cursor past live
// keys.
func (c *Cache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	for batch := range slices.Chunk(keys, scanBatch) {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
