package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// CacheEntry is a cached lookup result. Found is false for a cached miss.
type CacheEntry struct {
	Coordinate models.Coordinate `json:"c"`
	Found      bool              `json:"f"`
}

// Cache stores lookup results by key.
type Cache interface {
	Get(ctx context.Context, key string) (entry CacheEntry, hit bool, err error)
	Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error
}

// ConnectRedis initializes a Redis client from a redis:// URL or a
// host:port address.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisCache stores geocode results in Redis as JSON.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed Cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CacheEntry{}, false, nil
		}
		return CacheEntry{}, false, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}
