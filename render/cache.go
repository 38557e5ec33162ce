// Package render serves placeholder images sized to a device's display,
// cached per device and size.
package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is a byte store with per-entry expiry. Get returns errors.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey identifies a render for one device at one size, so a change of
// orientation misses the cache.
func CacheKey(deviceID string, width, height int) string {
	return fmt.Sprintf("image_gallery_cache_key_%s_%d_%d", deviceID, width, height)
}

var _ Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrNotFound
	}
	return data, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is used when no Redis address is configured
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

type MemoryCacheOption func(*MemoryCache)

func WithCacheNowFunc(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.nowFunc = now
	}
}

func NewMemoryCache(options ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if !c.nowFunc().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, errors.ErrNotFound
	}
	return entry.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.nowFunc().Add(ttl),
	}
	return nil
}
