package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Predefined TTLs
const (
	TTLLong  = 1 * time.Hour  // 자산 메타데이터 (fractionable 등)
	TTLDaily = 24 * time.Hour // 거래 가능 자산 목록
)

// Cache stores msgpack-encoded values under <prefix>:cache:<key>
// ⭐ SSOT: 캐시 헬퍼는 여기서만
// nil Cache 또는 비활성 Client = 항상 miss
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.client.Enabled()
}

func (c *Cache) key(key string) string {
	return c.prefix + ":cache:" + key
}

// Get decodes a cached value into dest, reporting whether it was found
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores a value with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// GetOrSet fills dest from cache, or from fn on a miss
// Redis 오류는 캐시 miss로 취급 (소스 조회가 우선)
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	if found, err := c.Get(ctx, key, dest); err == nil && found {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if c.enabled() {
		// 저장 실패해도 값은 반환
		_ = c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
	}
	return msgpack.Unmarshal(data, dest)
}

// AssetKey caches engine asset metadata
func AssetKey(symbol string) string {
	return "asset:" + symbol
}

// UniverseKey caches a universe source listing
func UniverseKey(source string) string {
	return "universe:" + source
}
