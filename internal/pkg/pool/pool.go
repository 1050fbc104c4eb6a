package pool

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BigCache bigcache包装器
// 底层直接使用bigcache的[]byte接口，序列化在上层处理
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache 创建bigcache实例
// capacityMB: 缓存容量（MB）
// expiration: 过期时间
func NewBigCache(capacityMB int, expiration time.Duration) (*BigCache, error) {
	config := bigcache.DefaultConfig(expiration)
	config.HardMaxCacheSize = capacityMB
	config.MaxEntrySize = 512 * 1024 // 512KB max entry
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &BigCache{cache: cache}, nil
}

// Get 直接返回[]byte，由上层反序列化
func (c *BigCache) Get(key string) ([]byte, bool) {
	data, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set 直接存储[]byte，由上层序列化
func (c *BigCache) Set(key string, value []byte) error {
	return c.cache.Set(key, value)
}

// Remove 删除键
func (c *BigCache) Remove(key string) error {
	err := c.cache.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Flush 清空所有缓存
func (c *BigCache) Flush() error {
	return c.cache.Reset()
}

// Close 关闭缓存
func (c *BigCache) Close() error {
	return c.cache.Close()
}

// Layered reads through L1 (bigcache) then L2 (redis) then the loader.
// Concurrent misses on one key share a single load.
type Layered struct {
	l1    *BigCache
	l2    *redis.Client // nil disables L2
	l2TTL time.Duration
	group singleflight.Group
}

// NewLayered 创建两级缓存
func NewLayered(l1 *BigCache, l2 *redis.Client, l2TTL time.Duration) *Layered {
	return &Layered{l1: l1, l2: l2, l2TTL: l2TTL}
}

// GetOrLoad decodes the cached JSON for key into dest, calling load on a
// full miss. A load returning (nil, nil) is treated as absent and not cached;
// found reports whether dest was filled.
func (c *Layered) GetOrLoad(ctx context.Context, key string, dest any, load func(ctx context.Context) (any, error)) (found bool, err error) {
	if data, ok := c.l1.Get(key); ok {
		return true, json.Unmarshal(data, dest)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if c.l2 != nil {
			data, err := c.l2.Get(ctx, key).Bytes()
			if err == nil {
				_ = c.l1.Set(key, data)
				return data, nil
			}
			if !errors.Is(err, redis.Nil) {
				return nil, err
			}
		}

		val, err := load(ctx)
		if err != nil || val == nil {
			return nil, err
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		_ = c.l1.Set(key, data)
		if c.l2 != nil {
			if err := c.l2.Set(ctx, key, data, c.l2TTL).Err(); err != nil {
				return nil, err
			}
		}
		return data, nil
	})
	if err != nil || v == nil {
		return false, err
	}
	return true, json.Unmarshal(v.([]byte), dest)
}

// Invalidate drops key from both levels
func (c *Layered) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_ = c.l1.Remove(key)
	}
	if c.l2 != nil && len(keys) > 0 {
		return c.l2.Del(ctx, keys...).Err()
	}
	return nil
}

// Flush empties L1 only; L2 entries expire on their own TTL.
func (c *Layered) Flush() error {
	return c.l1.Flush()
}
