package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheItem 缓存项
type CacheItem struct {
	Value    interface{} // 缓存值
	ExpireAt time.Time   // 过期时间，零值表示永不过期
}

// Cache 进程内TTL缓存
//
// 过期在读取时判定；时间源可注入，便于测试控制过期。
type Cache struct {
	items      map[string]*CacheItem
	mu         sync.RWMutex
	now        func() time.Time
	defaultTTL time.Duration
}

// CacheOption 缓存选项
type CacheOption func(*Cache)

// WithClock 注入时间源
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithDefaultTTL 设置默认过期时间
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// NewCache 创建缓存实例
func NewCache(opts ...CacheOption) *Cache {
	cache := &Cache{
		items: make(map[string]*CacheItem),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get 获取缓存，过期视为不存在
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if !item.ExpireAt.IsZero() && c.now().After(item.ExpireAt) {
		delete(c.items, key)
		return nil, false
	}

	return item.Value, true
}

// Set 设置缓存，ttl<=0时使用默认TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &CacheItem{Value: value}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl > 0 {
		item.ExpireAt = c.now().Add(ttl)
	}
	c.items[key] = item
}

// Delete 删除缓存
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*CacheItem)
}

// Len 当前缓存项数量（含未被读取触发清理的过期项）
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// RedisCache redis缓存服务，跨进程共享
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建redis缓存实例
func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}
}

// Client 获取底层redis客户端（供pub/sub桥接使用）
func (s *RedisCache) Client() *redis.Client {
	return s.client
}

// Set 设置缓存
func (s *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %v", err)
	}
	return s.client.Set(ctx, key, data, expiration).Err()
}

// Get 获取缓存，不存在时返回false
func (s *RedisCache) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get value: %v", err)
	}
	return true, json.Unmarshal(data, value)
}

// Delete 删除缓存
func (s *RedisCache) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close 关闭连接
func (s *RedisCache) Close() error {
	return s.client.Close()
}
