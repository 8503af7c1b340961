package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock 可手动推进的时间源
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(WithClock(clock.Now))

	cache.Set("key", "value", time.Minute)

	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	clock.Advance(time.Minute + time.Second)
	_, ok = cache.Get("key")
	assert.False(t, ok)
}

func TestCacheDefaultTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(WithClock(clock.Now), WithDefaultTTL(10*time.Second))

	cache.Set("key", 42, 0)

	clock.Advance(5 * time.Second)
	_, ok := cache.Get("key")
	assert.True(t, ok)

	clock.Advance(6 * time.Second)
	_, ok = cache.Get("key")
	assert.False(t, ok)
}

func TestCacheNoTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(WithClock(clock.Now))

	cache.Set("key", "value", 0)
	clock.Advance(1000 * time.Hour)

	_, ok := cache.Get("key")
	assert.True(t, ok)
}

func TestCacheDeleteAndClear(t *testing.T) {
	cache := NewCache()

	cache.Set("a", 1, 0)
	cache.Set("b", 2, 0)
	assert.Equal(t, 2, cache.Len())

	cache.Delete("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
