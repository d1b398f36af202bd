// Package cache 提供带容量上限与访问过期的泛型 LRU 缓存，
// 供仓储装饰器缓存查询结果。
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config 缓存配置
type Config struct {
	// Name 用于日志与 String()
	Name string
	// MaxSize 最大条目数，0 表示不限
	MaxSize int
	// TTL 自最后一次访问起的存活时间，0 表示不过期
	TTL time.Duration
	// OnEvict 条目被驱逐、过期、删除或清空时回调
	OnEvict func(key, value any)
}

// Stats 统计信息
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expires   int64
	Size      int
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	accessedAt time.Time
	elem       *list.Element
}

// Cache 并发安全的 LRU 缓存，最近使用的条目位于链表头部
type Cache[K comparable, V any] struct {
	config Config

	mu    sync.Mutex
	items map[K]*entry[K, V]
	lru   *list.List
	stats Stats

	// gen 在 Delete/Clear 时递增，早于失效开始的加载结果不写回
	gen uint64

	loads singleflight.Group
}

func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	return &Cache[K, V]{
		config: config,
		items:  make(map[K]*entry[K, V]),
		lru:    list.New(),
	}
}

// Get 命中时刷新访问时间与 LRU 位置。
// 需要修改链表与统计，因此始终持有写锁。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.expired(e, time.Now()) {
		c.remove(e)
		c.stats.Misses++
		c.stats.Expires++
		return zero, false
	}
	e.accessedAt = time.Now()
	c.lru.MoveToFront(e.elem)
	c.stats.Hits++
	return e.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// set 需持锁调用
func (c *Cache[K, V]) set(key K, value V) {
	now := time.Now()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.accessedAt = now
		c.lru.MoveToFront(e.elem)
		return
	}
	if c.config.MaxSize > 0 && len(c.items) >= c.config.MaxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest.Value.(*entry[K, V]))
			c.stats.Evictions++
		}
	}
	e := &entry[K, V]{key: key, value: value, accessedAt: now}
	e.elem = c.lru.PushFront(e)
	c.items[key] = e
}

// GetOrLoad 未命中时调用 load 并缓存结果；同一键的并发加载只执行一次。
// load 出错时不缓存。加载期间发生 Delete 或 Clear 时结果照常返回但不缓存，
// 之后的调用会重新加载而不是加入旧的加载。
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.loads.Do(fmt.Sprintf("%d/%v", gen, key), func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.set(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Delete 返回条目是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(e)
	return true
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config.OnEvict != nil {
		for _, e := range c.items {
			c.config.OnEvict(e.key, e.value)
		}
	}
	c.items = make(map[K]*entry[K, V])
	c.lru.Init()
	c.gen++
}

// CleanExpired 清理过期条目并返回数量
func (c *Cache[K, V]) CleanExpired() int {
	if c.config.TTL <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for _, e := range c.items {
		if c.expired(e, now) {
			c.remove(e)
			n++
		}
	}
	c.stats.Expires += int64(n)
	return n
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	return s
}

func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) HitRate() float64 {
	s := c.Stats()
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

func (c *Cache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.config.TTL > 0 && now.Sub(e.accessedAt) >= c.config.TTL
}

// remove 需持锁调用
func (c *Cache[K, V]) remove(e *entry[K, V]) {
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
	c.lru.Remove(e.elem)
	delete(c.items, e.key)
}

func (c *Cache[K, V]) String() string {
	s := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d/%d hits=%d misses=%d hit_rate=%.2f%% evictions=%d expires=%d",
		c.config.Name, s.Size, c.config.MaxSize, s.Hits, s.Misses, c.HitRate()*100, s.Evictions, s.Expires)
}
