package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// 🧠 内存缓存（一级）
// =============================================================================

// MemoryCache 带容量上限与条目级过期时间的 LRU 缓存
//
// 读取时惰性淘汰过期条目，写入时在容量满后淘汰最久未使用的条目。
// 所有方法并发安全。
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type lruNode struct {
	key       string
	value     []byte
	expiresAt time.Time // 零值表示永不过期
	prev      *lruNode
	next      *lruNode
}

// MemoryStats 内存缓存统计
type MemoryStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// DefaultMemoryCapacity 默认容量
const DefaultMemoryCapacity = 1024

// NewMemoryCache 创建内存缓存，capacity 小于等于 0 时取默认值
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*lruNode),
	}
}

// Get 读取缓存值，过期条目在读取时移除并按未命中处理
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if node.expired(time.Now()) {
		c.removeNode(node)
		delete(c.items, key)
		c.misses.Add(1)
		return nil, false
	}

	c.moveToHead(node)
	c.hits.Add(1)
	return node.value, true
}

// Set 写入缓存值，ttl 小于等于 0 表示永不过期
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		node.expiresAt = expiresAt
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	c.items[key] = node
	c.addToHead(node)
}

// Delete 删除指定键，返回是否存在
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeNode(node)
	delete(c.items, key)
	return true
}

// SweepExpired 扫描并移除全部已过期条目，返回移除数量
func (c *MemoryCache) SweepExpired() int64 {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for key, node := range c.items {
		if node.expired(now) {
			c.removeNode(node)
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len 返回当前条目数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats 返回统计快照
func (c *MemoryCache) Stats() MemoryStats {
	c.mu.Lock()
	entries := len(c.items)
	c.mu.Unlock()

	return MemoryStats{
		Entries:   entries,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (n *lruNode) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && now.After(n.expiresAt)
}

// =============================================================================
// 🔗 双向链表维护
// =============================================================================

func (c *MemoryCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *MemoryCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *MemoryCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
	c.evictions.Add(1)
}
