package websock

import (
	"sync"

	"github.com/dolthub/maphash"
	"github.com/gowebsock/websock/internal"
)

type (
	// ConcurrentMap 分片存储的并发安全的 map, 用来保存会话
	// a sharded map safe for concurrent use, used to store sessions
	ConcurrentMap[K comparable, V any] struct {
		hasher   maphash.Hasher[K]
		num      uint64
		segments []*bucket[K, V]
	}

	bucket[K comparable, V any] struct {
		sync.RWMutex
		m map[K]V
	}
)

// NewConcurrentMap 创建分片 map, 分片数量会被向上取整为 2 的幂, 默认16
// creates a sharded map; num is rounded up to a power of two and defaults to 16
func NewConcurrentMap[K comparable, V any](num uint64) *ConcurrentMap[K, V] {
	num = internal.SelectValue(num == 0, 16, internal.ToBinaryNumber(num))
	var cm = &ConcurrentMap[K, V]{
		hasher:   maphash.NewHasher[K](),
		num:      num,
		segments: make([]*bucket[K, V], num),
	}
	for i := range cm.segments {
		cm.segments[i] = &bucket[K, V]{m: make(map[K]V)}
	}
	return cm
}

func (c *ConcurrentMap[K, V]) getBucket(key K) *bucket[K, V] {
	var hashCode = c.hasher.Hash(key)
	var index = hashCode & (c.num - 1)
	return c.segments[index]
}

// Len 返回元素数量
// returns the number of elements
func (c *ConcurrentMap[K, V]) Len() int {
	var length = 0
	for _, b := range c.segments {
		b.RLock()
		length += len(b.m)
		b.RUnlock()
	}
	return length
}

func (c *ConcurrentMap[K, V]) Load(key K) (value V, exist bool) {
	var b = c.getBucket(key)
	b.RLock()
	value, exist = b.m[key]
	b.RUnlock()
	return
}

func (c *ConcurrentMap[K, V]) Delete(key K) {
	var b = c.getBucket(key)
	b.Lock()
	delete(b.m, key)
	b.Unlock()
}

func (c *ConcurrentMap[K, V]) Store(key K, value V) {
	var b = c.getBucket(key)
	b.Lock()
	b.m[key] = value
	b.Unlock()
}

// Range calls f sequentially for each key and value present in the map.
// If f returns false, range stops the iteration.
func (c *ConcurrentMap[K, V]) Range(f func(key K, value V) bool) {
	for _, b := range c.segments {
		b.RLock()
		for k, v := range b.m {
			if !f(k, v) {
				b.RUnlock()
				return
			}
		}
		b.RUnlock()
	}
}
