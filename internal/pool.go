package internal

import (
	"bytes"
	"sync"
)

// BufferPool 按 2 的幂分级的内存池
// a memory pool sharded by power-of-two capacity
type BufferPool struct {
	begin  int
	end    int
	shards map[int]*sync.Pool
}

// NewBufferPool 创建一个内存池, left 和 right 会被转换为 2 的幂
// creates a memory pool covering [left, right], both rounded up to powers of two.
// Get returns at least left bytes; Put drops buffers larger than right.
func NewBufferPool(left, right uint32) *BufferPool {
	var begin, end = int(ToBinaryNumber(left)), int(ToBinaryNumber(right))
	var p = &BufferPool{
		begin:  begin,
		end:    end,
		shards: map[int]*sync.Pool{},
	}
	for i := begin; i <= end; i *= 2 {
		capacity := i
		p.shards[i] = &sync.Pool{
			New: func() any { return bytes.NewBuffer(make([]byte, 0, capacity)) },
		}
	}
	return p
}

// Put 将缓冲区放回到内存池
// returns the buffer to the pool
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b != nil {
		if pool, ok := p.shards[b.Cap()]; ok {
			pool.Put(b)
		}
	}
}

// Get 从内存池中获取一个至少 n 字节的缓冲区
// fetches an empty buffer with at least n bytes of capacity
func (p *BufferPool) Get(n int) *bytes.Buffer {
	var size = max(ToBinaryNumber(n), p.begin)
	if pool, ok := p.shards[size]; ok {
		b := pool.Get().(*bytes.Buffer)
		if b.Cap() < size {
			b.Grow(size)
		}
		b.Reset()
		return b
	}
	return bytes.NewBuffer(make([]byte, 0, n))
}
