package internal

import (
	"math/rand"
	"sync"
	"time"
)

// RandomString 随机字符串生成器, 并发安全
// random string generator, safe for concurrent use
type RandomString struct {
	mu     sync.Mutex
	r      *rand.Rand
	layout string
}

var AlphabetNumeric = &RandomString{
	layout: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	r:      rand.New(rand.NewSource(time.Now().UnixNano())),
}

// Generate 生成一个长度为 n 的随机字节切片
// generates a random byte slice of length n
func (c *RandomString) Generate(n int) []byte {
	c.mu.Lock()
	var b = make([]byte, n)
	var length = len(c.layout)
	for i := 0; i < n; i++ {
		b[i] = c.layout[c.r.Intn(length)]
	}
	c.mu.Unlock()
	return b
}

func (c *RandomString) Intn(n int) int {
	c.mu.Lock()
	x := c.r.Intn(n)
	c.mu.Unlock()
	return x
}

func (c *RandomString) Uint32() uint32 {
	c.mu.Lock()
	x := c.r.Uint32()
	c.mu.Unlock()
	return x
}

// MaskKey 生成客户端帧使用的掩码
// generates the masking key of a client frame
func (c *RandomString) MaskKey() [MaskLength]byte {
	var n = c.Uint32()
	return [MaskLength]byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}
