package websock

import (
	"sync"
	"testing"

	"github.com/gowebsock/websock/internal"
	"github.com/stretchr/testify/assert"
)

func TestNewConcurrentMap(t *testing.T) {
	var as = assert.New(t)
	as.Equal(uint64(16), NewConcurrentMap[string, int](0).num)
	as.Equal(uint64(8), NewConcurrentMap[string, int](5).num)
	as.Equal(uint64(32), NewConcurrentMap[string, int](32).num)
	as.Len(NewConcurrentMap[string, int](5).segments, 8)
}

func TestConcurrentMap(t *testing.T) {
	var as = assert.New(t)
	var m1 = make(map[string]int)
	var m2 = NewConcurrentMap[string, int](13)
	var count = internal.AlphabetNumeric.Intn(1000) + 100
	for i := 0; i < count; i++ {
		var key = string(internal.AlphabetNumeric.Generate(10))
		var val = internal.AlphabetNumeric.Intn(count)
		m1[key] = val
		m2.Store(key, val)
	}

	var keys []string
	for k := range m1 {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys)/2; i++ {
		delete(m1, keys[i])
		m2.Delete(keys[i])
	}

	as.Equal(len(m1), m2.Len())
	for k, v := range m1 {
		v2, ok := m2.Load(k)
		as.True(ok)
		as.Equal(v, v2)
	}
	_, ok := m2.Load("missing")
	as.False(ok)

	var visited = 0
	m2.Range(func(key string, value int) bool {
		as.Equal(m1[key], value)
		visited++
		return true
	})
	as.Equal(len(m1), visited)

	visited = 0
	m2.Range(func(key string, value int) bool {
		visited++
		return visited < 3
	})
	as.Equal(3, visited)
}

func TestConcurrentMap_Pointer(t *testing.T) {
	var as = assert.New(t)
	var m = NewConcurrentMap[*Conn, int](4)
	var sockets []*Conn
	var wg sync.WaitGroup
	var mu sync.Mutex
	wg.Add(64)
	for i := 0; i < 64; i++ {
		go func(n int) {
			defer wg.Done()
			var socket = NewConn(BuiltinEventHandler{}, nil)
			m.Store(socket, n)
			mu.Lock()
			sockets = append(sockets, socket)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	as.Equal(64, m.Len())
	for _, socket := range sockets {
		_, ok := m.Load(socket)
		as.True(ok)
		m.Delete(socket)
	}
	as.Equal(0, m.Len())
}
