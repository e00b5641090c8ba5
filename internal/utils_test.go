package internal

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 逐字节计算掩码, 用于校验 MaskXOR
func maskByByte(content []byte, key []byte) {
	for i := range content {
		content[i] ^= key[i&3]
	}
}

func TestMaskXOR(t *testing.T) {
	var as = assert.New(t)
	for i := 0; i < 1000; i++ {
		var n = AlphabetNumeric.Intn(1024)
		var s1 = AlphabetNumeric.Generate(n)
		var s2 = bytes.Clone(s1)
		var key = AlphabetNumeric.MaskKey()
		MaskXOR(s1, key[:])
		maskByByte(s2, key[:])
		as.Equal(s2, s1, "n=%d", n)

		MaskXOR(s1, key[:])
		maskByByte(s2, key[:])
		as.Equal(s2, s1)
	}
}

func TestComputeAcceptKey(t *testing.T) {
	var as = assert.New(t)
	as.Equal("s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestToBinaryNumber(t *testing.T) {
	var as = assert.New(t)
	as.Equal(1, ToBinaryNumber(0))
	as.Equal(1, ToBinaryNumber(1))
	as.Equal(8, ToBinaryNumber(7))
	as.Equal(8, ToBinaryNumber(8))
	as.Equal(uint64(16), ToBinaryNumber(uint64(9)))
	as.Equal(uint32(1024), ToBinaryNumber(uint32(1000)))
	as.Equal(1<<62+1, ToBinaryNumber(1<<62+1))
	as.Equal(uint32(1<<31+1), ToBinaryNumber(uint32(1<<31+1)))
	as.Equal(uint64(math.MaxUint64), ToBinaryNumber(uint64(math.MaxUint64)))
}

func TestSelectValue(t *testing.T) {
	var as = assert.New(t)
	as.Equal(1, SelectValue(true, 1, 2))
	as.Equal("b", SelectValue(false, "a", "b"))
	as.Equal(1, Min(1, 2))
	as.Equal(uint32(2), Min(uint32(3), uint32(2)))
}

func TestSplit(t *testing.T) {
	var as = assert.New(t)
	as.Equal([]string{"chat", "superchat"}, Split(" chat , superchat ", ","))
	as.Equal([]string{"a", "b"}, Split("a,,b,", ","))
	as.Empty(Split("", ","))
	as.Empty(Split(" , ", ","))
}

func TestFirstMatch(t *testing.T) {
	var as = assert.New(t)
	as.Equal("chat", FirstMatch([]string{"chat", "superchat"}, []string{"superchat", "chat"}))
	as.Equal("superchat", FirstMatch([]string{"v1", "superchat"}, []string{"superchat"}))
	as.Equal("", FirstMatch([]string{"v1"}, []string{"v2"}))
	as.Equal("", FirstMatch(nil, []string{"v2"}))
}

func TestIndexHeaderEnd(t *testing.T) {
	var as = assert.New(t)
	as.Equal(-1, IndexHeaderEnd([]byte("GET / HTTP/1.1\r\nHost: a\r\n")))
	as.Equal(len("GET / HTTP/1.1\r\n\r\n"), IndexHeaderEnd([]byte("GET / HTTP/1.1\r\n\r\nxyz")))
	as.Equal(len("GET / HTTP/1.1\n\n"), IndexHeaderEnd([]byte("GET / HTTP/1.1\n\nxyz")))
	as.Equal(len("A\r\n\r\n"), IndexHeaderEnd([]byte("A\r\n\r\nB\n\n")))
	as.Equal(len("A\n\n"), IndexHeaderEnd([]byte("A\n\nB\r\n\r\n")))
}

func TestStringToBytes(t *testing.T) {
	var as = assert.New(t)
	as.Nil(StringToBytes(""))
	as.Equal([]byte("hello"), StringToBytes("hello"))
}

func TestCheckEncoding(t *testing.T) {
	var as = assert.New(t)
	as.True(CheckEncoding(1, []byte("你好")))
	as.False(CheckEncoding(1, []byte{0xFF}))
	as.False(CheckEncoding(8, []byte{0x03, 0xE8, 0xC0}))
	as.True(CheckEncoding(2, []byte{0xFF}))
	as.True(CheckEncoding(0, []byte{0xFF}))
}
