package internal

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"unicode/utf8"
	"unsafe"
)

type Integer interface {
	int | int64 | int32 | uint | uint64 | uint32
}

// MaskXOR 计算掩码, key 按 content 的位置循环使用
// applies the 4-byte mask to content, cycling the key by position
func MaskXOR(b []byte, key []byte) {
	var maskKey = binary.LittleEndian.Uint32(key)
	var key64 = uint64(maskKey)<<32 + uint64(maskKey)

	for len(b) >= 64 {
		v := binary.LittleEndian.Uint64(b)
		binary.LittleEndian.PutUint64(b, v^key64)
		v = binary.LittleEndian.Uint64(b[8:16])
		binary.LittleEndian.PutUint64(b[8:16], v^key64)
		v = binary.LittleEndian.Uint64(b[16:24])
		binary.LittleEndian.PutUint64(b[16:24], v^key64)
		v = binary.LittleEndian.Uint64(b[24:32])
		binary.LittleEndian.PutUint64(b[24:32], v^key64)
		v = binary.LittleEndian.Uint64(b[32:40])
		binary.LittleEndian.PutUint64(b[32:40], v^key64)
		v = binary.LittleEndian.Uint64(b[40:48])
		binary.LittleEndian.PutUint64(b[40:48], v^key64)
		v = binary.LittleEndian.Uint64(b[48:56])
		binary.LittleEndian.PutUint64(b[48:56], v^key64)
		v = binary.LittleEndian.Uint64(b[56:64])
		binary.LittleEndian.PutUint64(b[56:64], v^key64)
		b = b[64:]
	}

	for len(b) >= 8 {
		v := binary.LittleEndian.Uint64(b[:8])
		binary.LittleEndian.PutUint64(b[:8], v^key64)
		b = b[8:]
	}

	var n = len(b)
	for i := 0; i < n; i++ {
		idx := i & 3
		b[i] ^= key[idx]
	}
}

// ComputeAcceptKey 计算 Sec-WebSocket-Accept
// base64(sha1(key + magic number))
func ComputeAcceptKey(challengeKey string) string {
	var h = sha1.New()
	var buf = make([]byte, 0, len(challengeKey)+len(MagicNumber))
	buf = append(buf, challengeKey...)
	buf = append(buf, MagicNumber...)
	h.Write(buf)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ToBinaryNumber 将 n 向上取整到 2 的幂, 溢出时返回 n
// rounds n up to the nearest power of two; n itself is returned when that power does not fit in T
func ToBinaryNumber[T Integer](n T) T {
	var x T = 1
	for x < n {
		var next = x * 2
		if next <= x {
			return n
		}
		x = next
	}
	return x
}

func SelectValue[T any](ok bool, a, b T) T {
	if ok {
		return a
	}
	return b
}

func Min[T Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Split 分割字符串, 并去掉每个元素两端的空白, 忽略空元素
// splits s by sep, trims every element and drops the empty ones
func Split(s string, sep string) []string {
	var list = strings.Split(s, sep)
	var j = 0
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			list[j] = v
			j++
		}
	}
	return list[:j]
}

// FirstMatch 按照 preferred 的顺序返回第一个在 candidates 中出现的元素
// returns the first element of preferred that also appears in candidates
func FirstMatch(preferred []string, candidates []string) string {
	for _, a := range preferred {
		for _, b := range candidates {
			if a == b {
				return a
			}
		}
	}
	return ""
}

// IndexHeaderEnd 返回请求头结束符之后的偏移量, 没有找到返回 -1
// returns the offset just past the blank line ending an HTTP header block, or -1
func IndexHeaderEnd(b []byte) int {
	var crlf = bytes.Index(b, []byte("\r\n\r\n"))
	var lf = bytes.Index(b, []byte("\n\n"))
	switch {
	case crlf < 0 && lf < 0:
		return -1
	case lf < 0 || (crlf >= 0 && crlf < lf):
		return crlf + 4
	default:
		return lf + 2
	}
}

func StringToBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// CheckEncoding 文本消息与关闭原因必须是合法的 UTF-8
// text payloads and close reasons must be valid UTF-8
func CheckEncoding(opcode uint8, payload []byte) bool {
	if opcode == 1 || opcode == 8 {
		return utf8.Valid(payload)
	}
	return true
}
