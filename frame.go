package websock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gowebsock/websock/internal"
)

type frameState uint8

const (
	frameStart       frameState = iota // 等待前两个字节
	frameBasicHeader                   // FIN, 操作码, 掩码标志位和长度码已知
	frameShortLength                   // 长度字段的宽度已知
	frameFullLength                    // 负载长度和掩码已知, 缓冲区已扩容
	frameReady                         // 整个帧已经收到
)

var errMaskRequired = errors.New("websock: unexpected mask bit")

// 帧的读缓冲区, 容量从 1KiB 到 256KiB
var framePool = internal.NewBufferPool(internal.FrameChunkLength, 256*1024)

// Frame 一个正在解码或者已经完成解码的帧.
// raw 保存帧的原始字节, 容量总是 2 的幂, 在帧的生命周期内不会缩小.
//
// A frame being decoded, or already decoded.
// raw holds the frame as received; its capacity is a power of two and never shrinks while the frame lives.
// Frames handed to callbacks are recycled when the callback returns.
type Frame struct {
	state      frameState
	b0         byte
	fin        bool
	opcode     Opcode
	masked     bool
	unmasked   bool
	lengthCode uint8

	maskOffset    int
	payloadOffset int
	payloadLen    int
	size          int

	buf  *bytes.Buffer // raw 的底层存储, 来自 framePool
	raw  []byte
	mask [internal.MaskLength]byte
}

func newFrame() *Frame {
	var buf = framePool.Get(internal.FrameChunkLength)
	return &Frame{buf: buf, raw: buf.Bytes()[:0]}
}

// 把缓冲区还给 framePool, 之后帧不可再使用
// returns the buffer to framePool; the frame must not be used afterwards
func (c *Frame) release() {
	if c.buf != nil {
		framePool.Put(c.buf)
	}
	c.buf = nil
	c.raw = nil
}

func (c *Frame) Fin() bool {
	return c.fin
}

func (c *Frame) Opcode() Opcode {
	return c.opcode
}

// Payload 返回去掉掩码后的负载, 第一次调用时在原地去掉掩码
// Returns the unmasked payload. The first call unmasks it in place.
func (c *Frame) Payload() []byte {
	var payload = c.raw[c.payloadOffset:c.size]
	if c.masked && !c.unmasked {
		internal.MaskXOR(payload, c.mask[:])
		c.unmasked = true
	}
	return payload
}

// 下一次需要追加的字节数. 协议头逐字节追加, 负载一次性追加
// how many bytes the frame accepts next: one while the header is incomplete, the rest of the payload afterwards
func (c *Frame) want() int {
	if c.state < frameFullLength {
		return 1
	}
	return c.size - len(c.raw)
}

// 扩容到不小于 size 的 2 的幂, 保留已收到的数据
// grows raw to a power of two of at least size bytes, keeping received bytes
func (c *Frame) grow(size int) {
	if size <= cap(c.raw) {
		return
	}
	var buf = framePool.Get(internal.ToBinaryNumber(size))
	var raw = append(buf.Bytes()[:0], c.raw...)
	if c.buf != nil {
		framePool.Put(c.buf)
	}
	c.buf, c.raw = buf, raw
}

// parse 根据已经收到的字节推进状态, 返回帧是否完整.
// 没有新字节时重复调用不会产生额外的作用.
//
// parse advances the decoder over the bytes received so far and reports whether the frame is complete.
// Calling it again without new bytes has no further effect.
func (c *Frame) parse(maxPayload int, isServer bool) (bool, error) {
	var n = len(c.raw)
	switch c.state {
	case frameStart:
		if n < 2 {
			return false, nil
		}
		c.b0 = c.raw[0]
		c.fin = c.raw[0]&0x80 != 0
		c.opcode = Opcode(c.raw[0] & 0x0F)
		c.masked = c.raw[1]&0x80 != 0
		c.lengthCode = c.raw[1] & 0x7F
		c.state = frameBasicHeader
		fallthrough

	case frameBasicHeader:
		// RFC6455: All frames sent from client to server have this bit set to 1.
		if c.masked != isServer {
			return false, internal.NewError(internal.CloseProtocolError, errMaskRequired)
		}
		// RFC6455: All control frames MUST have a payload length of 125 bytes or fewer.
		if c.opcode.isControl() && c.lengthCode > internal.ThresholdV1 {
			return false, internal.NewError(internal.CloseProtocolError, ErrControlTooLarge)
		}
		c.maskOffset = 2
		switch c.lengthCode {
		case 126:
			c.maskOffset += 2
		case 127:
			c.maskOffset += 8
		}
		c.payloadOffset = c.maskOffset + internal.SelectValue(c.masked, internal.MaskLength, 0)
		c.state = frameShortLength
		fallthrough

	case frameShortLength:
		if n < c.payloadOffset {
			return false, nil
		}
		var length uint64
		switch c.lengthCode {
		case 126:
			length = uint64(binary.BigEndian.Uint16(c.raw[2:4]))
		case 127:
			length = binary.BigEndian.Uint64(c.raw[2:10])
		default:
			length = uint64(c.lengthCode)
		}
		if length > uint64(min(maxPayload, internal.ThresholdV3)) {
			return false, internal.NewError(internal.CloseMessageTooLarge, fmt.Errorf("%w: declared length %d", ErrMessageTooLarge, length))
		}
		if c.masked {
			copy(c.mask[:], c.raw[c.maskOffset:c.payloadOffset])
		}
		c.payloadLen = int(length)
		c.size = c.payloadOffset + c.payloadLen
		c.grow(c.size)
		c.state = frameFullLength
		fallthrough

	case frameFullLength:
		if n < c.size {
			return false, nil
		}
		c.state = frameReady
		return true, nil

	default:
		return true, nil
	}
}

// fragmentChain 同一条消息的帧, 按到达顺序排列. 第一帧决定消息的操作码
// frames of one message in arrival order; the first frame carries the message opcode
type fragmentChain []*Frame

func (c fragmentChain) opcode() Opcode {
	return c[0].opcode
}
