package websock

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gowebsock/websock/internal"
)

// 协议头最大长度: 2字节基础头 + 8字节长度 + 4字节掩码
const frameHeaderSize = 14

type frameHeader [frameHeaderSize]byte

func (c *frameHeader) SetLength(n uint64) (offset int) {
	if n <= internal.ThresholdV1 {
		(*c)[1] += uint8(n)
		return 0
	} else if n <= internal.ThresholdV2 {
		(*c)[1] += 126
		binary.BigEndian.PutUint16((*c)[2:4], uint16(n))
		return 2
	} else {
		(*c)[1] += 127
		binary.BigEndian.PutUint64((*c)[2:10], n)
		return 8
	}
}

// GenerateHeader 生成协议头, 客户端的帧会带上随机掩码
// generates the frame header; client frames carry a random mask key
func (c *frameHeader) GenerateHeader(isServer bool, fin bool, opcode Opcode, length int) (headerLength int, maskBytes []byte) {
	headerLength = 2
	var b0 = uint8(opcode)
	if fin {
		b0 += 128
	}
	(*c)[0] = b0
	headerLength += c.SetLength(uint64(length))

	if !isServer {
		(*c)[1] |= 128
		var key = internal.AlphabetNumeric.MaskKey()
		copy((*c)[headerLength:headerLength+internal.MaskLength], key[:])
		maskBytes = (*c)[headerLength : headerLength+internal.MaskLength]
		headerLength += internal.MaskLength
	}
	return
}

func (c *Conn) checkWritable() error {
	if c.phase != phaseConnected {
		return ErrNotConnected
	}
	if c.sentClose {
		return ErrConnClosed
	}
	return nil
}

// WriteFrame 写入一个帧到输出缓冲区
// Appends one frame to the output buffer
func (c *Conn) WriteFrame(fin bool, opcode Opcode, payload []byte) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	return c.writeFrame(fin, opcode, payload)
}

// WriteMessage
// 写入文本/二进制消息, 文本消息应该使用UTF8编码
// Writes text/binary messages, text messages should be encoded in UTF8.
func (c *Conn) WriteMessage(opcode Opcode, payload []byte) error {
	return c.WriteFrame(true, opcode, payload)
}

// WriteString
// 写入文本消息, 使用UTF8编码.
// Write text messages, should be encoded in UTF8.
func (c *Conn) WriteString(s string) error {
	return c.WriteMessage(OpcodeText, internal.StringToBytes(s))
}

// WriteFragment 写入分片. 第一个分片使用消息的操作码, 后续分片使用 OpcodeContinuation
// Writes one fragment. The first fragment carries the message opcode, the following ones OpcodeContinuation.
func (c *Conn) WriteFragment(opcode Opcode, payload []byte, fin bool) error {
	return c.WriteFrame(fin, opcode, payload)
}

// WritePing
// 写入Ping消息, 携带的信息不要超过125字节
// Control frame length cannot exceed 125 bytes
func (c *Conn) WritePing(payload []byte) error {
	return c.WriteFrame(true, OpcodePing, payload)
}

// WritePong
// 写入Pong消息, 携带的信息不要超过125字节
// Control frame length cannot exceed 125 bytes
func (c *Conn) WritePong(payload []byte) error {
	return c.WriteFrame(true, OpcodePong, payload)
}

// WriteClose 写入关闭帧, 之后不能再写入任何帧
// 没有特殊需求的话, 推荐code=1000, reason=nil. code=0 时关闭帧不带负载
// Writes a close frame; nothing can be written afterwards.
// If you don't have any special needs, we recommend code=1000, reason=nil. code=0 sends an empty close frame.
func (c *Conn) WriteClose(code uint16, reason []byte) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	return c.doWriteClose(code, reason)
}

func (c *Conn) doWriteClose(code uint16, reason []byte) error {
	var buf = binaryPool.Get(internal.ThresholdV1)
	defer binaryPool.Put(buf)
	if code != 0 {
		code = internal.SelectValue(code < 1000, CloseNormalClosure, code)
		buf.Write(internal.StatusCode(code).Bytes())
		buf.Write(truncateReason(reason))
	}
	return c.writeFrame(true, OpcodeCloseConnection, buf.Bytes())
}

// 截断关闭原因到123字节, 不拆开多字节字符
// truncates a close reason to 123 bytes without splitting a rune
func truncateReason(reason []byte) []byte {
	if len(reason) <= internal.MaxCloseReason {
		return reason
	}
	var n = internal.MaxCloseReason
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

// 生成帧并追加到输出缓冲区
// encodes a frame and appends it to the output buffer
func (c *Conn) writeFrame(fin bool, opcode Opcode, payload []byte) error {
	var n = len(payload)
	switch {
	case opcode.isControl() && opcode > OpcodePong, !opcode.isControl() && opcode > OpcodeBinary:
		return internal.NewError(internal.CloseProtocolError, fmt.Errorf("websock: unexpected opcode %d", opcode))
	case opcode.isControl() && !fin:
		return internal.NewError(internal.CloseProtocolError, fmt.Errorf("websock: fragmented control frame, opcode %d", opcode))
	case opcode.isControl() && n > internal.ThresholdV1:
		return ErrControlTooLarge
	case n > c.config.WriteMaxPayloadSize:
		return ErrMessageTooLarge
	case opcode == OpcodeText && fin && c.config.WriteCheckUtf8Enabled && !internal.CheckEncoding(uint8(opcode), payload):
		return ErrTextEncoding
	}

	var header = frameHeader{}
	headerLength, maskBytes := header.GenerateHeader(c.isServer, fin, opcode, n)
	var frame = c.appendOutput(headerLength + n)
	copy(frame, header[:headerLength])
	copy(frame[headerLength:], payload)
	if !c.isServer {
		internal.MaskXOR(frame[headerLength:], maskBytes)
	}
	if opcode == OpcodeCloseConnection {
		c.sentClose = true
	}
	c.config.Logger.Debug("websock: frame queued, opcode =", opcode, "fin =", fin, "length =", n)
	return nil
}
