package websock

import (
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/gowebsock/websock/internal"
)

// Opcode 操作码
type Opcode uint8

const (
	OpcodeContinuation    Opcode = 0x0 // 继续
	OpcodeText            Opcode = 0x1 // 文本
	OpcodeBinary          Opcode = 0x2 // 二进制
	OpcodeCloseConnection Opcode = 0x8 // 关闭
	OpcodePing            Opcode = 0x9 // 心跳探测
	OpcodePong            Opcode = 0xA // 心跳回应
)

// 判断操作码是否为数据帧
// Checks if the opcode is a data frame
func (c Opcode) isDataFrame() bool {
	return c <= OpcodeBinary
}

// 判断操作码是否为控制帧
// Checks if the opcode belongs to the control range
func (c Opcode) isControl() bool {
	return c&0x8 != 0
}

// 关闭状态码
// Close status codes that may appear on the wire
const (
	CloseNormalClosure   uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseNotAllowed      uint16 = 1003
	CloseNoStatus        uint16 = 1005
	CloseWrongType       uint16 = 1007
	ClosePolicyViolation uint16 = 1008
	CloseMessageTooBig   uint16 = 1009
	CloseUnexpectedError uint16 = 1011
)

var (
	// ErrHandshake 握手错误, 所有握手阶段的错误都包装了它
	// Handshake error; every error of the opening handshake wraps it
	ErrHandshake = errors.New("websock: handshake error")

	// ErrIncompleteHeader 请求头没有以空行结束
	// The request header block is not terminated by a blank line
	ErrIncompleteHeader = errors.New("websock: no header terminator found")

	// ErrMissingKey 缺少 Sec-WebSocket-Key
	// The request carries no Sec-WebSocket-Key header
	ErrMissingKey = errors.New("websock: missing Sec-WebSocket-Key")

	// ErrHandshakeTooLarge 请求头过大
	// The request header block exceeds HandshakeMaxSize
	ErrHandshakeTooLarge = errors.New("websock: handshake request too large")

	// ErrTextEncoding 文本消息编码错误(必须是utf8编码)
	// Text message encoding error (must be utf8)
	ErrTextEncoding = errors.New("websock: invalid text encoding")

	// ErrMessageTooLarge 消息体积过大
	// message is too large
	ErrMessageTooLarge = errors.New("websock: message too large")

	// ErrControlTooLarge 控制帧负载不能超过125字节
	// control frame payloads are limited to 125 bytes
	ErrControlTooLarge = errors.New("websock: control frame payload too large")

	// ErrNotConnected 连接尚未完成握手或已经失败
	// The connection has not completed the handshake, or has failed
	ErrNotConnected = errors.New("websock: not connected")

	// ErrConnClosed 连接已关闭
	// Connection closed
	ErrConnClosed = net.ErrClosed

	// ErrCallbackPanic 回调函数发生了 panic
	// An event callback panicked
	ErrCallbackPanic = errors.New("websock: callback panic")
)

// ProtocolError 协议错误, 总是导致连接失败
// A protocol error. It is always fatal to the connection.
type ProtocolError struct {
	// 发送给对端的关闭状态码
	// Close code sent to the peer
	Code uint16

	// 错误原因
	// The underlying cause
	Err error
}

func (c *ProtocolError) Error() string {
	return fmt.Sprintf("websock: connection failed, code=%d, cause=%v", c.Code, c.Err)
}

func (c *ProtocolError) Unwrap() error {
	return c.Err
}

// CloseInfo 对端关闭帧携带的信息
// Status code and reason carried by the peer's close frame
type CloseInfo struct {
	Code   uint16
	Reason []byte
}

func newCloseInfo(payload []byte) *CloseInfo {
	var reason = payload[2:]
	if len(reason) > internal.MaxCloseReason {
		reason = reason[:internal.MaxCloseReason]
	}
	return &CloseInfo{
		Code:   uint16(payload[0])<<8 | uint16(payload[1]),
		Reason: bytes.Clone(reason),
	}
}

func (c *CloseInfo) Error() string {
	return fmt.Sprintf("websock: connection closed, code=%d, reason=%s", c.Code, string(c.Reason))
}

type Event interface {
	// OnOpen 握手完成
	// The opening handshake completed
	OnOpen(socket *Conn) error

	// OnMessage 消息事件, 回调返回后 message 会被回收
	// A complete message arrived. The message is recycled when the callback returns.
	OnMessage(socket *Conn, message *Message) error

	// OnControl 收到控制帧. 默认实现调用 socket.ProcessControl
	// A control frame arrived. The builtin implementation calls socket.ProcessControl.
	OnControl(socket *Conn, frame *Frame) error

	// OnClose 对端发起关闭. 没有状态码时 code 为 1005
	// The peer started the closing handshake. code is 1005 when the frame carried none.
	OnClose(socket *Conn, code uint16, reason []byte) error

	// OnPing 心跳探测事件
	// Received a ping frame
	OnPing(socket *Conn, payload []byte) error

	// OnPong 心跳响应事件
	// Received a pong frame
	OnPong(socket *Conn, payload []byte) error

	// OnError 连接失败, 关闭帧已经写入输出缓冲区
	// The connection failed; a close frame is already queued
	OnError(socket *Conn, err error)
}

type BuiltinEventHandler struct{}

func (b BuiltinEventHandler) OnOpen(socket *Conn) error { return nil }

func (b BuiltinEventHandler) OnMessage(socket *Conn, message *Message) error { return nil }

func (b BuiltinEventHandler) OnControl(socket *Conn, frame *Frame) error {
	return socket.ProcessControl(frame)
}

// OnClose 回显对端的状态码与原因
// echoes the peer's code and reason
func (b BuiltinEventHandler) OnClose(socket *Conn, code uint16, reason []byte) error {
	if code == CloseNoStatus {
		return socket.WriteClose(CloseNormalClosure, nil)
	}
	return socket.WriteClose(code, reason)
}

func (b BuiltinEventHandler) OnPing(socket *Conn, payload []byte) error {
	return socket.WritePong(payload)
}

func (b BuiltinEventHandler) OnPong(socket *Conn, payload []byte) error { return nil }

func (b BuiltinEventHandler) OnError(socket *Conn, err error) {}

var binaryPool = internal.NewBufferPool(128, 256*1024)

type Message struct {
	// 操作码
	// opcode of the message
	Opcode Opcode

	// 消息内容
	// content of the message
	Data *bytes.Buffer
}

// Read 从消息中读取数据到给定的字节切片 p 中
// Reads data from the message into the given byte slice p
func (c *Message) Read(p []byte) (n int, err error) {
	return c.Data.Read(p)
}

// Bytes 返回消息的数据缓冲区的字节切片
// Returns the byte slice of the message's data buffer
func (c *Message) Bytes() []byte {
	return c.Data.Bytes()
}

func (c *Message) Len() int {
	return c.Data.Len()
}

// Close 关闭消息, 回收资源
// Close message, recycling resources
func (c *Message) Close() error {
	binaryPool.Put(c.Data)
	c.Data = nil
	return nil
}
