package websock

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gowebsock/websock/internal"
)

type phase uint8

const (
	phaseConnecting phase = iota // 等待握手请求
	phaseConnected               // 握手完成
	phaseFailed                  // 协议错误, 连接不可用
)

// FeedResult Feed 的返回结果
// outcome of a Feed call
type FeedResult uint8

const (
	// FeedConsumed 输入已经全部处理
	// all input was processed
	FeedConsumed FeedResult = iota

	// FeedNeedMore 输入在帧或者握手请求的中间结束, 部分状态已保留
	// input ended mid-frame or mid-request; partial state is kept
	FeedNeedMore

	// FeedClosed 关闭握手完成, 调用方应当写出缓冲区并关闭传输层
	// the closing handshake finished; flush the output and close the transport
	FeedClosed

	// FeedFailed 连接失败, 总是伴随一个错误
	// the connection failed; always returned with an error
	FeedFailed
)

func (c FeedResult) String() string {
	switch c {
	case FeedConsumed:
		return "consumed"
	case FeedNeedMore:
		return "need-more"
	case FeedClosed:
		return "closed"
	case FeedFailed:
		return "failed"
	default:
		return fmt.Sprintf("FeedResult(%d)", uint8(c))
	}
}

// Conn 协议引擎. 不做任何 I/O, 不是并发安全的
// The protocol engine of one connection. It performs no I/O and is not safe for concurrent use.
type Conn struct {
	isServer      bool
	phase         phase
	sentClose     bool
	receivedClose bool
	fragmenting   bool
	needsMore     bool
	shouldClose   bool

	config  *Option
	handler Event

	// 正在解码的帧
	current *Frame
	// 分片消息
	chain    fragmentChain
	chainLen int

	// 未完成的握手请求
	request []byte
	// 待写出的数据
	out []byte

	closeInfo   *CloseInfo
	subprotocol string
	err         error
}

// NewConn 创建服务端连接, 等待握手请求
// Creates a server-side connection waiting for the opening handshake
func NewConn(handler Event, option *Option) *Conn {
	return &Conn{
		isServer: true,
		phase:    phaseConnecting,
		config:   initOption(option),
		handler:  handler,
	}
}

// NewClientConn 创建客户端连接, 握手已经由调用方完成
// Creates a client-side connection whose handshake was performed elsewhere.
// Outgoing frames are masked and incoming frames must not be.
func NewClientConn(handler Event, option *Option) *Conn {
	return &Conn{
		isServer: false,
		phase:    phaseConnected,
		config:   initOption(option),
		handler:  handler,
	}
}

// Subprotocol 获取协商后的子协议
// Returns the negotiated sub-protocol
func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// CloseInfo 对端关闭帧携带的信息, 没有收到关闭帧时返回 nil
// Returns the peer's close information, or nil when no close frame arrived
func (c *Conn) CloseInfo() *CloseInfo {
	return c.closeInfo
}

func (c *Conn) NeedsMoreData() bool {
	return c.needsMore
}

func (c *Conn) IsConnected() bool {
	return c.phase == phaseConnected
}

// Err 返回导致连接失败的错误
// Returns the error that failed the connection
func (c *Conn) Err() error {
	return c.err
}

// Buffered 返回待写出的数据, 调用 Discard 标记已写出的部分
// Returns the pending output. Call Discard once bytes are written.
func (c *Conn) Buffered() []byte {
	return c.out
}

// Discard 丢弃前 n 字节待写出的数据
// Drops the first n bytes of the pending output
func (c *Conn) Discard(n int) {
	n = internal.Min(n, len(c.out))
	c.out = c.out[:copy(c.out, c.out[n:])]
}

// WriteTo 将待写出的数据写入 w
// Drains the pending output into w
func (c *Conn) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for len(c.out) > 0 {
		n, err := w.Write(c.out)
		total += int64(n)
		c.Discard(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// Release 释放连接持有的资源
// Releases the fragment chain, the output buffer and the close information
func (c *Conn) Release() {
	c.releaseFrames()
	c.request = nil
	c.out = nil
	c.closeInfo = nil
}

// 返回输出缓冲区末尾新增的 n 字节
// extends the output buffer by exactly n bytes and returns the new region
func (c *Conn) appendOutput(n int) []byte {
	var offset = len(c.out)
	c.out = slices.Grow(c.out, n)[:offset+n]
	return c.out[offset:]
}

func (c *Conn) releaseFrames() {
	for _, frame := range c.chain {
		frame.release()
	}
	if c.current != nil {
		c.current.release()
	}
	clear(c.chain)
	c.chain = c.chain[:0]
	c.chainLen = 0
	c.current = nil
	c.fragmenting = false
}

// 在 Recovery 的保护下执行回调, 回调的错误会导致连接失败
// runs an event callback under Recovery; an error or panic fails the connection
func (c *Conn) call(f func() error) (err error) {
	defer func() {
		if e := recover(); e != nil {
			c.config.Recovery(c.config.Logger, e)
			err = c.fail(internal.NewError(internal.CloseUnexpectedErr, fmt.Errorf("%w: %v", ErrCallbackPanic, e)))
		}
	}()
	if err = f(); err != nil {
		return c.fail(err)
	}
	return nil
}

// 连接失败: 写入关闭帧, 释放分片, 通知 OnError
// fails the connection. Calling it again returns the first error.
func (c *Conn) fail(err error) error {
	if c.phase == phaseFailed {
		return c.err
	}

	var code = internal.CloseUnexpectedErr
	var target *internal.Error
	var statusCode internal.StatusCode
	switch {
	case errors.As(err, &target):
		code = target.Code
	case errors.As(err, &statusCode):
		code = statusCode
	}

	c.err = &ProtocolError{Code: code.Uint16(), Err: err}
	var sendClose = !c.sentClose && c.phase == phaseConnected
	c.phase = phaseFailed
	c.config.Logger.Error("websock: connection failed:", c.err)
	if sendClose {
		_ = c.doWriteClose(code.Uint16(), internal.StringToBytes(code.Reason()))
	}
	c.releaseFrames()
	_ = c.call(func() error {
		c.handler.OnError(c, c.err)
		return nil
	})
	return c.err
}
