package websock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gowebsock/websock/internal"
	"github.com/stretchr/testify/assert"
)

type webSocketMocker struct {
	BuiltinEventHandler
	onOpen    func(socket *Conn) error
	onMessage func(socket *Conn, message *Message) error
	onClose   func(socket *Conn, code uint16, reason []byte) error
	onPing    func(socket *Conn, payload []byte) error
	onPong    func(socket *Conn, payload []byte) error
	onError   func(socket *Conn, err error)
}

func (c *webSocketMocker) OnOpen(socket *Conn) error {
	if c.onOpen != nil {
		return c.onOpen(socket)
	}
	return nil
}

func (c *webSocketMocker) OnMessage(socket *Conn, message *Message) error {
	if c.onMessage != nil {
		return c.onMessage(socket, message)
	}
	return nil
}

func (c *webSocketMocker) OnClose(socket *Conn, code uint16, reason []byte) error {
	if c.onClose != nil {
		return c.onClose(socket, code, reason)
	}
	return c.BuiltinEventHandler.OnClose(socket, code, reason)
}

func (c *webSocketMocker) OnPing(socket *Conn, payload []byte) error {
	if c.onPing != nil {
		return c.onPing(socket, payload)
	}
	return c.BuiltinEventHandler.OnPing(socket, payload)
}

func (c *webSocketMocker) OnPong(socket *Conn, payload []byte) error {
	if c.onPong != nil {
		return c.onPong(socket, payload)
	}
	return nil
}

func (c *webSocketMocker) OnError(socket *Conn, err error) {
	if c.onError != nil {
		c.onError(socket, err)
	}
}

type receivedMessage struct {
	opcode  Opcode
	payload string
}

// 收集消息的 handler
func newCollector() (*webSocketMocker, *[]receivedMessage) {
	var list []receivedMessage
	var handler = new(webSocketMocker)
	handler.onMessage = func(socket *Conn, message *Message) error {
		list = append(list, receivedMessage{opcode: message.Opcode, payload: string(message.Bytes())})
		return nil
	}
	return handler, &list
}

// 跳过握手, 直接进入已连接状态的服务端连接
func newTestServerConn(handler Event, option *Option) *Conn {
	var socket = NewConn(handler, option)
	socket.phase = phaseConnected
	return socket
}

// 使用客户端连接编码一个带掩码的帧
func clientFrame(fin bool, opcode Opcode, payload []byte) []byte {
	var client = NewClientConn(BuiltinEventHandler{}, nil)
	if err := client.WriteFrame(fin, opcode, payload); err != nil {
		panic(err)
	}
	return bytes.Clone(client.Buffered())
}

// 按给定的第一个字节构造帧, 用于构造非法的帧
func rawFrame(b0 byte, masked bool, payload []byte) []byte {
	var header = frameHeader{}
	var n = 2 + header.SetLength(uint64(len(payload)))
	header[0] = b0
	var b = append([]byte{}, header[:n]...)
	if !masked {
		return append(b, payload...)
	}
	b[1] |= 128
	var key = internal.AlphabetNumeric.MaskKey()
	b = append(b, key[:]...)
	var p = bytes.Clone(payload)
	internal.MaskXOR(p, key[:])
	return append(b, p...)
}

// 解析服务端写出的帧
func decodeFrames(as *assert.Assertions, b []byte) []*Frame {
	var frames []*Frame
	for len(b) > 0 {
		var frame = newFrame()
		for {
			var n = internal.Min(frame.want(), len(b))
			frame.raw = append(frame.raw, b[:n]...)
			b = b[n:]
			ready, err := frame.parse(math.MaxInt32, false)
			if !as.NoError(err) {
				return frames
			}
			if ready {
				break
			}
			if len(b) == 0 {
				as.Fail("truncated frame")
				return frames
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

func closeCode(frame *Frame) uint16 {
	var payload = frame.Payload()
	if len(payload) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(payload[:2])
}

func protocolErrorCode(err error) uint16 {
	var target *ProtocolError
	if errors.As(err, &target) {
		return target.Code
	}
	return 0
}

func TestFeedResult_String(t *testing.T) {
	var as = assert.New(t)
	as.Equal("consumed", FeedConsumed.String())
	as.Equal("need-more", FeedNeedMore.String())
	as.Equal("closed", FeedClosed.String())
	as.Equal("failed", FeedFailed.String())
	as.Equal("FeedResult(9)", FeedResult(9).String())
}

func TestConn_Output(t *testing.T) {
	var as = assert.New(t)

	t.Run("grows by frame size", func(t *testing.T) {
		var socket = newTestServerConn(BuiltinEventHandler{}, nil)
		as.NoError(socket.WriteString("hello"))
		as.Equal(7, len(socket.Buffered()))
		as.NoError(socket.WriteMessage(OpcodeBinary, make([]byte, 200)))
		as.Equal(7+4+200, len(socket.Buffered()))
	})

	t.Run("discard", func(t *testing.T) {
		var socket = newTestServerConn(BuiltinEventHandler{}, nil)
		as.NoError(socket.WriteString("hello"))
		socket.Discard(2)
		as.Equal("hello", string(socket.Buffered()))
		socket.Discard(100)
		as.Empty(socket.Buffered())
	})

	t.Run("write to", func(t *testing.T) {
		var socket = newTestServerConn(BuiltinEventHandler{}, nil)
		as.NoError(socket.WriteString("hello"))
		as.NoError(socket.WriteString("world"))
		var w = bytes.NewBuffer(nil)
		n, err := socket.WriteTo(w)
		as.NoError(err)
		as.Equal(int64(14), n)
		as.Empty(socket.Buffered())

		var frames = decodeFrames(as, w.Bytes())
		as.Len(frames, 2)
		as.Equal("hello", string(frames[0].Payload()))
		as.Equal("world", string(frames[1].Payload()))
	})

	t.Run("release", func(t *testing.T) {
		var socket = newTestServerConn(BuiltinEventHandler{}, nil)
		var frame = clientFrame(false, OpcodeText, []byte("abc"))
		result, err := socket.Feed(frame)
		as.NoError(err)
		as.Equal(FeedConsumed, result)
		as.Len(socket.chain, 1)
		as.NoError(socket.WriteString("x"))

		socket.Release()
		as.Empty(socket.chain)
		as.Nil(socket.current)
		as.Nil(socket.Buffered())
		as.Nil(socket.CloseInfo())
	})
}

func TestConn_Fail(t *testing.T) {
	var as = assert.New(t)

	t.Run("queues close frame and reports error once", func(t *testing.T) {
		var errs []error
		var handler = new(webSocketMocker)
		handler.onError = func(socket *Conn, err error) { errs = append(errs, err) }
		var socket = newTestServerConn(handler, nil)

		result, err := socket.Feed(clientFrame(true, OpcodeContinuation, []byte("x")))
		as.Equal(FeedFailed, result)
		as.Equal(CloseProtocolError, protocolErrorCode(err))
		as.False(socket.IsConnected())
		as.Equal(err, socket.Err())
		as.Len(errs, 1)

		var frames = decodeFrames(as, socket.Buffered())
		as.Len(frames, 1)
		as.Equal(OpcodeCloseConnection, frames[0].Opcode())
		as.Equal(CloseProtocolError, closeCode(frames[0]))
		as.Equal("protocol error", string(frames[0].Payload()[2:]))

		result, err2 := socket.Feed(clientFrame(true, OpcodeText, []byte("x")))
		as.Equal(FeedFailed, result)
		as.Equal(err, err2)
		as.Len(errs, 1)
		as.ErrorIs(socket.WriteString("x"), ErrNotConnected)
	})

	t.Run("callback error", func(t *testing.T) {
		var handler = new(webSocketMocker)
		handler.onMessage = func(socket *Conn, message *Message) error { return errors.New("test") }
		var socket = newTestServerConn(handler, nil)
		result, err := socket.Feed(clientFrame(true, OpcodeText, []byte("x")))
		as.Equal(FeedFailed, result)
		as.Equal(CloseUnexpectedError, protocolErrorCode(err))
		as.EqualError(errors.Unwrap(err), "test")
	})

	t.Run("callback panic", func(t *testing.T) {
		var recovered any
		var handler = new(webSocketMocker)
		handler.onMessage = func(socket *Conn, message *Message) error { panic("boom") }
		var socket = newTestServerConn(handler, &Option{
			Recovery: func(logger Logger, e any) { recovered = e },
		})
		result, err := socket.Feed(clientFrame(true, OpcodeText, []byte("x")))
		as.Equal(FeedFailed, result)
		as.Equal(CloseUnexpectedError, protocolErrorCode(err))
		as.ErrorIs(err, ErrCallbackPanic)
		as.Equal("boom", recovered)
	})

	t.Run("status code error", func(t *testing.T) {
		var handler = new(webSocketMocker)
		handler.onMessage = func(socket *Conn, message *Message) error { return internal.ClosePolicyViolation }
		var socket = newTestServerConn(handler, nil)
		_, err := socket.Feed(clientFrame(true, OpcodeText, []byte("x")))
		as.Equal(ClosePolicyViolation, protocolErrorCode(err))
		var frames = decodeFrames(as, socket.Buffered())
		as.Equal(ClosePolicyViolation, closeCode(frames[0]))
	})

	t.Run("no second close frame", func(t *testing.T) {
		var handler = new(webSocketMocker)
		handler.onMessage = func(socket *Conn, message *Message) error { return errors.New("test") }
		var socket = newTestServerConn(handler, nil)
		as.NoError(socket.WriteClose(CloseNormalClosure, nil))
		var before = len(socket.Buffered())
		_ = socket.fail(errors.New("test"))
		as.Equal(before, len(socket.Buffered()))
	})

	t.Run("error message", func(t *testing.T) {
		var err error = &ProtocolError{Code: 1002, Err: errors.New("test")}
		as.Equal("websock: connection failed, code=1002, cause=test", err.Error())
		var info = &CloseInfo{Code: 1000, Reason: []byte("bye")}
		as.Equal("websock: connection closed, code=1000, reason=bye", info.Error())
	})
}
