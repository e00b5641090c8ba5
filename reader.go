package websock

import (
	"fmt"

	"github.com/gowebsock/websock/internal"
)

type frameAction uint8

const (
	actionFail     frameAction = iota // 连接失败
	actionFragment                    // 加入分片
	actionDispatch                    // 分发完整的消息
	actionControl                     // 处理控制帧
)

// 根据是否处于分片状态和帧的第一个字节决定如何处理
// chooses what to do with a complete frame from the fragmentation state and the frame's first byte
func route(fragmenting bool, b0 byte) frameAction {
	// RSV1, RSV2, RSV3: MUST be 0 unless an extension is negotiated that defines meanings for non-zero values.
	if b0&0x70 != 0 {
		return actionFail
	}
	var fin = b0&0x80 != 0
	switch Opcode(b0 & 0x0F) {
	case OpcodeContinuation:
		if !fragmenting {
			return actionFail
		}
		return internal.SelectValue(fin, actionDispatch, actionFragment)
	case OpcodeText, OpcodeBinary:
		if fragmenting {
			return actionFail
		}
		return internal.SelectValue(fin, actionDispatch, actionFragment)
	case OpcodeCloseConnection, OpcodePing, OpcodePong:
		// RFC6455: Control frames themselves MUST NOT be fragmented.
		return internal.SelectValue(fin, actionControl, actionFail)
	default:
		return actionFail
	}
}

// Feed 处理从传输层读到的数据, 数据可以按任意边界切分.
// 回调在 Feed 内同步执行, 回调写入的数据通过 WriteTo 取出.
//
// Feed consumes bytes read from the transport, split at arbitrary boundaries.
// Callbacks run synchronously inside Feed; drain what they write with WriteTo.
func (c *Conn) Feed(p []byte) (FeedResult, error) {
	switch c.phase {
	case phaseFailed:
		return FeedFailed, c.err
	case phaseConnecting:
		rest, err := c.feedHandshake(p)
		if err != nil {
			return FeedFailed, err
		}
		if c.phase == phaseConnecting {
			c.needsMore = true
			return FeedNeedMore, nil
		}
		if c.phase == phaseFailed {
			return FeedFailed, c.err
		}
		p = rest
	}
	return c.feedFrames(p)
}

// 缓存握手请求直到出现空行, 返回请求之后多余的字节
// buffers the handshake request until its blank line and returns the bytes that follow it
func (c *Conn) feedHandshake(p []byte) ([]byte, error) {
	c.request = append(c.request, p...)
	var end = internal.IndexHeaderEnd(c.request)
	if end < 0 && len(c.request) <= c.config.HandshakeMaxSize {
		return nil, nil
	}

	var request = c.request
	var err error
	c.request = nil
	if end < 0 {
		err = fmt.Errorf("%w: %w", ErrHandshake, ErrHandshakeTooLarge)
	} else {
		_, err = c.Handshake(request[:end])
	}
	if err != nil {
		if c.phase == phaseConnecting {
			c.phase = phaseFailed
			c.err = err
			c.config.Logger.Error("websock: handshake failed:", err)
		}
		return nil, err
	}
	return request[end:], nil
}

func (c *Conn) isClosing() bool {
	return c.shouldClose || (c.sentClose && c.receivedClose)
}

func (c *Conn) feedFrames(p []byte) (FeedResult, error) {
	for len(p) > 0 && !c.isClosing() {
		if c.current == nil {
			c.current = newFrame()
		}
		var frame = c.current
		var n = internal.Min(frame.want(), len(p))
		frame.raw = append(frame.raw, p[:n]...)
		p = p[n:]

		ready, err := frame.parse(c.config.ReadMaxPayloadSize, c.isServer)
		if err != nil {
			return FeedFailed, c.fail(err)
		}
		if !ready {
			continue
		}
		c.current = nil
		if err := c.handleFrame(frame); err != nil {
			return FeedFailed, err
		}
		if c.phase == phaseFailed {
			return FeedFailed, c.err
		}
	}

	if c.isClosing() {
		c.needsMore = false
		return FeedClosed, nil
	}
	c.needsMore = c.current != nil
	if c.needsMore {
		return FeedNeedMore, nil
	}
	return FeedConsumed, nil
}

func (c *Conn) handleFrame(frame *Frame) error {
	c.config.Logger.Debug("websock: frame received, opcode =", frame.opcode, "fin =", frame.fin, "length =", frame.payloadLen)
	switch route(c.fragmenting, frame.b0) {
	case actionFragment:
		if err := c.appendFragment(frame); err != nil {
			return err
		}
		c.fragmenting = true
		return nil
	case actionDispatch:
		if err := c.appendFragment(frame); err != nil {
			return err
		}
		return c.dispatch()
	case actionControl:
		var err = c.call(func() error { return c.handler.OnControl(c, frame) })
		frame.release()
		return err
	default:
		var err = fmt.Errorf("websock: unexpected frame, b0=%#x fragmenting=%v", frame.b0, c.fragmenting)
		frame.release()
		return c.fail(internal.NewError(internal.CloseProtocolError, err))
	}
}

func (c *Conn) appendFragment(frame *Frame) error {
	c.chainLen += frame.payloadLen
	if c.chainLen > c.config.ReadMaxPayloadSize {
		return c.fail(internal.NewError(internal.CloseMessageTooLarge, ErrMessageTooLarge))
	}
	c.chain = append(c.chain, frame)
	return nil
}

// 拼接分片并分发消息. 已经发送关闭帧时丢弃消息
// joins the chain into one message and hands it to OnMessage; the message is dropped once a close was sent
func (c *Conn) dispatch() error {
	if c.sentClose {
		c.releaseFrames()
		return nil
	}

	var msg = &Message{Opcode: c.chain.opcode(), Data: binaryPool.Get(c.chainLen)}
	for _, frame := range c.chain {
		msg.Data.Write(frame.Payload())
	}
	c.releaseFrames()

	if !internal.CheckEncoding(uint8(msg.Opcode), msg.Bytes()) {
		_ = msg.Close()
		return c.fail(internal.NewError(internal.CloseWrongType, ErrTextEncoding))
	}

	var err = c.call(func() error { return c.handler.OnMessage(c, msg) })
	_ = msg.Close()
	return err
}
