package websock

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gowebsock/websock/internal"
)

var errShortClosePayload = errors.New("websock: close payload of one byte")

// ProcessControl 默认的控制帧处理逻辑, BuiltinEventHandler.OnControl 会调用它.
// 协议错误会直接导致连接失败.
//
// The default control frame processor, called by BuiltinEventHandler.OnControl.
// It fails the connection itself on protocol errors.
func (c *Conn) ProcessControl(frame *Frame) error {
	if c.phase != phaseConnected {
		return internal.SelectValue[error](c.err != nil, c.err, ErrNotConnected)
	}
	if !frame.opcode.isControl() {
		var err = fmt.Errorf("websock: unexpected opcode %d", frame.opcode)
		return c.fail(internal.NewError(internal.CloseProtocolError, err))
	}

	// 已经发送关闭帧的连接只处理关闭帧
	if c.sentClose && frame.opcode != OpcodeCloseConnection {
		return nil
	}

	var payload = frame.Payload()
	if len(payload) > internal.ThresholdV1 {
		return c.fail(internal.NewError(internal.CloseProtocolError, ErrControlTooLarge))
	}

	switch frame.opcode {
	case OpcodePing:
		return c.call(func() error { return c.handler.OnPing(c, payload) })
	case OpcodePong:
		return c.call(func() error { return c.handler.OnPong(c, payload) })
	case OpcodeCloseConnection:
		return c.processClose(payload)
	default:
		var err = fmt.Errorf("websock: unexpected opcode %d", frame.opcode)
		return c.fail(internal.NewError(internal.CloseProtocolError, err))
	}
}

func (c *Conn) processClose(payload []byte) error {
	if len(payload) == 1 {
		return c.fail(internal.NewError(internal.CloseProtocolError, errShortClosePayload))
	}

	var code, reason = CloseNoStatus, []byte(nil)
	if len(payload) >= 2 {
		var info = newCloseInfo(payload)
		if c.closeInfo == nil {
			c.closeInfo = info
		}
		if !internal.IsValidCloseCode(info.Code) {
			var err = fmt.Errorf("websock: invalid close code %d", info.Code)
			return c.fail(internal.NewError(internal.CloseProtocolError, err))
		}
		if !utf8.Valid(payload[2:]) {
			return c.fail(internal.NewError(internal.CloseWrongType, ErrTextEncoding))
		}
		code, reason = info.Code, info.Reason
	}

	switch {
	case c.receivedClose:
		c.shouldClose = true
		return nil
	case c.sentClose:
		// 对端确认了我们发起的关闭
		c.receivedClose = true
		c.shouldClose = true
		return nil
	default:
		c.receivedClose = true
		return c.call(func() error { return c.handler.OnClose(c, code, reason) })
	}
}
