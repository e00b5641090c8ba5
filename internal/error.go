package internal

import "strconv"

// closeErrorMap 将状态码映射到错误信息
// map status codes to error messages
var closeErrorMap = map[StatusCode]string{
	0:                     "empty code",
	CloseNormalClosure:    "close normal",
	CloseGoingAway:        "client going away",
	CloseProtocolError:    "protocol error",
	CloseNotAllowed:       "not allowed",
	CloseReserved:         "reserved",
	CloseNoStatusReceived: "no status",
	CloseAbnormalClosure:  "abnormal closure",
	CloseWrongType:        "invalid payload data",
	ClosePolicyViolation:  "policy violation",
	CloseMessageTooLarge:  "message too large",
	CloseMissingExtension: "mandatory extension missing",
	CloseUnexpectedErr:    "unexpected error",
}

// StatusCode WebSocket关闭状态码
// websocket close status code
type StatusCode uint16

const (
	// CloseNormalClosure 正常关闭
	CloseNormalClosure StatusCode = 1000

	// CloseGoingAway 终端离开
	CloseGoingAway StatusCode = 1001

	// CloseProtocolError 由于协议错误而中断连接
	CloseProtocolError StatusCode = 1002

	// CloseNotAllowed 收到了不允许的数据类型
	CloseNotAllowed StatusCode = 1003

	// CloseReserved 保留, 不得出现在线路上
	CloseReserved StatusCode = 1004

	// CloseNoStatusReceived 保留. 关闭帧没有携带状态码
	CloseNoStatusReceived StatusCode = 1005

	// CloseAbnormalClosure 保留. 连接非正常关闭
	CloseAbnormalClosure StatusCode = 1006

	// CloseWrongType 收到了格式不符的数据 (如文本消息中包含了非 UTF-8 数据)
	CloseWrongType StatusCode = 1007

	// ClosePolicyViolation 收到不符合约定的数据
	ClosePolicyViolation StatusCode = 1008

	// CloseMessageTooLarge 收到过大的消息
	CloseMessageTooLarge StatusCode = 1009

	// CloseMissingExtension 客户端期望的拓展没有被协商
	CloseMissingExtension StatusCode = 1010

	// CloseUnexpectedErr 遇到了没有预料的情况
	CloseUnexpectedErr StatusCode = 1011
)

func (c StatusCode) Uint16() uint16 {
	return uint16(c)
}

func (c StatusCode) Bytes() []byte {
	if c == 0 {
		return []byte{}
	}
	return []byte{uint8(c >> 8), uint8(c << 8 >> 8)}
}

// Reason 返回状态码的简短描述, 用作关闭帧的原因
// short description of the code, used as the reason of a close frame
func (c StatusCode) Reason() string {
	return closeErrorMap[c]
}

func (c StatusCode) Error() string {
	if msg, ok := closeErrorMap[c]; ok {
		return "websock: " + msg
	}
	return "websock: close code " + strconv.Itoa(int(c))
}

// IsValidCloseCode 判断线路上收到的状态码是否合法
// reports whether a close code received on the wire is acceptable
func IsValidCloseCode(code uint16) bool {
	switch {
	case code < 1000:
		return false
	case code == 1004 || code == 1005 || code == 1006:
		return false
	case code >= 1012 && code < 3000:
		return false
	case code >= 5000:
		return false
	default:
		return true
	}
}

func NewError(code StatusCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

type Error struct {
	Err  error      // 错误信息
	Code StatusCode // 状态码
}

func (c *Error) Error() string {
	return c.Err.Error()
}

func (c *Error) Unwrap() error {
	return c.Err
}
