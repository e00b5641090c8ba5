package internal

import "math"

type Pair struct {
	Key string
	Val string
}

var (
	Server               = Pair{"Server", ""}
	Connection           = Pair{"Connection", "Upgrade"}
	Upgrade              = Pair{"Upgrade", "websocket"}
	SecWebSocketKey      = Pair{"Sec-WebSocket-Key", ""}
	SecWebSocketAccept   = Pair{"Sec-WebSocket-Accept", ""}
	SecWebSocketProtocol = Pair{"Sec-WebSocket-Protocol", ""}
)

const MagicNumber = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	ThresholdV1 = 125
	ThresholdV2 = math.MaxUint16
	ThresholdV3 = 0xfffffff0 // 编码器能够写出的最大负载 / largest payload the encoder will frame
)

const (
	MaskLength          = 4
	FrameChunkLength    = 1024 // 新帧的初始容量 / initial capacity of a new frame
	MaxCloseReason      = ThresholdV1 - 2
	MaxSubprotocolBytes = 1023
	MaxHostnameBytes    = 63
)
