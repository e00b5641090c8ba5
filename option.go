package websock

import (
	"os"
	"time"

	"github.com/gowebsock/websock/internal"
)

const (
	defaultHostname            = "websock"
	defaultReadMaxPayloadSize  = 16 * 1024 * 1024
	defaultWriteMaxPayloadSize = internal.ThresholdV3
	defaultHandshakeMaxSize    = 8 * 1024
	defaultHandshakeTimeout    = 5 * time.Second
	defaultReadBufferSize      = 4 * 1024
	defaultBroadcastGoLimit    = 16
)

// Option 连接配置, 零值字段会被填充默认值
// Connection options; zero-valued fields are filled with defaults
type Option struct {
	// 握手响应 Server 头的取值, 最长63字节
	// Value of the handshake response's Server header, at most 63 bytes.
	// Defaults to the host name of the machine.
	Hostname string

	// 支持的子协议, 按客户端的顺序协商
	// Supported sub-protocols. The client's preference order wins during negotiation.
	Subprotocols []string

	// 最大读取的消息内容长度, 不能超过 0xfffffff0
	// Maximum length of a received message, fragments included. Capped at 0xfffffff0
	ReadMaxPayloadSize int

	// 最大写入的帧负载长度, 不能超过 0xfffffff0
	// Maximum payload of an outgoing frame, capped at 0xfffffff0
	WriteMaxPayloadSize int

	// 是否检查写入的文本消息的UTF8编码
	// Whether to check the UTF-8 encoding of outgoing text frames
	WriteCheckUtf8Enabled bool

	// 握手请求的最大长度
	// Maximum size of the handshake request header block
	HandshakeMaxSize int

	// 日志工具
	// Logging tools
	Logger Logger

	// 回调函数 panic 时调用
	// Invoked when an event callback panics
	Recovery func(logger Logger, exception any)
}

func initOption(c *Option) *Option {
	if c == nil {
		c = new(Option)
	}
	if c.Hostname == "" {
		hostname, err := os.Hostname()
		c.Hostname = internal.SelectValue(err == nil && hostname != "", hostname, defaultHostname)
	}
	if len(c.Hostname) > internal.MaxHostnameBytes {
		c.Hostname = c.Hostname[:internal.MaxHostnameBytes]
	}
	if c.ReadMaxPayloadSize <= 0 {
		c.ReadMaxPayloadSize = defaultReadMaxPayloadSize
	}
	if c.ReadMaxPayloadSize > internal.ThresholdV3 {
		c.ReadMaxPayloadSize = internal.ThresholdV3
	}
	if c.WriteMaxPayloadSize <= 0 || c.WriteMaxPayloadSize > defaultWriteMaxPayloadSize {
		c.WriteMaxPayloadSize = defaultWriteMaxPayloadSize
	}
	if c.HandshakeMaxSize <= 0 {
		c.HandshakeMaxSize = defaultHandshakeMaxSize
	}
	if c.Logger == nil {
		c.Logger = defaultLogger
	}
	if c.Recovery == nil {
		c.Recovery = Recovery
	}
	return c
}

// ServerOption 服务器配置
// Server options
type ServerOption struct {
	Option

	// 握手超时时间
	// Time allowed for the client to complete the opening handshake
	HandshakeTimeout time.Duration

	// 每次从网络读取的字节数
	// Size of the buffer used for each read from the network
	ReadBufferSize int

	// 广播时并行写入的协程数量
	// Number of goroutines writing a broadcast concurrently
	BroadcastGoLimit int
}

func initServerOption(c *ServerOption) *ServerOption {
	if c == nil {
		c = new(ServerOption)
	}
	initOption(&c.Option)
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.BroadcastGoLimit <= 0 {
		c.BroadcastGoLimit = defaultBroadcastGoLimit
	}
	return c
}
