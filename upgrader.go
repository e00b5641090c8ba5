package websock

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"

	"github.com/gowebsock/websock/internal"
	"github.com/valyala/fasthttp"
)

var errHandshakeDone = errors.New("websock: handshake already completed")

type responseWriter struct {
	b *bytes.Buffer
}

func (c *responseWriter) Init(hostname string) *responseWriter {
	c.b = binaryPool.Get(512)
	c.b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	c.WithHeader(internal.Server.Key, hostname)
	c.WithHeader(internal.Upgrade.Key, internal.Upgrade.Val)
	c.WithHeader(internal.Connection.Key, internal.Connection.Val)
	return c
}

func (c *responseWriter) Close() {
	binaryPool.Put(c.b)
	c.b = nil
}

func (c *responseWriter) WithHeader(k, v string) {
	c.b.WriteString(k)
	c.b.WriteString(": ")
	c.b.WriteString(v)
	c.b.WriteString("\r\n")
}

// Bytes 返回完整的响应, 包括结尾的空行
// returns the complete response including the terminating blank line
func (c *responseWriter) Bytes() []byte {
	c.b.WriteString("\r\n")
	return c.b.Bytes()
}

// 统一换行符为 CRLF
// rewrites bare LF line endings as CRLF
func normalizeLineEndings(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}

// 拼接所有 Sec-WebSocket-Protocol 的取值, 超出长度限制的取值会被丢弃
// joins every Sec-WebSocket-Protocol value with commas; a value that would overflow the limit is dropped
func offeredSubprotocols(header *fasthttp.RequestHeader) string {
	var offered = make([]byte, 0, 64)
	for _, v := range header.PeekAll(internal.SecWebSocketProtocol.Key) {
		var sep = internal.SelectValue(len(offered) > 0, 1, 0)
		if len(offered)+sep+len(v) > internal.MaxSubprotocolBytes {
			continue
		}
		if sep > 0 {
			offered = append(offered, ',')
		}
		offered = append(offered, v...)
	}
	return string(offered)
}

// Handshake 处理客户端的握手请求, 把101响应写入输出缓冲区并触发 OnOpen.
// request 必须包含以空行结尾的完整请求头, 返回请求头的长度.
//
// Handshake processes the client's opening handshake, queues the 101 response and fires OnOpen.
// request must hold the complete header block ending with a blank line; the block length is returned.
func (c *Conn) Handshake(request []byte) (int, error) {
	if c.phase != phaseConnecting {
		return 0, fmt.Errorf("%w: %w", ErrHandshake, errHandshakeDone)
	}

	var end = internal.IndexHeaderEnd(request)
	if end < 0 {
		return 0, fmt.Errorf("%w: %w", ErrHandshake, ErrIncompleteHeader)
	}
	if end > c.config.HandshakeMaxSize {
		return 0, fmt.Errorf("%w: %w", ErrHandshake, ErrHandshakeTooLarge)
	}

	var block = normalizeLineEndings(request[:end])
	var header fasthttp.RequestHeader
	if err := header.Read(bufio.NewReaderSize(bytes.NewReader(block), len(block))); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	var websocketKey = string(bytes.TrimSpace(header.Peek(internal.SecWebSocketKey.Key)))
	if websocketKey == "" {
		return 0, fmt.Errorf("%w: %w", ErrHandshake, ErrMissingKey)
	}

	c.subprotocol = internal.FirstMatch(internal.Split(offeredSubprotocols(&header), ","), c.config.Subprotocols)

	var rw = new(responseWriter).Init(c.config.Hostname)
	defer rw.Close()
	rw.WithHeader(internal.SecWebSocketAccept.Key, internal.ComputeAcceptKey(websocketKey))
	if c.subprotocol != "" {
		rw.WithHeader(internal.SecWebSocketProtocol.Key, c.subprotocol)
	}
	var response = rw.Bytes()
	copy(c.appendOutput(len(response)), response)

	c.phase = phaseConnected
	c.needsMore = false
	c.config.Logger.Debug("websock: handshake completed, subprotocol =", c.subprotocol)
	if err := c.call(func() error { return c.handler.OnOpen(c) }); err != nil {
		return end, err
	}
	return end, nil
}
