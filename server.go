package websock

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Session 一个网络连接和它的协议引擎
// Pairs a network connection with its protocol engine.
// All access to the engine goes through the session's lock.
type Session struct {
	mu         sync.Mutex
	server     *Server
	netConn    net.Conn
	conn       *Conn
	writeQueue *workerQueue
	closed     atomic.Bool
}

func (c *Session) Conn() *Conn {
	return c.conn
}

func (c *Session) NetConn() net.Conn {
	return c.netConn
}

// Async 异步执行任务(并发度为1), 任务结束后写出缓冲区
// 注意: 不要在任务中长时间阻塞
// Runs f in the session's queue (concurrency 1) with exclusive access to the engine, then flushes the output.
// Note: Don't add tasks that are blocking for a long time.
func (c *Session) Async(f func(socket *Conn)) {
	c.writeQueue.Push(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed.Load() {
			return
		}
		f(c.conn)
		if err := c.flush(); err != nil {
			c.server.OnError(c.netConn, err)
		}
	})
}

// WriteMessage 写入一条消息并立即写出
// Writes one message and flushes it to the network
func (c *Session) WriteMessage(opcode Opcode, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := c.conn.WriteMessage(opcode, payload); err != nil {
		return err
	}
	return c.flush()
}

// 写出缓冲区, 调用方持有锁
// drains the engine's output to the network; the caller holds the lock
func (c *Session) flush() error {
	if len(c.conn.Buffered()) == 0 {
		return nil
	}
	_, err := c.conn.WriteTo(c.netConn)
	return err
}

func (c *Session) feed(p []byte) (FeedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var connecting = !c.conn.IsConnected()
	result, err := c.conn.Feed(p)
	if connecting && c.conn.IsConnected() {
		_ = c.netConn.SetDeadline(time.Time{})
	}
	if flushErr := c.flush(); err == nil && flushErr != nil {
		return FeedFailed, flushErr
	}
	return result, err
}

func (c *Session) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.server.sessions.Delete(c.conn)
	c.mu.Lock()
	c.conn.Release()
	c.mu.Unlock()
	_ = c.netConn.Close()
}

// Server 基于 net.Listener 的 websocket 服务器, 每个连接一个读协程
// A websocket server over a net.Listener with one reading goroutine per connection
type Server struct {
	option         *ServerOption
	handler        Event
	sessions       *ConcurrentMap[*Conn, *Session]
	broadcastQueue *workerQueue

	// OnError 接收网络层错误和握手错误
	// Receives transport errors and handshake errors
	OnError func(conn net.Conn, err error)
}

// NewServer 创建websocket服务器
// create a websocket server
func NewServer(handler Event, option *ServerOption) *Server {
	var c = &Server{
		option:   initServerOption(option),
		handler:  handler,
		sessions: NewConcurrentMap[*Conn, *Session](16),
	}
	c.broadcastQueue = newWorkerQueue(int32(c.option.BroadcastGoLimit))
	c.OnError = func(conn net.Conn, err error) { c.option.Logger.Error("websock: " + err.Error()) }
	return c
}

// Run 运行. 可以被多次调用, 监听不同的地址.
// It can be called multiple times, listening to different addresses.
func (c *Server) Run(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.RunListener(listener)
}

// RunListener 运行网络监听器, 监听器关闭后返回
// Runs the network listener until it is closed
func (c *Server) RunListener(listener net.Listener) error {
	defer listener.Close()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			c.OnError(netConn, err)
			continue
		}
		go c.ServeConn(netConn)
	}
}

// ServeConn 处理一个网络连接直到它关闭, 会阻塞
// Serves one network connection until it closes. It blocks.
func (c *Server) ServeConn(netConn net.Conn) {
	var session = &Session{
		server:     c,
		netConn:    netConn,
		conn:       NewConn(c.handler, &c.option.Option),
		writeQueue: newWorkerQueue(1),
	}
	c.sessions.Store(session.conn, session)
	defer session.close()

	if err := netConn.SetDeadline(time.Now().Add(c.option.HandshakeTimeout)); err != nil {
		c.OnError(netConn, err)
		return
	}

	var buf = make([]byte, c.option.ReadBufferSize)
	for {
		n, err := netConn.Read(buf)
		if n > 0 {
			result, feedErr := session.feed(buf[:n])
			if feedErr != nil {
				c.OnError(netConn, feedErr)
				return
			}
			if result == FeedClosed {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.OnError(netConn, err)
			}
			return
		}
	}
}

// Session 查找回调中的 socket 对应的会话
// Finds the session serving a socket passed to a callback
func (c *Server) Session(socket *Conn) (*Session, bool) {
	return c.sessions.Load(socket)
}

// Len 会话数量
// number of sessions being served
func (c *Server) Len() int {
	return c.sessions.Len()
}

// Broadcast 向所有已连接的会话写入一条消息, 全部写完后返回成功的数量
// Writes a message to every connected session and returns how many writes succeeded once all are done
func (c *Server) Broadcast(opcode Opcode, payload []byte) int {
	var wg sync.WaitGroup
	var sent atomic.Int64
	c.sessions.Range(func(socket *Conn, session *Session) bool {
		wg.Add(1)
		c.broadcastQueue.Push(func() {
			defer wg.Done()
			if session.WriteMessage(opcode, payload) == nil {
				sent.Add(1)
			}
		})
		return true
	})
	wg.Wait()
	return int(sent.Load())
}
