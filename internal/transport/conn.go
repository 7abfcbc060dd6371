package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// tcpConn implements chat.Peer over a length-prefixed TCP stream
type tcpConn struct {
	id           string
	conn         net.Conn
	remoteAddr   string
	codec        *FrameCodec
	writeTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newTCPConn(c net.Conn, opt Options) *tcpConn {
	return &tcpConn{
		id:           uuid.New().String(),
		conn:         c,
		remoteAddr:   c.RemoteAddr().String(),
		codec:        NewFrameCodec(WithMaxFrameSize(opt.MaxFrameSize)),
		writeTimeout: opt.WriteTimeout,
	}
}

func (c *tcpConn) ID() string         { return c.id }
func (c *tcpConn) RemoteAddr() string { return c.remoteAddr }
func (c *tcpConn) Transport() string  { return Tcp }
func (c *tcpConn) Closed() bool       { return c.closed.Load() }

// Send 编码并写出一帧
func (c *tcpConn) Send(msg string) error {
	if c.closed.Load() {
		return ErrConnection.wrap("send", net.ErrClosed)
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.codec.WriteMessage(c.conn, msg)
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
