package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// SessionState 会话状态
type SessionState int32

const (
	SessionConnected SessionState = iota
	SessionReading
	SessionMessageReceived
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnected:
		return "connected"
	case SessionReading:
		return "reading"
	case SessionMessageReceived:
		return "message_received"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 单个 TCP 连接的读循环：解码帧，格式化后推入广播队列。
// 读到 EOF 或任何错误即从 Hub 移除并关闭连接，不重试。
type Session struct {
	conn        *tcpConn
	hub         *chat.Hub
	reader      *bufio.Reader
	readTimeout time.Duration
	state       atomic.Int32
}

func newSession(conn *tcpConn, hub *chat.Hub, opt Options) *Session {
	return &Session{
		conn:        conn,
		hub:         hub,
		reader:      bufio.NewReader(conn.conn),
		readTimeout: opt.ReadTimeout,
	}
}

// State 当前会话状态
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

func (s *Session) setState(st SessionState) { s.state.Store(int32(st)) }

// Run 阻塞读取直到连接结束
func (s *Session) Run() {
	addr := s.conn.RemoteAddr()
	logger.L().Sugar().Infow("session_open", "conn", s.conn.ID(), "addr", addr)

	var err error
	for {
		s.setState(SessionReading)
		if s.readTimeout > 0 {
			_ = s.conn.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		var msg string
		msg, err = s.conn.codec.DecodeMessage(s.reader)
		if err != nil {
			break
		}
		s.setState(SessionMessageReceived)
		s.hub.Publish(chat.FormatMessage(addr, msg))
	}
	s.close(err)
}

func (s *Session) close(err error) {
	// 先从 Registry 移除再关闭，之后不会再向它分发
	s.hub.Leave(s.conn)
	s.setState(SessionClosed)

	log := logger.L().Sugar().With("conn", s.conn.ID(), "addr", s.conn.RemoteAddr())
	switch {
	case errors.Is(err, io.EOF):
		log.Infow("session_closed", "reason", "eof")
	case errors.Is(err, ErrFrameTooLarge):
		observe.IncProtocolError()
		log.Warnw("session_protocol_error", "code", ErrorCode(err), "max_frame_size", s.conn.codec.MaxFrameSize(), "err", err)
	case errors.Is(err, ErrProtocol):
		observe.IncProtocolError()
		log.Warnw("session_protocol_error", "code", ErrorCode(err), "err", err)
	case errors.Is(err, net.ErrClosed):
		// 分发器写失败时已经关闭了连接
		log.Infow("session_closed", "reason", "closed")
	default:
		log.Warnw("session_read_error", "err", err)
	}
}
