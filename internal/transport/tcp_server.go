package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

const maxAcceptDelay = time.Second

// TCPServer 监听 TCP 地址，每个连接一个 Session，所有连接共享一个 Hub
type TCPServer struct {
	hub *chat.Hub
	opt Options

	mu     sync.Mutex
	ln     net.Listener
	closed atomic.Bool
}

func NewTCPServer(hub *chat.Hub, opt Options) *TCPServer {
	return &TCPServer{hub: hub, opt: opt}
}

func (s *TCPServer) Name() string { return Tcp }

func (s *TCPServer) Hub() *chat.Hub { return s.hub }

// Listen 绑定地址；失败返回 ErrBind，服务不会进入半启动状态
func (s *TCPServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ErrBind.wrap(addr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		_ = ln.Close()
		return fmt.Errorf("tcp server already listening on %s", s.ln.Addr())
	}
	s.ln = ln
	logger.L().Sugar().Infow("tcp_listen", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际绑定的地址，未监听时为 nil
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve 先启动分发器再进入接入循环。
// ctx 结束或 Close 只会关闭监听 socket，已接入的会话和分发器继续运行。
func (s *TCPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("tcp server is not listening")
	}

	s.hub.Start(context.WithoutCancel(ctx))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrServerClosed
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			logger.L().Sugar().Warnw("tcp_accept_error", "err", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		s.accept(conn)
	}
}

// accept 先注册再启动会话，接入循环不等待会话
func (s *TCPServer) accept(conn net.Conn) {
	peer := newTCPConn(conn, s.opt)
	if !s.hub.Join(peer) {
		_ = conn.Close()
		return
	}
	go newSession(peer, s.hub, s.opt).Run()
}

// Close 关闭监听 socket
func (s *TCPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	logger.L().Sugar().Infow("tcp_close", "addr", ln.Addr().String())
	return ln.Close()
}
