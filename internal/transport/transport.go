package transport

import (
	"context"
	"net"
)

const (
	Tcp       = "tcp"
	WebSocket = "websocket"
)

// Transport 统一的传输层接口
// 负责特定协议(TCP/WebSocket)的网络通信实现，所有传输共享同一个 chat.Hub
type Transport interface {
	Name() string
	// Listen 绑定地址，失败返回 ErrBind
	Listen(addr string) error
	// Serve 运行接入循环，直到 ctx 结束或 Close
	Serve(ctx context.Context) error
	Addr() net.Addr
	Close() error
}
