package chat

// Peer 一个已接入的连接（TCP 或 WebSocket）。
// Registry 持有 Peer，会话处理和分发器只持有引用。
type Peer interface {
	ID() string
	RemoteAddr() string
	// Transport 返回传输名称，用于指标标签
	Transport() string
	// Send 把一条消息完整写出；失败说明该连接已不可用
	Send(msg string) error
	Close() error
	Closed() bool
}
