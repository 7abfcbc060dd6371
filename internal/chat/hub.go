package chat

import (
	"context"
	"sync"

	"github.com/hongjun500/chat-relay/internal/observe"
)

// Hub 把连接集合、广播队列、Transcript 和分发器组装在一起。
// 多个传输（TCP/WebSocket）可以共享同一个 Hub，分发器只会启动一次。
type Hub struct {
	registry   *Registry
	queue      *Queue
	transcript *Transcript
	dispatcher *Dispatcher

	startOnce sync.Once
	done      chan struct{}
	err       error
}

func NewHub() *Hub {
	h := &Hub{
		registry:   NewRegistry(),
		queue:      NewQueue(),
		transcript: NewTranscript(),
		done:       make(chan struct{}),
	}
	h.dispatcher = NewDispatcher(h.queue, h.registry, h.transcript)
	return h
}

// Start 启动分发器，重复调用无效果
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		go func() {
			defer close(h.done)
			h.err = h.dispatcher.Run(ctx)
		}()
	})
}

// Done 分发器退出后关闭
func (h *Hub) Done() <-chan struct{} { return h.done }

// Err 分发器退出原因，Done 关闭后有效
func (h *Hub) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Join 注册连接
func (h *Hub) Join(p Peer) bool { return h.registry.Add(p) }

// Leave 移除并关闭连接，可重复调用
func (h *Hub) Leave(p Peer) bool { return h.registry.Remove(p) }

// Publish 把已格式化的消息放入广播队列
func (h *Hub) Publish(msg string) bool {
	if !h.queue.Push(msg) {
		return false
	}
	observe.IncMessage(observe.StageReceived)
	return true
}

func (h *Hub) Registry() *Registry     { return h.registry }
func (h *Hub) Transcript() *Transcript { return h.transcript }

// Pending 队列中尚未分发的消息数
func (h *Hub) Pending() int { return h.queue.Len() }

// Close 关闭广播队列，分发器取完剩余消息后退出
func (h *Hub) Close() { h.queue.Close() }
