package chat

import (
	"context"
	"errors"

	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// Dispatcher 唯一的广播协程：按 FIFO 取消息，写入 Transcript，再写给每个连接
//
// 一条消息完整分发后才取下一条，所有连接看到同一个全局顺序。
// 单个连接写失败只会移除该连接，不影响其余连接，也不会重试。
type Dispatcher struct {
	queue      *Queue
	registry   *Registry
	transcript *Transcript
}

func NewDispatcher(q *Queue, r *Registry, t *Transcript) *Dispatcher {
	return &Dispatcher{queue: q, registry: r, transcript: t}
}

// Run 阻塞运行直到 ctx 结束或队列关闭（关闭时返回 nil）
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msg, err := d.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		d.dispatch(msg)
	}
}

func (d *Dispatcher) dispatch(msg string) (delivered int) {
	d.transcript.Append(msg)
	peers := d.registry.Snapshot()
	logger.L().Sugar().Debugw("broadcast", "peers", len(peers), "bytes", len(msg))

	for _, p := range peers {
		if err := p.Send(msg); err != nil {
			logger.L().Sugar().Warnw("dispatch_write_error", "conn", p.ID(), "addr", p.RemoteAddr(), "err", err)
			d.registry.Remove(p)
			observe.IncWriteFailure()
			continue
		}
		delivered++
	}
	observe.IncMessage(observe.StageDispatched)
	observe.AddDeliveries(delivered)
	return delivered
}
