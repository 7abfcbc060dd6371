package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/hongjun500/chat-relay/internal/observe"
)

const compactThreshold = 1024

var ErrQueueClosed = errors.New("chat: broadcast queue closed")

// Queue 无界的多生产者单消费者 FIFO 队列
//
// Push 永不阻塞；Pop 在队列为空时阻塞，直到有消息、队列关闭或 ctx 结束。
// 只允许一个消费者调用 Pop。
type Queue struct {
	mu     sync.Mutex
	items  []string
	head   int
	closed bool
	notify chan struct{} // 容量 1，唤醒消费者
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push 入队；队列已关闭时返回 false
func (q *Queue) Push(msg string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	n := len(q.items) - q.head
	q.mu.Unlock()

	observe.SetQueueDepth(n)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop 出队，队列关闭且已取空时返回 ErrQueueClosed
func (q *Queue) Pop(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			msg := q.items[q.head]
			q.items[q.head] = ""
			q.head++
			n := len(q.items) - q.head
			switch {
			case n == 0:
				// 取空后复用底层数组
				q.items = q.items[:0]
				q.head = 0
			case q.head >= compactThreshold && q.head > n:
				q.items = append(q.items[:0], q.items[q.head:]...)
				q.head = 0
			}
			q.mu.Unlock()
			observe.SetQueueDepth(n)
			return msg, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return "", ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.notify:
		}
	}
}

// Len 待分发的消息数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close 关闭队列；已入队的消息仍可被取出
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
