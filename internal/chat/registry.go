package chat

import (
	"slices"
	"sync"

	"github.com/hongjun500/chat-relay/internal/observe"
)

// Registry 当前在线连接集合，并发安全
//
// 被 Remove 的连接会被关闭，而已关闭的连接无法再 Add，
// 因此一个连接被移除后不会重新出现。
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Peer
	order []Peer // 按加入顺序，Snapshot 保持稳定顺序
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Peer)}
}

// Add 注册连接；重复或已关闭的连接返回 false
func (r *Registry) Add(p Peer) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	// 在锁内检查，与并发的 Remove 串行
	if p.Closed() {
		r.mu.Unlock()
		return false
	}
	if _, exists := r.byID[p.ID()]; exists {
		r.mu.Unlock()
		return false
	}
	r.byID[p.ID()] = p
	r.order = append(r.order, p)
	r.mu.Unlock()

	observe.AddOnline(p.Transport(), 1)
	return true
}

// Remove 移除并关闭连接。不存在时是 no-op，返回 false。
// 先从集合摘除再关闭，之后的 Snapshot 不会再包含它。
func (r *Registry) Remove(p Peer) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	cur, ok := r.byID[p.ID()]
	if ok {
		delete(r.byID, p.ID())
		for i, item := range r.order {
			if item == cur {
				r.order = slices.Delete(r.order, i, i+1)
				break
			}
		}
	}
	r.mu.Unlock()

	_ = p.Close()
	if ok {
		observe.AddOnline(p.Transport(), -1)
	}
	return ok
}

// Get 按 id 查找
func (r *Registry) Get(id string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Snapshot 返回当前连接的拷贝，遍历期间可以并发增删
func (r *Registry) Snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
