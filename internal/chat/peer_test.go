package chat

import (
	"errors"
	"sync"
	"sync/atomic"
)

var errBrokenPipe = errors.New("broken pipe")

// fakePeer 记录收到的消息，可配置为写失败
type fakePeer struct {
	id   string
	addr string

	mu       sync.Mutex
	received []string
	failing  bool
	closed   atomic.Bool
	sends    atomic.Int32
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, addr: "127.0.0.1:" + id}
}

func (p *fakePeer) ID() string         { return p.id }
func (p *fakePeer) RemoteAddr() string { return p.addr }
func (p *fakePeer) Transport() string  { return "fake" }
func (p *fakePeer) Closed() bool       { return p.closed.Load() }

func (p *fakePeer) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *fakePeer) Send(msg string) error {
	p.sends.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing || p.closed.Load() {
		return errBrokenPipe
	}
	p.received = append(p.received, msg)
	return nil
}

func (p *fakePeer) fail() {
	p.mu.Lock()
	p.failing = true
	p.mu.Unlock()
}

func (p *fakePeer) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}
