package chat

import "sync"

// Transcript 已分发消息的有序记录，只追加。
// 仅供审计/调试查看，不会回放给新加入的连接。
type Transcript struct {
	mu      sync.RWMutex
	entries []string
}

func NewTranscript() *Transcript { return &Transcript{} }

func (t *Transcript) Append(msg string) {
	t.mu.Lock()
	t.entries = append(t.entries, msg)
	t.mu.Unlock()
}

// Entries 返回记录的拷贝
func (t *Transcript) Entries() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
