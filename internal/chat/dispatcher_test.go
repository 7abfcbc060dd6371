package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Dispatcher, *Queue, *Registry, *Transcript) {
	q, r, tr := NewQueue(), NewRegistry(), NewTranscript()
	return NewDispatcher(q, r, tr), q, r, tr
}

func TestDispatchFanOut(t *testing.T) {
	d, _, r, tr := newTestDispatcher()
	peers := []*fakePeer{newFakePeer("a"), newFakePeer("b"), newFakePeer("c")}
	for _, p := range peers {
		r.Add(p)
	}

	assert.Equal(t, 3, d.dispatch("hi"))
	for _, p := range peers {
		assert.Equal(t, []string{"hi"}, p.messages(), p.ID())
	}
	assert.Equal(t, []string{"hi"}, tr.Entries())
}

func TestDispatchIsolatesFailingPeer(t *testing.T) {
	d, _, r, tr := newTestDispatcher()
	a, bad, c := newFakePeer("a"), newFakePeer("bad"), newFakePeer("c")
	r.Add(a)
	r.Add(bad)
	r.Add(c)
	bad.fail()

	assert.Equal(t, 2, d.dispatch("m1"))
	assert.True(t, bad.Closed())
	_, ok := r.Get("bad")
	assert.False(t, ok)

	assert.Equal(t, 2, d.dispatch("m2"))
	assert.Equal(t, []string{"m1", "m2"}, a.messages())
	assert.Equal(t, []string{"m1", "m2"}, c.messages())
	assert.Empty(t, bad.messages())
	assert.EqualValues(t, 1, bad.sends.Load(), "no retry to a failed connection")
	assert.Equal(t, []string{"m1", "m2"}, tr.Entries())
}

func TestDispatchWithNoPeers(t *testing.T) {
	d, _, _, tr := newTestDispatcher()
	assert.Equal(t, 0, d.dispatch("lonely"))
	assert.Equal(t, []string{"lonely"}, tr.Entries())
}

func TestDispatcherRunOrder(t *testing.T) {
	d, q, r, tr := newTestDispatcher()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.Add(a)
	r.Add(b)

	want := make([]string, 50)
	for i := range want {
		want[i] = fmt.Sprint(i)
		q.Push(want[i])
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return tr.Len() == len(want) }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, want, tr.Entries())
	assert.Equal(t, want, a.messages())
	assert.Equal(t, want, b.messages())
}

func TestDispatcherRunStopsOnClose(t *testing.T) {
	d, q, _, tr := newTestDispatcher()
	q.Push("last")
	q.Close()

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"last"}, tr.Entries())
}
