package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/client"
	"github.com/hongjun500/chat-relay/internal/transport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) (*transport.TCPServer, string) {
	t.Helper()
	hub := chat.NewHub()
	srv := transport.NewTCPServer(hub, transport.Options{})
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		hub.Close()
	})
	_, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	return srv, port
}

func TestOptions_Defaults(t *testing.T) {
	cmd := newRootCmd(strings.NewReader(""), &bytes.Buffer{})
	ip, err := cmd.PersistentFlags().GetString("server-ip")
	require.NoError(t, err)
	port, err := cmd.PersistentFlags().GetInt("server-port")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
	assert.Equal(t, 8888, port)

	strategy, _ := cmd.Flags().GetString("response-strategy")
	every, _ := cmd.Flags().GetInt("ai-message-interval")
	secs, _ := cmd.Flags().GetInt("ai-time-interval")
	assert.Equal(t, client.StrategyTimed, strategy)
	assert.Equal(t, 5, every)
	assert.Equal(t, 3, secs)
}

func TestRootCmd_AIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cmd := newRootCmd(strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{"--ai"})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), client.ErrMissingAPIKey)
}

func TestRootCmd_Interactive(t *testing.T) {
	srv, port := startServer(t)
	var out syncBuffer
	cmd := newRootCmd(strings.NewReader("hello\n"), &out)
	cmd.SetArgs([]string{"--server-port", port})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Eventually(t, func() bool { return srv.Hub().Transcript().Len() == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasSuffix(srv.Hub().Transcript().Entries()[0], "says:\nhello\n"))
}

func TestRootCmd_DialError(t *testing.T) {
	srv, port := startServer(t)
	require.NoError(t, srv.Close())
	cmd := newRootCmd(strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{"--server-port", port})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestPeekCmd(t *testing.T) {
	srv, port := startServer(t)
	var out syncBuffer
	cmd := newRootCmd(strings.NewReader(""), &out)
	cmd.SetArgs([]string{"peek", "--server-port", port})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return srv.Hub().Registry().Len() == 1 }, 3*time.Second, 5*time.Millisecond)
	require.True(t, srv.Hub().Publish("raw frame"))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `data(text): "raw frame"`)
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("peek did not stop")
	}
}
