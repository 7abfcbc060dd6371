package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	lastSeen []string
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, history []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.calls++
	g.lastSeen = history
	return fmt.Sprintf("ai message %d", g.calls), nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestAIOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    AIOptions
		wantErr bool
	}{
		{"timed default strategy", AIOptions{TimeInterval: time.Second}, false},
		{"timed zero interval", AIOptions{Strategy: StrategyTimed}, true},
		{"count", AIOptions{Strategy: StrategyCount, MessageInterval: 5}, false},
		{"count zero interval", AIOptions{Strategy: StrategyCount}, true},
		{"unknown", AIOptions{Strategy: "random", TimeInterval: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultPollInterval, opts.PollInterval)
		})
	}
}

func TestRunAI_Timed(t *testing.T) {
	_, addr := startServer(t)
	var out syncBuffer
	c := dialClient(t, addr, &out)

	gen := &fakeGenerator{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.RunAI(ctx, gen, AIOptions{Strategy: StrategyTimed, TimeInterval: 20 * time.Millisecond}) }()

	waitHistory(t, c, 3)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, gen.Calls(), 3)
	assert.Contains(t, c.History()[0], "says:\nai message 1\n")
}

func TestRunAI_Count(t *testing.T) {
	_, addr := startServer(t)
	var out syncBuffer
	c := dialClient(t, addr, &out)
	var humanOut syncBuffer
	human := dialClient(t, addr, &humanOut)

	gen := &fakeGenerator{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.RunAI(ctx, gen, AIOptions{Strategy: StrategyCount, MessageInterval: 2, PollInterval: 5 * time.Millisecond})
	}()

	// 历史为空时先发言一次
	require.Eventually(t, func() bool { return gen.Calls() == 1 }, 3*time.Second, 5*time.Millisecond)
	waitHistory(t, c, 1)

	// 第 2 条消息到达后再发言
	require.NoError(t, human.Send("hello bot"))
	require.Eventually(t, func() bool { return gen.Calls() == 2 }, 3*time.Second, 5*time.Millisecond)
	waitHistory(t, c, 3)

	// 历史为 3，不是 2 的倍数，不再发言
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, gen.Calls())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunAI_GeneratorError(t *testing.T) {
	_, addr := startServer(t)
	var out syncBuffer
	c := dialClient(t, addr, &out)

	boom := errors.New("rate limited")
	err := c.RunAI(context.Background(), &fakeGenerator{err: boom}, AIOptions{TimeInterval: time.Second})
	assert.ErrorIs(t, err, boom)
}

func TestRunAI_NilGenerator(t *testing.T) {
	_, addr := startServer(t)
	var out syncBuffer
	c := dialClient(t, addr, &out)
	assert.Error(t, c.RunAI(context.Background(), nil, AIOptions{TimeInterval: time.Second}))
}
