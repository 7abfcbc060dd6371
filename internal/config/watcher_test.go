package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongjun500/chat-relay/pkg/logger"
)

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "info"`), 0o600))

	var got atomic.Value
	w, err := NewWatcher(path, func(fc FileConfig) { got.Store(fc.LogLevel) })
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 等待监听建立后再写入
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`log_level = "debug"`), 0o600)
		v, _ := got.Load().(string)
		return v == "debug"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcher_AbsolutePath(t *testing.T) {
	t.Chdir(t.TempDir())
	w, err := NewWatcher("config.toml", nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.Path()))
	assert.Equal(t, "config.toml", filepath.Base(w.Path()))
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "config.toml"), nil)
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestApplyLogLevel(t *testing.T) {
	prev := logger.Level()
	t.Cleanup(func() { logger.SetLevel(prev.String()) })

	ApplyLogLevel(FileConfig{LogLevel: "warn"})
	assert.Equal(t, zapcore.WarnLevel, logger.Level())

	ApplyLogLevel(FileConfig{LogLevel: "nonsense"})
	assert.Equal(t, zapcore.WarnLevel, logger.Level())

	ApplyLogLevel(FileConfig{})
	assert.Equal(t, zapcore.WarnLevel, logger.Level())
}

func TestApplyLogLevel_Unchanged(t *testing.T) {
	prev := logger.Level()
	t.Cleanup(func() { logger.SetLevel(prev.String()) })
	logger.SetLevel("info")

	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	ApplyLogLevel(FileConfig{LogLevel: "info"})
	assert.Zero(t, logs.FilterMessage("log_level_changed").Len())

	ApplyLogLevel(FileConfig{LogLevel: "error"})
	assert.Equal(t, 1, logs.FilterMessage("log_level_changed").Len())
}
