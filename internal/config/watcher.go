package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hongjun500/chat-relay/pkg/logger"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher 监听配置文件变化，重新解析后回调 onChange。
// 监听的是所在目录，编辑器 rename 覆盖写入也能收到事件。
type Watcher struct {
	path     string
	onChange func(FileConfig)
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewWatcher(path string, onChange func(FileConfig)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &Watcher{path: abs, onChange: onChange, debounce: defaultDebounce}, nil
}

// Path 返回被监听文件的绝对路径
func (w *Watcher) Path() string { return w.path }

// Run 阻塞直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.L().Sugar().Warnw("config_watch_error", "error", err)
		}
	}
}

// 合并短时间内的多次写事件
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		logger.L().Sugar().Warnw("config_reload_error", "path", w.path, "error", err)
		return
	}
	logger.L().Sugar().Infow("config_reload", "path", w.path)
	if w.onChange != nil {
		w.onChange(fc)
	}
}

// ApplyLogLevel 只热更新日志级别；其余字段需要重启才能生效
func ApplyLogLevel(fc FileConfig) {
	if fc.LogLevel == "" {
		return
	}
	if !logger.ValidLevel(fc.LogLevel) {
		logger.L().Sugar().Warnw("config_reload_invalid_level", "level", fc.LogLevel)
		return
	}
	if logger.ParseLevel(fc.LogLevel) == logger.Level() {
		return
	}
	logger.SetLevel(fc.LogLevel)
	logger.L().Sugar().Infow("log_level_changed", "level", fc.LogLevel)
}
