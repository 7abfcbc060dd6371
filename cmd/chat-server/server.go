package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/config"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/internal/transport"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// app 一个进程内共享同一个 Hub 的所有监听
type app struct {
	hub        *chat.Hub
	tcp        *transport.TCPServer
	transports []transport.Transport // 已绑定，按绑定顺序
	metrics    net.Listener
	cfgFile    string
}

// bind 绑定一个传输，失败时释放之前已绑定的监听
func (a *app) bind(t transport.Transport, addr string) error {
	if err := t.Listen(addr); err != nil {
		a.closeListeners()
		return err
	}
	a.transports = append(a.transports, t)
	return nil
}

// newApp 先完成所有绑定，任一失败都直接返回
func newApp(cfg config.Config, cfgFile string) (*app, error) {
	opt := transport.Options{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
	}
	a := &app{hub: chat.NewHub(), cfgFile: cfgFile}

	a.tcp = transport.NewTCPServer(a.hub, opt)
	if err := a.bind(a.tcp, cfg.Addr()); err != nil {
		return nil, err
	}
	if cfg.WSAddr != "" {
		if err := a.bind(transport.NewWSServer(a.hub, opt), cfg.WSAddr); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			a.closeListeners()
			return nil, fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
		}
		a.metrics = ln
	}
	return a, nil
}

func (a *app) closeListeners() {
	for _, t := range a.transports {
		_ = t.Close()
	}
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
}

// serve 阻塞直到 ctx 结束或某个监听出错
func (a *app) serve(ctx context.Context) error {
	defer a.hub.Close()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range a.transports {
		g.Go(func() error {
			logger.L().Sugar().Infow("transport_serve", "transport", t.Name(), "addr", t.Addr().String())
			return t.Serve(gctx)
		})
	}
	if a.metrics != nil {
		g.Go(func() error { return observe.ServeHTTP(gctx, a.metrics, observe.NewRouter(a.hub.Transcript())) })
	}
	if a.cfgFile != "" && config.FileExists(a.cfgFile) {
		w, err := config.NewWatcher(a.cfgFile, config.ApplyLogLevel)
		if err != nil {
			logger.L().Sugar().Warnw("config_watch_error", "error", err)
		} else {
			logger.L().Sugar().Infow("config_watch", "path", w.Path())
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrServerClosed) {
		err = nil
	}
	logger.L().Sugar().Infow("server_stopped", "transcript", a.hub.Transcript().Len(), "pending", a.hub.Pending(), "error", err)
	return err
}

func run(ctx context.Context, cfg config.Config, cfgFile string) error {
	a, err := newApp(cfg, cfgFile)
	if err != nil {
		return err
	}
	fmt.Printf("Server is listening on %s\n", a.tcp.Addr())
	return a.serve(ctx)
}
