package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hongjun500/chat-relay/internal/config"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var cfgPath string

	root := &cobra.Command{
		Use:          "chat-server",
		Short:        "Relay length-prefixed chat messages to every connected client",
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			// 命令行显式设置的 flag 优先级最高
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := config.Load(&cfg, cfgFile, changed); err != nil {
				return err
			}
			logger.SetLevel(cfg.LogLevel)
			logger.L().Sugar().Infow("configuration", "config", cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cfgFile)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default $HOME/.chat-relay/config.toml)")
	f.StringVar(&cfg.Host, "server-ip", cfg.Host, "IP address of the server")
	f.IntVar(&cfg.Port, "server-port", cfg.Port, "Port number of the server")
	f.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "WebSocket listen address, empty to disable")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for /healthz, /metrics and /transcript, empty to disable")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	f.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "idle read timeout per connection, 0 to disable")
	f.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "broadcast write timeout per connection, 0 to disable")
	f.IntVar(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "largest accepted payload in bytes, 0 for no limit")
	return root
}

func main() {
	defer func() { _ = logger.Sync() }()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.L().Sugar().Errorw("server_exit", "error", err)
		os.Exit(1)
	}
}
