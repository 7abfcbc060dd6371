package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hongjun500/chat-relay/internal/client"
	"github.com/hongjun500/chat-relay/internal/config"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

type options struct {
	host            string
	port            int
	ai              bool
	strategy        string
	messageInterval int
	timeInterval    int // 秒
	maxFrameSize    int
}

func (o options) addr() string { return net.JoinHostPort(o.host, strconv.Itoa(o.port)) }

func (o options) aiOptions() client.AIOptions {
	return client.AIOptions{
		Strategy:        o.strategy,
		TimeInterval:    time.Duration(o.timeInterval) * time.Second,
		MessageInterval: o.messageInterval,
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	o := options{
		host:            config.DefaultHost,
		port:            config.DefaultPort,
		strategy:        client.StrategyTimed,
		messageInterval: client.DefaultMessageInterval,
		timeInterval:    int(client.DefaultTimeInterval / time.Second),
	}

	root := &cobra.Command{
		Use:          "chat-client",
		Short:        "Client for the chat relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var gen client.Generator
			if o.ai {
				g, err := client.NewOpenAIGenerator(os.Getenv("OPENAI_API_KEY"))
				if err != nil {
					return err
				}
				gen = g
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := client.Dial(ctx, o.addr(), client.WithOutput(out), client.WithMaxFrameSize(o.maxFrameSize))
			if err != nil {
				return err
			}
			defer c.Close()
			go func() {
				if err := c.Receive(); err != nil {
					logger.L().Sugar().Warnw("client_receive_error", "error", err)
				}
			}()

			if gen != nil {
				err = c.RunAI(ctx, gen, o.aiOptions())
			} else {
				err = c.RunInteractive(ctx, in)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.host, "server-ip", o.host, "IP address of the server")
	pf.IntVar(&o.port, "server-port", o.port, "Port number of the server")
	pf.IntVar(&o.maxFrameSize, "max-frame-size", 0, "largest accepted payload in bytes, 0 for no limit")

	f := root.Flags()
	f.BoolVar(&o.ai, "ai", false, "let an AI model write the messages; requires OPENAI_API_KEY")
	f.StringVar(&o.strategy, "response-strategy", o.strategy, "AI response strategy: timed|count")
	f.IntVar(&o.messageInterval, "ai-message-interval", o.messageInterval, "count strategy: speak when the number of received messages is a multiple of this")
	f.IntVar(&o.timeInterval, "ai-time-interval", o.timeInterval, "timed strategy: seconds between messages")

	root.AddCommand(newPeekCmd(&o, out))
	return root
}

func newPeekCmd(o *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Print every raw frame received from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d := net.Dialer{Timeout: 5 * time.Second}
			conn, err := d.DialContext(ctx, "tcp", o.addr())
			if err != nil {
				return fmt.Errorf("dial %s: %w", o.addr(), err)
			}
			defer conn.Close()
			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()

			err = client.Peek(conn, out, o.maxFrameSize)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func main() {
	defer func() { _ = logger.Sync() }()
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Client has stopped working...\n%v\n", err)
		os.Exit(1)
	}
}
