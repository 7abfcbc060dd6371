// Package client 是中继服务的命令行客户端：收发帧、记录聊天历史，并支持 AI 自动发言
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hongjun500/chat-relay/internal/transport"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

const defaultDialTimeout = 5 * time.Second

// Client 一个到中继服务的 TCP 连接
type Client struct {
	conn  net.Conn
	codec *transport.FrameCodec
	out   io.Writer

	mu      sync.RWMutex
	history []string

	done    chan struct{}
	errMu   sync.Mutex
	recvErr error
}

// Option configures a Client.
type Option func(*Client)

// WithOutput 收到的消息打印到 w，默认 stdout
func WithOutput(w io.Writer) Option {
	return func(c *Client) {
		if w != nil {
			c.out = w
		}
	}
}

// WithMaxFrameSize 限制接收帧大小
func WithMaxFrameSize(n int) Option {
	return func(c *Client) { c.codec = transport.NewFrameCodec(transport.WithMaxFrameSize(n)) }
}

// Dial 连接服务端
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New 基于已建立的连接创建客户端
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:  conn,
		codec: transport.NewFrameCodec(),
		out:   os.Stdout,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send 发送一条消息
func (c *Client) Send(msg string) error {
	return c.codec.WriteMessage(c.conn, msg)
}

// Receive 持续读取广播直到连接断开；正常关闭返回 nil
func (c *Client) Receive() error {
	defer close(c.done)
	for {
		msg, err := c.codec.DecodeMessage(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.errMu.Lock()
			c.recvErr = err
			c.errMu.Unlock()
			return err
		}
		c.mu.Lock()
		c.history = append(c.history, msg)
		c.mu.Unlock()
		_, _ = fmt.Fprintf(c.out, "\n> %s\n>\n", msg)
	}
}

// Done 在 Receive 返回后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Err 返回 Receive 结束的原因
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.recvErr
}

// History 返回已收到消息的副本
func (c *Client) History() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.history...)
}

// HistoryLen 已收到的消息数
func (c *Client) HistoryLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

func (c *Client) Close() error { return c.conn.Close() }

// RunInteractive 逐行读取 in 并发送，直到输入结束、ctx 取消或连接断开
func (c *Client) RunInteractive(ctx context.Context, in io.Reader) error {
	_, _ = fmt.Fprintln(c.out, "Enter your messages:\n> ")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return c.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := c.Send(line); err != nil {
				logger.L().Sugar().Warnw("client_send_error", "error", err)
				return err
			}
		}
	}
}
