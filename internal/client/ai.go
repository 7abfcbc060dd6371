package client

import (
	"context"
	"fmt"
	"time"

	"github.com/hongjun500/chat-relay/pkg/logger"
)

const (
	StrategyTimed = "timed"
	StrategyCount = "count"

	DefaultTimeInterval    = 3 * time.Second
	DefaultMessageInterval = 5

	// 计数模式下检查历史的间隔，发送后留时间让服务端把消息广播回来
	defaultPollInterval = 500 * time.Millisecond
)

// Generator 根据聊天历史生成下一条发言
type Generator interface {
	Generate(ctx context.Context, history []string) (string, error)
}

// AIOptions AI 发言策略
type AIOptions struct {
	Strategy        string        // timed | count
	TimeInterval    time.Duration // timed：每隔多久发言一次
	MessageInterval int           // count：历史条数是它的倍数时发言
	PollInterval    time.Duration
}

func (o *AIOptions) validate() error {
	switch o.Strategy {
	case "", StrategyTimed:
		o.Strategy = StrategyTimed
		if o.TimeInterval <= 0 {
			return fmt.Errorf("ai time interval must be positive")
		}
	case StrategyCount:
		if o.MessageInterval <= 0 {
			return fmt.Errorf("ai message interval must be positive")
		}
	default:
		return fmt.Errorf("unknown response strategy: %q", o.Strategy)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return nil
}

// RunAI 由 gen 自动发言，直到 ctx 取消、连接断开或生成失败
func (c *Client) RunAI(ctx context.Context, gen Generator, opts AIOptions) error {
	if gen == nil {
		return fmt.Errorf("generator is nil")
	}
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.Strategy == StrategyCount {
		return c.runCount(ctx, gen, opts)
	}
	return c.runTimed(ctx, gen, opts)
}

func (c *Client) runTimed(ctx context.Context, gen Generator, opts AIOptions) error {
	for {
		if err := c.speak(ctx, gen); err != nil {
			return err
		}
		if err := c.wait(ctx, opts.TimeInterval); err != nil {
			return err
		}
	}
}

func (c *Client) runCount(ctx context.Context, gen Generator, opts AIOptions) error {
	lastSent := -1
	for {
		// 同一条数只发一次，避免广播回来之前重复发言
		if n := c.HistoryLen(); n%opts.MessageInterval == 0 && n != lastSent {
			if err := c.speak(ctx, gen); err != nil {
				return err
			}
			lastSent = n
		}
		if err := c.wait(ctx, opts.PollInterval); err != nil {
			return err
		}
	}
}

func (c *Client) speak(ctx context.Context, gen Generator) error {
	msg, err := gen.Generate(ctx, c.History())
	if err != nil {
		return fmt.Errorf("generate message: %w", err)
	}
	if err := c.Send(msg); err != nil {
		return err
	}
	logger.L().Sugar().Debugw("ai_message_sent", "bytes", len(msg))
	return nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.Err()
	case <-t.C:
		return nil
	}
}
