package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel        = "gpt-3.5-turbo"
	DefaultSystemPrompt = "You are a friendly participant in a group chat, trying to make friends."
)

var (
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")
	ErrEmptyResponse = errors.New("openai returned no choices")
)

// OpenAIGenerator 通过 chat completions 接口生成发言
type OpenAIGenerator struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// OpenAIOption is a functional option for configuring OpenAIGenerator.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model        string
	systemPrompt string
	reqOpts      []option.RequestOption
}

func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

func WithSystemPrompt(prompt string) OpenAIOption {
	return func(c *openAIConfig) {
		if prompt != "" {
			c.systemPrompt = prompt
		}
	}
}

// WithRequestOptions 透传给 openai 客户端，例如 option.WithBaseURL
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(c *openAIConfig) { c.reqOpts = append(c.reqOpts, opts...) }
}

func NewOpenAIGenerator(apiKey string, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openAIConfig{model: DefaultModel, systemPrompt: DefaultSystemPrompt}
	for _, opt := range opts {
		opt(&cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.reqOpts...)
	return &OpenAIGenerator{
		client:       openai.NewClient(reqOpts...),
		model:        cfg.model,
		systemPrompt: cfg.systemPrompt,
	}, nil
}

// Generate 把历史消息都作为 user 消息，附上系统提示词
func (g *OpenAIGenerator) Generate(ctx context.Context, history []string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	msgs = append(msgs, openai.SystemMessage(g.systemPrompt))
	for _, h := range history {
		msgs = append(msgs, openai.UserMessage(h))
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
