package model

import (
	"context"
	"errors"
	"fmt"

	deepseek "github.com/cohesion-org/deepseek-go"
	"github.com/cohesion-org/deepseek-go/constants"

	"github.com/emberhq/ember/shared/resilience"
)

type DeepSeekProvider struct {
	client  *deepseek.Client
	options *ProviderOptions
}

func NewDeepSeekProvider(apiKey string, opts ...ProviderOption) (*DeepSeekProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	options := DefaultProviderOptions("deepseek")
	for _, opt := range opts {
		opt(options)
	}

	return &DeepSeekProvider{
		client:  deepseek.NewClient(apiKey),
		options: options,
	}, nil
}

func (p *DeepSeekProvider) Chat(ctx context.Context, model string, messages []Message) (*Message, error) {
	if model == "" {
		return nil, NewProviderError("deepseek", ProviderErrorKindInvalidRequest, errors.New("model is required"))
	}
	if len(messages) == 0 {
		return nil, NewProviderError("deepseek", ProviderErrorKindInvalidRequest, errors.New("at least one message is required"))
	}

	dsMessages := make([]deepseek.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			dsMessages = append(dsMessages, deepseek.ChatCompletionMessage{
				Role:    constants.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		case RoleAssistant:
			dsMessages = append(dsMessages, deepseek.ChatCompletionMessage{
				Role:    constants.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
		case RoleTool:
			dsMessages = append(dsMessages, deepseek.ChatCompletionMessage{
				Role:    constants.ChatMessageRoleUser,
				Content: fmt.Sprintf("Tool result (%s):\n%s", msg.ToolName, msg.Content),
			})
		default:
			dsMessages = append(dsMessages, deepseek.ChatCompletionMessage{
				Role:    constants.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	var reply *deepseek.ChatCompletionResponse
	err := resilience.Retry(ctx, p.options.RetryConfig, nil, func(ctx context.Context) error {
		if !p.options.CircuitBreaker.Allow() {
			return NewProviderError("deepseek", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}

		ctx, cancel := context.WithTimeout(ctx, p.options.Timeout)
		defer cancel()

		resp, err := p.client.CreateChatCompletion(ctx, &deepseek.ChatCompletionRequest{
			Model:    model,
			Messages: dsMessages,
		})
		p.options.CircuitBreaker.RecordResult(err)
		if err != nil {
			return p.toProviderError(err)
		}
		reply = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(reply.Choices) == 0 {
		return nil, NewProviderError("deepseek", ProviderErrorKindInternal, errors.New("response contained no choices"))
	}

	msg := AssistantMessage(reply.Choices[0].Message.Content)
	return &msg, nil
}

func (p *DeepSeekProvider) toProviderError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError("deepseek", ProviderErrorKindTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError("deepseek", ProviderErrorKindCanceled, err)
	default:
		return NewProviderError("deepseek", ProviderErrorKindUnknown, err)
	}
}

var _ ChatProvider = (*DeepSeekProvider)(nil)
