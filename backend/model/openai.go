package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/emberhq/ember/shared/resilience"
)

// OpenAIProvider also serves any OpenAI-compatible endpoint (vLLM, LM
// Studio, Ollama's /v1 surface) via WithURL.
type OpenAIProvider struct {
	client  *openai.Client
	options *ProviderOptions
}

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	options := DefaultProviderOptions("openai")
	for _, opt := range opts {
		opt(options)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.URL))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(clientOptions...),
		options: options,
	}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, model string, messages []Message) (*Message, error) {
	if model == "" {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, errors.New("model is required"))
	}
	if len(messages) == 0 {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, errors.New("at least one message is required"))
	}

	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			openaiMessages = append(openaiMessages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			openaiMessages = append(openaiMessages, openai.AssistantMessage(msg.Content))
		case RoleTool:
			// No native tool_call_id exists in a textual protocol, so
			// results travel as labeled user messages.
			openaiMessages = append(openaiMessages, openai.UserMessage(
				fmt.Sprintf("Tool result (%s):\n%s", msg.ToolName, msg.Content)))
		default:
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		}
	}

	var reply *openai.ChatCompletion
	err := resilience.Retry(ctx, p.options.RetryConfig, nil, func(ctx context.Context) error {
		if !p.options.CircuitBreaker.Allow() {
			return NewProviderError("openai", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}

		ctx, cancel := context.WithTimeout(ctx, p.options.Timeout)
		defer cancel()

		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.F(openai.ChatModel(model)),
			Messages: openai.F(openaiMessages),
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
		return nil, NewProviderError("openai", ProviderErrorKindInternal, errors.New("response contained no choices"))
	}

	msg := AssistantMessage(reply.Choices[0].Message.Content)
	return &msg, nil
}

func (p *OpenAIProvider) toProviderError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError("openai", ProviderErrorKindTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError("openai", ProviderErrorKindCanceled, err)
	default:
		return NewProviderError("openai", ProviderErrorKindUnknown, err)
	}
}

var _ ChatProvider = (*OpenAIProvider)(nil)
