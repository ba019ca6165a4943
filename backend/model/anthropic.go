package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/emberhq/ember/shared/resilience"
)

const anthropicMaxTokens = 8192

type AnthropicProvider struct {
	client  *anthropic.Client
	options *ProviderOptions
}

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	options := DefaultProviderOptions("anthropic")
	for _, opt := range opts {
		opt(options)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.URL))
	}

	return &AnthropicProvider{
		client:  anthropic.NewClient(clientOptions...),
		options: options,
	}, nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, model string, messages []Message) (*Message, error) {
	if model == "" {
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidRequest, errors.New("model is required"))
	}

	systemPrompt, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidRequest, errors.New("at least one non-system message is required"))
	}

	// The messages API rejects consecutive same-role entries, so tool
	// results and follow-up user messages are merged into one turn.
	anthropicMessages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range mergeTurns(turns) {
		block := anthropic.NewTextBlock(turn.Content)
		switch turn.Role {
		case RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(block))
		default:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(block))
		}
	}

	var reply *anthropic.Message
	err := resilience.Retry(ctx, p.options.RetryConfig, nil, func(ctx context.Context) error {
		if !p.options.CircuitBreaker.Allow() {
			return NewProviderError("anthropic", ProviderErrorKindOverloaded, errors.New("circuit breaker open"))
		}

		ctx, cancel := context.WithTimeout(ctx, p.options.Timeout)
		defer cancel()

		resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.F(model),
			MaxTokens: anthropic.F(int64(anthropicMaxTokens)),
			System: anthropic.F([]anthropic.TextBlockParam{
				{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(systemPrompt),
				},
			}),
			Messages: anthropic.F(anthropicMessages),
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

	var text strings.Builder
	for _, block := range reply.Content {
		text.WriteString(block.Text)
	}

	msg := AssistantMessage(text.String())
	return &msg, nil
}

func (p *AnthropicProvider) toProviderError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError("anthropic", ProviderErrorKindTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError("anthropic", ProviderErrorKindCanceled, err)
	default:
		return NewProviderError("anthropic", ProviderErrorKindUnknown, err)
	}
}

// splitSystem peels system messages off the history. Providers that carry
// the system prompt out of band need them separated from the turns.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	return strings.Join(system, "\n\n"), turns
}

// mergeTurns collapses consecutive non-assistant messages (user and tool
// results) into single user turns.
func mergeTurns(messages []Message) []Message {
	merged := make([]Message, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		role := msg.Role
		if role == RoleTool {
			content = fmt.Sprintf("Tool result (%s):\n%s", msg.ToolName, msg.Content)
			role = RoleUser
		}

		if len(merged) > 0 && merged[len(merged)-1].Role == role {
			merged[len(merged)-1].Content += "\n\n" + content
			continue
		}
		merged = append(merged, Message{Role: role, Content: content})
	}
	return merged
}

var _ ChatProvider = (*AnthropicProvider)(nil)
