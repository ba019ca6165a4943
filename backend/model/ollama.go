package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaProvider talks to a local Ollama server. This is the primary
// provider: the agent relies on textual tool calling, so any model the
// server can run will do.
type OllamaProvider struct {
	client  *api.Client
	options *ProviderOptions
}

func NewOllamaProvider(host string, opts ...ProviderOption) (*OllamaProvider, error) {
	options := DefaultProviderOptions("ollama")
	for _, opt := range opts {
		opt(options)
	}
	if options.URL != "" {
		host = options.URL
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return &OllamaProvider{
		client:  api.NewClient(u, http.DefaultClient),
		options: options,
	}, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, model string, messages []Message) (*Message, error) {
	if model == "" {
		return nil, NewProviderError("ollama", ProviderErrorKindInvalidRequest, errors.New("model is required"))
	}
	if len(messages) == 0 {
		return nil, NewProviderError("ollama", ProviderErrorKindInvalidRequest, errors.New("at least one message is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.options.Timeout)
	defer cancel()

	apiMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   &stream,
	}

	var reply api.Message
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply = resp.Message
		return nil
	})
	if err != nil {
		return nil, p.toProviderError(err)
	}

	msg := AssistantMessage(reply.Content)
	return &msg, nil
}

// CheckHealth verifies that the Ollama server is reachable.
func (p *OllamaProvider) CheckHealth(ctx context.Context) error {
	_, err := p.client.List(ctx)
	if err != nil {
		return NewProviderError("ollama", ProviderErrorKindConnection, err)
	}
	return nil
}

// HasModel reports whether the named model is available on the server.
// A bare name matches any installed tag, mirroring `ollama list` semantics.
func (p *OllamaProvider) HasModel(ctx context.Context, model string) (bool, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return false, NewProviderError("ollama", ProviderErrorKindConnection, err)
	}

	base := strings.SplitN(model, ":", 2)[0]
	for _, m := range resp.Models {
		if m.Name == model || strings.SplitN(m.Name, ":", 2)[0] == base {
			return true, nil
		}
	}
	return false, nil
}

// EnsureModel pulls the model when it is not installed yet.
func (p *OllamaProvider) EnsureModel(ctx context.Context, model string) error {
	ok, err := p.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	slog.InfoContext(ctx, "pulling model", "model", model)
	err = p.client.Pull(ctx, &api.PullRequest{Model: model}, func(progress api.ProgressResponse) error {
		if progress.Status != "" {
			slog.DebugContext(ctx, "pull progress", "model", model, "status", progress.Status)
		}
		return nil
	})
	if err != nil {
		return NewProviderError("ollama", ProviderErrorKindInternal, fmt.Errorf("failed to pull model %q: %w", model, err))
	}
	return nil
}

func (p *OllamaProvider) toProviderError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError("ollama", ProviderErrorKindTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError("ollama", ProviderErrorKindCanceled, err)
	default:
		return NewProviderError("ollama", ProviderErrorKindConnection, err)
	}
}

var _ ChatProvider = (*OllamaProvider)(nil)
