package model

import (
	"context"
	"fmt"
	"time"

	"github.com/emberhq/ember/shared/resilience"
)

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation history. Messages with RoleTool
// carry the textual result of exactly one tool execution and name the tool
// that produced it.
type Message struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolMessage(tool, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolName: tool}
}

// ChatProvider is the black-box chat-completion capability the agent
// consumes: one ordered history in, one assistant message out. No streaming,
// no native function calling assumed.
type ChatProvider interface {
	Chat(ctx context.Context, model string, messages []Message) (*Message, error)
}

type ProviderOptions struct {
	URL            string
	Timeout        time.Duration
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
}

type ProviderOption func(*ProviderOptions)

func WithURL(url string) ProviderOption {
	return func(o *ProviderOptions) {
		o.URL = url
	}
}

func WithTimeout(timeout time.Duration) ProviderOption {
	return func(o *ProviderOptions) {
		o.Timeout = timeout
	}
}

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(o *ProviderOptions) {
		o.RetryConfig = retryConfig
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(o *ProviderOptions) {
		o.CircuitBreaker = circuitBreaker
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		Timeout:        5 * time.Minute,
		RetryConfig:    resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
	}
}

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindConnection        ProviderErrorKind = "connection"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)

type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	RetryAfter time.Duration
	Err        error
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

func (pe *ProviderError) Message() string {
	switch pe.Kind {
	case ProviderErrorKindInvalidRequest:
		return "Invalid request format or content"
	case ProviderErrorKindRateLimitExceeded:
		if pe.RetryAfter > 0 {
			return fmt.Sprintf("Rate limit exceeded, retry after %s", pe.RetryAfter)
		}
		return "Rate limit exceeded"
	case ProviderErrorKindOverloaded:
		return "API temporarily overloaded"
	case ProviderErrorKindConnection:
		return "Cannot reach the model server"
	case ProviderErrorKindInternal:
		return "Internal server error"
	case ProviderErrorKindTimeout:
		return "Request timeout"
	case ProviderErrorKindCanceled:
		return "Request canceled"
	default:
		return "Unknown error"
	}
}

func (pe *ProviderError) Retryable() (bool, time.Duration) {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded:
		return true, pe.RetryAfter
	case ProviderErrorKindOverloaded:
		return true, 20 * time.Second
	default:
		return false, 0
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}
