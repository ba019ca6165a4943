package cmd

import (
	"context"
	"fmt"

	"github.com/emberhq/ember/backend/model"
	"github.com/emberhq/ember/shared/config"
	"github.com/emberhq/ember/shared/keyring"
)

// buildProvider constructs the chat provider selected by the config. API
// keys missing from the environment are looked up in the system keyring.
func buildProvider(ctx context.Context, cfg *config.Config, secrets keyring.Provider) (model.ChatProvider, error) {
	timeout := model.WithTimeout(cfg.RequestTimeout)

	switch cfg.Provider {
	case config.ProviderKindOllama:
		provider, err := model.NewOllamaProvider(cfg.Host, timeout)
		if err != nil {
			return nil, err
		}
		if err := provider.CheckHealth(ctx); err != nil {
			return nil, fmt.Errorf("ollama is not reachable at %s: %w", cfg.Host, err)
		}
		return provider, nil
	case config.ProviderKindOpenAI:
		return model.NewOpenAIProvider(keyring.ResolveKey(secrets, cfg.Keys.OpenAI, "openai"), timeout)
	case config.ProviderKindAnthropic:
		return model.NewAnthropicProvider(keyring.ResolveKey(secrets, cfg.Keys.Anthropic, "anthropic"), timeout)
	case config.ProviderKindDeepSeek:
		return model.NewDeepSeekProvider(keyring.ResolveKey(secrets, cfg.Keys.DeepSeek, "deepseek"), timeout)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// ensureLocalModel pulls the model if the ollama instance does not have
// it yet. Cloud providers manage their own models.
func ensureLocalModel(ctx context.Context, provider model.ChatProvider, modelName string) error {
	ollama, ok := provider.(*model.OllamaProvider)
	if !ok {
		return nil
	}

	has, err := ollama.HasModel(ctx, modelName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	return ollama.EnsureModel(ctx, modelName)
}
